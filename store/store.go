// Package store defines the persistence interfaces for the open-interest
// time series. Implementations must provide native upsert semantics on the
// documented unique keys; callers retry freely and rely on idempotence.
package store

import (
	"context"
	"errors"
	"time"

	"optionflow/models"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrClosed   = errors.New("store: closed")
)

// OIStore persists the intraday and daily open-interest series plus the
// per-observation delta log.
type OIStore interface {
	// UpsertIntraday writes rows keyed on (symbol, timestamp, strike,
	// option type); an existing key is updated in place.
	UpsertIntraday(ctx context.Context, rows []models.IntradayOIRow) error

	// UpsertDaily writes rows keyed on (symbol, date, strike, option type).
	UpsertDaily(ctx context.Context, rows []models.DailyOIRow) error

	// InsertDeltas appends observed delta records. Deltas are a log, not a
	// keyed series; duplicates across retried cycles are acceptable.
	InsertDeltas(ctx context.Context, records []models.OIDeltaRecord) error

	IntradayOI(ctx context.Context, symbol string, from, to time.Time) ([]models.IntradayOIRow, error)
	DailyOI(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyOIRow, error)
	OIDeltas(ctx context.Context, symbol string, from, to time.Time) ([]models.OIDeltaRecord, error)

	// IntradayRowCount reports how many intraday rows exist for a symbol on
	// a trading day. Used by the weekly reconciliation pass.
	IntradayRowCount(ctx context.Context, symbol string, day time.Time) (int, error)

	Close()
}

// ArchiveStore records where each raw end-of-day payload landed.
type ArchiveStore interface {
	InsertArchive(ctx context.Context, rec models.RawArchiveRecord) error
	Archives(ctx context.Context, symbol string, day time.Time) ([]models.RawArchiveRecord, error)
}
