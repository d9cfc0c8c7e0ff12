// Package postgres backs the OI store with a pgx connection pool. Upserts
// lean on ON CONFLICT DO UPDATE over the documented unique keys.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"optionflow/logger"
	"optionflow/models"
)

type Store struct {
	pool *pgxpool.Pool
	log  *logger.Log
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool, log: logger.GetLogger()}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS intraday_oi (
			symbol        TEXT             NOT NULL,
			ts            TIMESTAMPTZ      NOT NULL,
			strike        DOUBLE PRECISION NOT NULL,
			option_type   TEXT             NOT NULL,
			open_interest BIGINT           NOT NULL,
			oi_change     BIGINT           NOT NULL,
			last_price    DOUBLE PRECISION NOT NULL,
			volume        BIGINT           NOT NULL,
			data_source   TEXT             NOT NULL,
			PRIMARY KEY (symbol, ts, strike, option_type)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_oi (
			symbol        TEXT             NOT NULL,
			day           DATE             NOT NULL,
			strike        DOUBLE PRECISION NOT NULL,
			option_type   TEXT             NOT NULL,
			open_interest BIGINT           NOT NULL,
			oi_change     BIGINT           NOT NULL,
			close_price   DOUBLE PRECISION NOT NULL,
			volume        BIGINT           NOT NULL,
			data_source   TEXT             NOT NULL,
			PRIMARY KEY (symbol, day, strike, option_type)
		)`,
		`CREATE TABLE IF NOT EXISTS oi_deltas (
			id             BIGSERIAL PRIMARY KEY,
			symbol         TEXT             NOT NULL,
			strike         DOUBLE PRECISION NOT NULL,
			option_type    TEXT             NOT NULL,
			ts             TIMESTAMPTZ      NOT NULL,
			old_oi         BIGINT           NOT NULL,
			new_oi         BIGINT           NOT NULL,
			delta_oi       BIGINT           NOT NULL,
			percent_change DOUBLE PRECISION NOT NULL,
			trigger_reason TEXT             NOT NULL,
			severity       TEXT             NOT NULL,
			data_source    TEXT             NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS oi_deltas_symbol_ts ON oi_deltas (symbol, ts)`,
		`CREATE TABLE IF NOT EXISTS raw_archives (
			day          DATE   NOT NULL,
			symbol       TEXT   NOT NULL,
			data_type    TEXT   NOT NULL,
			location     TEXT   NOT NULL,
			byte_size    BIGINT NOT NULL,
			record_count INT    NOT NULL,
			checksum     TEXT   NOT NULL,
			PRIMARY KEY (day, symbol, data_type)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertIntraday(ctx context.Context, rows []models.IntradayOIRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO intraday_oi
			(symbol, ts, strike, option_type, open_interest, oi_change, last_price, volume, data_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, ts, strike, option_type) DO UPDATE SET
				open_interest = EXCLUDED.open_interest,
				oi_change     = EXCLUDED.oi_change,
				last_price    = EXCLUDED.last_price,
				volume        = EXCLUDED.volume,
				data_source   = EXCLUDED.data_source`,
			r.Symbol, r.Timestamp, r.Strike, string(r.OptionType),
			r.OpenInterest, r.OIChange, r.LastPrice, r.Volume, r.DataSource)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert intraday: %w", err)
	}
	logger.IncrementRowsUpserted(len(rows))
	return nil
}

func (s *Store) UpsertDaily(ctx context.Context, rows []models.DailyOIRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO daily_oi
			(symbol, day, strike, option_type, open_interest, oi_change, close_price, volume, data_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, day, strike, option_type) DO UPDATE SET
				open_interest = EXCLUDED.open_interest,
				oi_change     = EXCLUDED.oi_change,
				close_price   = EXCLUDED.close_price,
				volume        = EXCLUDED.volume,
				data_source   = EXCLUDED.data_source`,
			r.Symbol, r.Date, r.Strike, string(r.OptionType),
			r.OpenInterest, r.OIChange, r.ClosePrice, r.Volume, r.DataSource)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("upsert daily: %w", err)
	}
	logger.IncrementRowsUpserted(len(rows))
	return nil
}

func (s *Store) InsertDeltas(ctx context.Context, records []models.OIDeltaRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`INSERT INTO oi_deltas
			(symbol, strike, option_type, ts, old_oi, new_oi, delta_oi, percent_change, trigger_reason, severity, data_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			r.Symbol, r.Strike, string(r.OptionType), r.Timestamp,
			r.OldOI, r.NewOI, r.DeltaOI, r.PercentChange,
			string(r.TriggerReason), string(r.Severity), r.DataSource)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert deltas: %w", err)
	}
	return nil
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) IntradayOI(ctx context.Context, symbol string, from, to time.Time) ([]models.IntradayOIRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, ts, strike, option_type, open_interest, oi_change, last_price, volume, data_source
		FROM intraday_oi WHERE symbol = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts, strike, option_type`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query intraday: %w", err)
	}
	defer rows.Close()

	var out []models.IntradayOIRow
	for rows.Next() {
		var r models.IntradayOIRow
		var optionType string
		if err := rows.Scan(&r.Symbol, &r.Timestamp, &r.Strike, &optionType,
			&r.OpenInterest, &r.OIChange, &r.LastPrice, &r.Volume, &r.DataSource); err != nil {
			return nil, err
		}
		r.OptionType = models.OptionType(optionType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DailyOI(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyOIRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, day, strike, option_type, open_interest, oi_change, close_price, volume, data_source
		FROM daily_oi WHERE symbol = $1 AND day >= $2 AND day < $3
		ORDER BY day, strike, option_type`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily: %w", err)
	}
	defer rows.Close()

	var out []models.DailyOIRow
	for rows.Next() {
		var r models.DailyOIRow
		var optionType string
		if err := rows.Scan(&r.Symbol, &r.Date, &r.Strike, &optionType,
			&r.OpenInterest, &r.OIChange, &r.ClosePrice, &r.Volume, &r.DataSource); err != nil {
			return nil, err
		}
		r.OptionType = models.OptionType(optionType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) OIDeltas(ctx context.Context, symbol string, from, to time.Time) ([]models.OIDeltaRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, strike, option_type, ts, old_oi, new_oi, delta_oi, percent_change, trigger_reason, severity, data_source
		FROM oi_deltas WHERE symbol = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts, strike`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query deltas: %w", err)
	}
	defer rows.Close()

	var out []models.OIDeltaRecord
	for rows.Next() {
		var r models.OIDeltaRecord
		var optionType, trigger, severity string
		if err := rows.Scan(&r.Symbol, &r.Strike, &optionType, &r.Timestamp,
			&r.OldOI, &r.NewOI, &r.DeltaOI, &r.PercentChange,
			&trigger, &severity, &r.DataSource); err != nil {
			return nil, err
		}
		r.OptionType = models.OptionType(optionType)
		r.TriggerReason = models.TriggerReason(trigger)
		r.Severity = models.DeltaSeverity(severity)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) IntradayRowCount(ctx context.Context, symbol string, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM intraday_oi
		WHERE symbol = $1 AND ts >= $2 AND ts < $3`, symbol, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count intraday: %w", err)
	}
	return count, nil
}

func (s *Store) InsertArchive(ctx context.Context, rec models.RawArchiveRecord) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO raw_archives
		(day, symbol, data_type, location, byte_size, record_count, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (day, symbol, data_type) DO UPDATE SET
			location     = EXCLUDED.location,
			byte_size    = EXCLUDED.byte_size,
			record_count = EXCLUDED.record_count,
			checksum     = EXCLUDED.checksum`,
		rec.Date, rec.Symbol, rec.DataType, rec.Location, rec.ByteSize, rec.RecordCount, rec.Checksum)
	if err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}
	return nil
}

func (s *Store) Archives(ctx context.Context, symbol string, day time.Time) ([]models.RawArchiveRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT day, symbol, data_type, location, byte_size, record_count, checksum
		FROM raw_archives WHERE symbol = $1 AND day = $2`, symbol, day)
	if err != nil {
		return nil, fmt.Errorf("query archives: %w", err)
	}
	defer rows.Close()

	var out []models.RawArchiveRecord
	for rows.Next() {
		var r models.RawArchiveRecord
		if err := rows.Scan(&r.Date, &r.Symbol, &r.DataType, &r.Location,
			&r.ByteSize, &r.RecordCount, &r.Checksum); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() {
	s.pool.Close()
}
