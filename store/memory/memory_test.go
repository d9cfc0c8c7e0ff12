package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionflow/models"
)

func TestUpsertIntradayIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)

	row := models.IntradayOIRow{
		Symbol:       "NIFTY",
		Timestamp:    ts,
		Strike:       24400,
		OptionType:   models.OptionCall,
		OpenInterest: 80000,
		DataSource:   "nse",
	}
	require.NoError(t, s.UpsertIntraday(ctx, []models.IntradayOIRow{row}))

	// Retried write on the same key replaces, never duplicates.
	row.OpenInterest = 81000
	require.NoError(t, s.UpsertIntraday(ctx, []models.IntradayOIRow{row}))

	rows, err := s.IntradayOI(ctx, "NIFTY", ts.Add(-time.Minute), ts.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(81000), rows[0].OpenInterest)
}

func TestUpsertDailyIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	row := models.DailyOIRow{
		Symbol:     "NIFTY",
		Date:       day,
		Strike:     24400,
		OptionType: models.OptionPut,
		ClosePrice: 110,
	}
	require.NoError(t, s.UpsertDaily(ctx, []models.DailyOIRow{row}))
	row.ClosePrice = 115
	require.NoError(t, s.UpsertDaily(ctx, []models.DailyOIRow{row}))

	rows, err := s.DailyOI(ctx, "NIFTY", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 115.0, rows[0].ClosePrice)
}

func TestIntradayRangeAndOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)

	var rows []models.IntradayOIRow
	for i := 0; i < 3; i++ {
		rows = append(rows, models.IntradayOIRow{
			Symbol:     "NIFTY",
			Timestamp:  base.Add(time.Duration(2-i) * time.Minute),
			Strike:     24400,
			OptionType: models.OptionCall,
		})
	}
	require.NoError(t, s.UpsertIntraday(ctx, rows))

	got, err := s.IntradayOI(ctx, "NIFTY", base, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestIntradayRowCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertIntraday(ctx, []models.IntradayOIRow{
		{Symbol: "NIFTY", Timestamp: day.Add(10 * time.Hour), Strike: 24400, OptionType: models.OptionCall},
		{Symbol: "NIFTY", Timestamp: day.Add(11 * time.Hour), Strike: 24400, OptionType: models.OptionCall},
		{Symbol: "NIFTY", Timestamp: day.AddDate(0, 0, 1).Add(time.Hour), Strike: 24400, OptionType: models.OptionCall},
		{Symbol: "BANKNIFTY", Timestamp: day.Add(10 * time.Hour), Strike: 52000, OptionType: models.OptionPut},
	}))

	count, err := s.IntradayRowCount(ctx, "NIFTY", day)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeltasAppendAndQuery(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	recs := []models.OIDeltaRecord{
		{Symbol: "NIFTY", Strike: 24400, OptionType: models.OptionCall, Timestamp: ts, DeltaOI: 500},
		{Symbol: "NIFTY", Strike: 24400, OptionType: models.OptionCall, Timestamp: ts, DeltaOI: 500},
	}
	require.NoError(t, s.InsertDeltas(ctx, recs))

	got, err := s.OIDeltas(ctx, "NIFTY", ts.Add(-time.Minute), ts.Add(time.Minute))
	require.NoError(t, err)
	// The delta log keeps duplicates; it is append-only.
	assert.Len(t, got, 2)
}

func TestArchiveUpsertOnKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	rec := models.RawArchiveRecord{
		Date: day, Symbol: "NIFTY", DataType: "raw_snapshots",
		Location: "s3://bucket/a.parquet", RecordCount: 10,
	}
	require.NoError(t, s.InsertArchive(ctx, rec))
	rec.Location = "s3://bucket/b.parquet"
	require.NoError(t, s.InsertArchive(ctx, rec))

	got, err := s.Archives(ctx, "NIFTY", day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s3://bucket/b.parquet", got[0].Location)
}
