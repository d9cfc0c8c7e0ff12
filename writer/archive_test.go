package writer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "optionflow/config"
	"optionflow/models"
)

func testSnapshot(ts time.Time) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:       "NIFTY",
		Timestamp:    ts,
		CurrentPrice: 24450,
		DataSource:   "nse",
		Chain: []models.StrikeSnapshot{
			{
				Strike: 24400,
				Call:   models.OptionLeg{OpenInterest: 80000, OIChange: 15000, LastPrice: 120, Volume: 20000},
				Put:    models.OptionLeg{OpenInterest: 60000, OIChange: -2000, LastPrice: 95, Volume: 11000},
			},
			{
				Strike: 24500,
				Call:   models.OptionLeg{OpenInterest: 50000, LastPrice: 70, Volume: 9000},
			},
		},
	}
}

func TestArchiveSnapshotsLocal(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchiver(context.Background(), appconfig.S3Config{LocalDir: dir})
	require.NoError(t, err)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	ts := day.Add(15*time.Hour + 25*time.Minute)

	rec, err := a.ArchiveSnapshots(context.Background(), "NIFTY", day, []*models.MarketSnapshot{testSnapshot(ts)})
	require.NoError(t, err)

	assert.Equal(t, "NIFTY", rec.Symbol)
	assert.Equal(t, "raw_snapshots", rec.DataType)
	// Two strikes, both legs each.
	assert.Equal(t, 4, rec.RecordCount)
	assert.Greater(t, rec.ByteSize, int64(0))

	data, err := os.ReadFile(rec.Location)
	require.NoError(t, err)
	assert.Equal(t, rec.ByteSize, int64(len(data)))

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Checksum)
}

func TestArchiveSnapshotsRewriteSameDay(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchiver(context.Background(), appconfig.S3Config{LocalDir: dir})
	require.NoError(t, err)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	snaps := []*models.MarketSnapshot{testSnapshot(day.Add(15 * time.Hour))}

	first, err := a.ArchiveSnapshots(context.Background(), "NIFTY", day, snaps)
	require.NoError(t, err)
	second, err := a.ArchiveSnapshots(context.Background(), "NIFTY", day, snaps)
	require.NoError(t, err)

	// Re-running the rollup overwrites the same object.
	assert.Equal(t, first.Location, second.Location)
}

func TestArchiveSnapshotsEmpty(t *testing.T) {
	a, err := NewArchiver(context.Background(), appconfig.S3Config{LocalDir: t.TempDir()})
	require.NoError(t, err)

	_, err = a.ArchiveSnapshots(context.Background(), "NIFTY", time.Now(), nil)
	assert.Error(t, err)
}

func TestNewArchiverRequiresDestination(t *testing.T) {
	_, err := NewArchiver(context.Background(), appconfig.S3Config{})
	assert.Error(t, err)
}
