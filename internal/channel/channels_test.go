package channel

import (
	"context"
	"testing"
	"time"

	"optionflow/models"
)

func TestNewChannels(t *testing.T) {
	c := NewChannels(1, 1)
	if c.Snapshots == nil || c.Signals == nil {
		t.Fatalf("expected non-nil sub channels")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.StartMetricsReporting(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	c.Close()
}

func TestSnapshotSendDropsWhenFull(t *testing.T) {
	c := NewChannels(1, 1)
	defer c.Close()

	ctx := context.Background()
	snap := models.MarketSnapshot{Symbol: "NIFTY"}

	if !c.Snapshots.Send(ctx, snap) {
		t.Fatal("first send should succeed")
	}
	if c.Snapshots.Send(ctx, snap) {
		t.Fatal("second send should drop on a full buffer")
	}

	stats := c.Snapshots.GetStats()
	if stats.Sent != 1 || stats.Dropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSignalSendEmptyBatchIsNoop(t *testing.T) {
	c := NewChannels(1, 1)
	defer c.Close()

	if !c.Signals.Send(context.Background(), nil) {
		t.Fatal("empty batch should be accepted without occupying the buffer")
	}
	if len(c.Signals.Out) != 0 {
		t.Fatal("empty batch must not be enqueued")
	}
}
