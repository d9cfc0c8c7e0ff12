package channel

import (
	"context"
	"time"

	"optionflow/internal/channel/sig"
	"optionflow/internal/channel/snap"
	"optionflow/logger"
)

// Channels bundles the outbound channels between the core pipeline and the
// delivery collaborators (dashboards, alerting).
type Channels struct {
	Snapshots *snap.Channels
	Signals   *sig.Channels

	log *logger.Log
}

func NewChannels(snapshotBuffer, signalBuffer int) *Channels {
	return &Channels{
		Snapshots: snap.NewChannels(snapshotBuffer),
		Signals:   sig.NewChannels(signalBuffer),
		log:       logger.GetLogger(),
	}
}

func (c *Channels) Close() {
	if c.Snapshots != nil {
		c.Snapshots.Close()
	}
	if c.Signals != nil {
		c.Signals.Close()
	}
}

// StartMetricsReporting periodically logs channel throughput and occupancy.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				c.logChannelStats()
			}
		}
	}()
}

func (c *Channels) logChannelStats() {
	snapStats := c.Snapshots.GetStats()
	sigStats := c.Signals.GetStats()

	c.log.WithComponent("channels").WithFields(logger.Fields{
		"snapshots_sent":       snapStats.Sent,
		"snapshots_dropped":    snapStats.Dropped,
		"signals_sent":         sigStats.Sent,
		"signals_dropped":      sigStats.Dropped,
		"snapshot_channel_len": len(c.Snapshots.Out),
		"snapshot_channel_cap": cap(c.Snapshots.Out),
		"signal_channel_len":   len(c.Signals.Out),
		"signal_channel_cap":   cap(c.Signals.Out),
	}).Info("channel statistics")
}
