package snap

import (
	"context"
	"sync"

	"optionflow/logger"
	"optionflow/models"
)

type ChannelStats struct {
	Sent    int64
	Dropped int64
}

// Channels carries acquired market snapshots from the orchestrator to
// delivery collaborators. Sends never block a poll cycle; a full buffer
// drops the message and counts it.
type Channels struct {
	Out chan models.MarketSnapshot

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(bufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Out: make(chan models.MarketSnapshot, bufferSize),
		log: log,
	}

	log.WithComponent("snapshot_channels").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("snapshot channel initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Out)
	c.log.WithComponent("snapshot_channels").Info("snapshot channel closed")
}

func (c *Channels) Send(ctx context.Context, snap models.MarketSnapshot) bool {
	select {
	case c.Out <- snap:
		c.statsMutex.Lock()
		c.stats.Sent++
		c.statsMutex.Unlock()
		logger.RecordChannelMessage("snapshot_out", len(snap.Chain))
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.Dropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
