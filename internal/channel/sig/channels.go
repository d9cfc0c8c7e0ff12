package sig

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

// Channels carries ranked pattern-signal batches to alerting collaborators.
type Channels struct {
	Out chan []models.PatternSignal

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(bufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Out: make(chan []models.PatternSignal, bufferSize),
		log: log,
	}

	log.WithComponent("signal_channels").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("signal channel initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Out)
	c.log.WithComponent("signal_channels").Info("signal channel closed")
}

func (c *Channels) Send(ctx context.Context, signals []models.PatternSignal) bool {
	if len(signals) == 0 {
		return true
	}
	select {
	case c.Out <- signals:
		c.statsMutex.Lock()
		c.stats.Sent++
		c.statsMutex.Unlock()
		logger.RecordChannelMessage("signal_out", len(signals))
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
