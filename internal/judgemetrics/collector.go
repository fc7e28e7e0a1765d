package judgemetrics

import (
	"context"
	"time"
)

// StatsSource decouples the collector from the worker package (which
// itself depends on judgemetrics to record verdicts and phase timings) —
// cmd/judged adapts *worker.Pool.Stats() into this shape.
type StatsSource interface {
	Stats() (busy, idle, queueSize int)
}

// Collector is a ticker-based business-metrics poller, grounded on the
// teacher's BusinessMetricsCollector: it owns no state of its own, just
// samples a stats source on an interval and writes the gauges.
type Collector struct {
	source   StatsSource
	interval time.Duration
}

// NewCollector builds a Collector sampling source every interval.
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Collector{source: source, interval: interval}
}

// Run samples until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	busy, idle, queueSize := c.source.Stats()
	QueueDepth.Set(float64(queueSize))
	WorkersBusy.Set(float64(busy))
	WorkersIdle.Set(float64(idle))
}
