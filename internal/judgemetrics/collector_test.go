package judgemetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit_IsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
	assert.NotNil(t, QueueDepth)
}

type stubSource struct {
	busy, idle, queueSize int
}

func (s stubSource) Stats() (busy, idle, queueSize int) {
	return s.busy, s.idle, s.queueSize
}

func TestCollector_Run_SamplesImmediatelyAndOnTick(t *testing.T) {
	Init()
	c := NewCollector(stubSource{busy: 2, idle: 3, queueSize: 7}, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c.Run(ctx)

	assert.Equal(t, float64(2), testutil.ToFloat64(WorkersBusy))
	assert.Equal(t, float64(3), testutil.ToFloat64(WorkersIdle))
	assert.Equal(t, float64(7), testutil.ToFloat64(QueueDepth))
}

func TestNewCollector_DefaultsIntervalWhenNonPositive(t *testing.T) {
	c := NewCollector(stubSource{}, 0)
	assert.Equal(t, 5*time.Second, c.interval)
}
