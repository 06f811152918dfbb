package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTickOrder(t *testing.T) {
	clk := NewManualClock(t0)
	l := New(clk, 10*time.Millisecond)
	var order []string
	l.Add("poll", func(time.Time) { order = append(order, "poll") })
	l.Add("step", func(time.Time) { order = append(order, "step") })

	l.Tick()
	l.Tick()
	assert.Equal(t, []string{"poll", "step", "poll", "step"}, order)
	assert.Equal(t, uint64(2), l.Ticks())
}

func TestDelayRunsServiceOnly(t *testing.T) {
	clk := NewManualClock(t0)
	l := New(clk, 10*time.Millisecond)
	ticks, services := 0, 0
	l.Add("step", func(time.Time) { ticks++ })
	l.SetService(func(time.Time) { services++ })

	l.Delay(100 * time.Millisecond)
	assert.Equal(t, 0, ticks)
	assert.Equal(t, 10, services)
	assert.Equal(t, t0.Add(100*time.Millisecond), clk.Now())
}

func TestNestedDelaySkipsService(t *testing.T) {
	clk := NewManualClock(t0)
	l := New(clk, 10*time.Millisecond)
	services := 0
	l.SetService(func(time.Time) {
		services++
		l.Delay(5 * time.Millisecond)
	})

	l.Delay(20 * time.Millisecond)
	// Each service call also waits 5 ms, nested without service.
	assert.Equal(t, 2, services)
}

func TestDelayZero(t *testing.T) {
	clk := NewManualClock(t0)
	l := New(clk, 0)
	l.Delay(0)
	l.Delay(-time.Second)
	assert.Equal(t, t0, clk.Now())
}

func TestRunStopsOnCancel(t *testing.T) {
	clk := NewManualClock(t0)
	l := New(clk, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	l.Add("stop", func(time.Time) {
		if l.Ticks() == 4 {
			cancel()
		}
	})
	require.NoError(t, l.Run(ctx))
	assert.Equal(t, uint64(5), l.Ticks())
}
