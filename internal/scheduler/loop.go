// Package scheduler drives the device: one cooperative loop that runs
// its tasks in a fixed order every tick. Everything that changes device
// state runs on it.
package scheduler

import (
	"context"
	"log"
	"time"
)

// Task is one stage of a tick.
type Task func(now time.Time)

type namedTask struct {
	name string
	fn   Task
}

// Loop runs tasks in the order they were added.
type Loop struct {
	clock   Clock
	period  time.Duration
	slice   time.Duration
	tasks   []namedTask
	service Task

	ticks   uint64
	inDelay bool
}

// New builds a loop ticking every period.
func New(clock Clock, period time.Duration) *Loop {
	if clock == nil {
		clock = SystemClock{}
	}
	if period <= 0 {
		period = 5 * time.Millisecond
	}
	return &Loop{clock: clock, period: period, slice: period}
}

// Add appends a task to every tick.
func (l *Loop) Add(name string, fn Task) {
	l.tasks = append(l.tasks, namedTask{name: name, fn: fn})
}

// SetService sets the background step run while a task waits in Delay.
// It must not start new waits.
func (l *Loop) SetService(fn Task) { l.service = fn }

func (l *Loop) Now() time.Time { return l.clock.Now() }

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 { return l.ticks }

// Tick runs all tasks once.
func (l *Loop) Tick() {
	now := l.clock.Now()
	for _, t := range l.tasks {
		t.fn(now)
	}
	l.ticks++
}

// Delay blocks the calling task for d. The service step keeps running
// so the network link stays alive during effects that take time.
func (l *Loop) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	nested := l.inDelay
	l.inDelay = true
	defer func() { l.inDelay = nested }()

	end := l.clock.Now().Add(d)
	for {
		now := l.clock.Now()
		if !now.Before(end) {
			return
		}
		if l.service != nil && !nested {
			l.service(now)
		}
		step := end.Sub(now)
		if step > l.slice {
			step = l.slice
		}
		l.clock.Sleep(step)
	}
}

// Run ticks until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	names := make([]string, len(l.tasks))
	for i, t := range l.tasks {
		names[i] = t.name
	}
	log.Printf("[loop] started, period=%v tasks=%v", l.period, names)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[loop] stopped after %d ticks", l.ticks)
			return nil
		default:
		}
		l.Tick()
		l.clock.Sleep(l.period)
	}
}
