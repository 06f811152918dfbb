// Package events keeps a bounded log of what the device did: phase
// changes, link changes, notifications and commands.
package events

import (
	"sync"
	"time"
)

// Sources.
const (
	SourceSequencer = "seq"
	SourceBTTFN     = "bttfn"
	SourceMQTT      = "mqtt"
	SourceWire      = "wire"
	SourceRemote    = "remote"
	SourceWeb       = "web"
)

type Event struct {
	Source string    `json:"source"`
	Topic  string    `json:"topic"`
	Detail string    `json:"detail,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
	Time   time.Time `json:"time"`
}

type Buffer interface {
	Push(e Event)
	Pull(after time.Time, max int) []Event
	Len() int
}

type ring struct {
	mu   sync.RWMutex
	data []Event
	size int
}

func NewRing(size int) Buffer {
	if size <= 0 {
		size = 1
	}
	return &ring{data: make([]Event, 0, size), size: size}
}

func (r *ring) Push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == r.size {
		copy(r.data, r.data[1:])
		r.data = r.data[:len(r.data)-1]
	}
	r.data = append(r.data, e)
}

// Pull returns up to max events newer than after, oldest first. When
// more match, the newest are kept.
func (r *ring) Pull(after time.Time, max int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, 0, max)
	for i := len(r.data) - 1; i >= 0 && len(out) < max; i-- {
		if r.data[i].Time.After(after) {
			out = append(out, r.data[i])
		}
	}
	for l, rgt := 0, len(out)-1; l < rgt; l, rgt = l+1, rgt-1 {
		out[l], out[rgt] = out[rgt], out[l]
	}
	return out
}

func (r *ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
