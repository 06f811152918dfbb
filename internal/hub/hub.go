// Package hub hands commands from other goroutines (web, console) to
// the device loop, which drains its inbox once per tick.
package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrFull is returned when an inbox has no room.
var ErrFull = errors.New("hub: inbox full")

const inboxSize = 64

type Command struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

type inbox struct {
	q    chan Command
	last time.Time
}

type Hub struct {
	mu  sync.RWMutex
	box map[string]*inbox
}

func New() *Hub { return &Hub{box: map[string]*inbox{}} }

func (h *Hub) get(name string) *inbox {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.box[name]
	if !ok {
		b = &inbox{q: make(chan Command, inboxSize)}
		h.box[name] = b
	}
	return b
}

// Enqueue adds c to the named inbox and returns its id. Commands
// without an id get a fresh one.
func (h *Hub) Enqueue(name string, c Command) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Time.IsZero() {
		c.Time = time.Now()
	}
	b := h.get(name)
	select {
	case b.q <- c:
		return c.ID, nil
	default:
		return "", ErrFull
	}
}

// Drain takes up to max queued commands without blocking.
func (h *Hub) Drain(name string, max int) []Command {
	b := h.get(name)
	var cmds []Command
	for len(cmds) < max {
		select {
		case c := <-b.q:
			cmds = append(cmds, c)
		default:
			h.touch(b)
			return cmds
		}
	}
	h.touch(b)
	return cmds
}

func (h *Hub) touch(b *inbox) {
	h.mu.Lock()
	b.last = time.Now()
	h.mu.Unlock()
}

// Pending is the number of queued commands.
func (h *Hub) Pending(name string) int { return len(h.get(name).q) }

// LastDrained is when the inbox was last emptied; zero if never.
func (h *Hub) LastDrained(name string) time.Time {
	b := h.get(name)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return b.last
}
