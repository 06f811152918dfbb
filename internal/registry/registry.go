// Package registry keeps the TCDs this device has heard from.
package registry

import (
	"sort"
	"sync"
	"time"
)

type Peer struct {
	ID        string    `json:"id"` // ip:port
	Host      string    `json:"host"`
	IP        string    `json:"ip"`
	Port      int       `json:"port"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Packets   uint64    `json:"packets"`
	Online    bool      `json:"online"`
}

type Store struct {
	mu   sync.RWMutex
	data map[string]Peer
}

func NewStore() *Store {
	return &Store{data: map[string]Peer{}}
}

func (s *Store) Get(id string) (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[id]
	return v, ok
}

// Seen records a valid packet from a peer. A new or returning peer is
// marked online by the monitor's next check.
func (s *Store) Seen(id, host, ip string, port int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[id]
	if !ok {
		v = Peer{ID: id, IP: ip, Port: port, FirstSeen: at}
	}
	if host != "" {
		v.Host = host
	}
	v.LastSeen = at
	v.Packets++
	s.data[id] = v
}

func (s *Store) SetOnline(id string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[id]
	if !ok {
		return
	}
	v.Online = online
	s.data[id] = v
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}

// List returns all peers, most recently seen first.
func (s *Store) List() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Peer, 0, len(s.data))
	for _, v := range s.data {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}
