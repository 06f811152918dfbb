package registry

import (
	"context"
	"log"
	"time"
)

// StartMonitoring marks peers offline once they have been silent longer
// than window, and online again when they speak.
func (s *Store) StartMonitoring(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.checkPeers(now, window)
		}
	}
}

func (s *Store) checkPeers(now time.Time, window time.Duration) {
	for _, p := range s.List() {
		online := now.Sub(p.LastSeen) <= window

		// Log edges only.
		if p.Online != online {
			s.SetOnline(p.ID, online)
			if online {
				log.Printf("[Monitor] Peer %s (%s) is ONLINE", p.ID, p.Host)
			} else {
				log.Printf("[Monitor] Peer %s (%s) is OFFLINE", p.ID, p.Host)
			}
		}
	}
}
