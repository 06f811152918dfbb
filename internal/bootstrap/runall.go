// Package bootstrap starts the goroutines that feed the device loop.
package bootstrap

import (
	"context"
	"log"
	"sync"
	"time"

	"sid-sync/internal/config"
	"sid-sync/internal/mqtt"
	"sid-sync/internal/registry"
	"sid-sync/internal/tty"
	"sid-sync/internal/web"
)

// Services are the optional side subsystems. Nil entries are skipped.
type Services struct {
	Registry *registry.Store
	MQTT     *mqtt.Client
	Web      *web.Server
	Wire     chan<- tty.Level
}

// RunAll runs the side subsystems until ctx ends. A web server failure
// stops the rest and is returned; the others only log.
func RunAll(ctx context.Context, cfg *config.Config, s Services) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	// 1) Master liveness
	if s.Registry != nil {
		interval := cfg.BTTFN.Liveness / 3
		if interval <= 0 {
			interval = 10 * time.Second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Registry.StartMonitoring(ctx, interval, cfg.BTTFN.Liveness)
		}()
		log.Printf("[Bootstrap] peer monitoring started (interval: %s)", interval)
	}

	// 2) Wire line
	if s.Wire != nil && cfg.Wire.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tty.Start(ctx, tty.Config{Device: cfg.Wire.Device}, s.Wire); err != nil && ctx.Err() == nil {
				log.Printf("[wire] reader stopped: %v", err)
			}
		}()
	} else {
		log.Printf("[wire] disabled")
	}

	// 3) MQTT
	if s.MQTT != nil && cfg.MQTT.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.MQTT.Run(ctx); err != nil {
				log.Printf("[mqtt] stopped: %v", err)
			}
		}()
	} else {
		log.Printf("[mqtt] disabled")
	}

	// 4) Web
	if s.Web != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Web.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		cancel()
	}
	wg.Wait()
	return err
}
