package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os/signal"
	"syscall"

	"sid-sync/internal/bootstrap"
	"sid-sync/internal/bttfn"
	"sid-sync/internal/config"
	"sid-sync/internal/device"
	"sid-sync/internal/display"
	"sid-sync/internal/events"
	"sid-sync/internal/hub"
	"sid-sync/internal/mqtt"
	"sid-sync/internal/registry"
	"sid-sync/internal/state"
	"sid-sync/internal/tty"
	"sid-sync/internal/web"
)

var errRestart = errors.New("restart requested")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	for {
		err := run(ctx)
		if errors.Is(err, errRestart) {
			log.Printf("[main] restarting")
			continue
		}
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}
}

func run(parent context.Context) error {
	log.Printf("start Load config")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	defaults := state.Settings{
		IdleMode:   cfg.Sequencer.IdleMode,
		Strict:     cfg.Sequencer.Strict,
		Brightness: cfg.Sequencer.Brightness,
	}
	st, err := state.LoadOrInit(cfg.StatePath, defaults)
	if err != nil {
		log.Fatalf("state: %v", err)
	}

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	var conn bttfn.Conn
	if cfg.BTTFN.Enabled {
		t, err := bttfn.NewUDPTransport(ctx, bttfn.TransportConfig{
			Port:            cfg.BTTFN.Port,
			Group:           net.ParseIP(cfg.BTTFN.MulticastGroup),
			MulticastPort:   cfg.BTTFN.MulticastPort,
			Iface:           cfg.LANIfName,
			ListenMulticast: cfg.BTTFN.ListenMulticast,
		})
		if err != nil {
			return err
		}
		conn = t
	} else {
		log.Printf("[bttfn] disabled")
	}

	var rec display.Recorder
	if cfg.FramesCSV != "" {
		csv, err := display.OpenCSV(cfg.FramesCSV)
		if err != nil {
			log.Printf("[display] frame log disabled: %v", err)
		} else {
			defer csv.Close()
			rec = csv
		}
	}

	var mq *mqtt.Client
	var mqttIn <-chan mqtt.Message
	if cfg.MQTT.Enabled {
		mq = mqtt.New(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
		})
		mqttIn = mq.Messages()
	}

	wire := make(chan tty.Level, 16)
	evbuf := events.NewRing(1024)
	hb := hub.New()
	reg := registry.NewStore()

	dev := device.New(device.Deps{
		Config:   cfg,
		Settings: *st,
		Conn:     conn,
		NetUp:    bttfn.InterfaceUp(cfg.LANIfName),
		Events:   evbuf,
		Registry: reg,
		Hub:      hb,
		MQTT:     mqttIn,
		Wire:     wire,
		Recorder: rec,
		Restart:  func() { cancel(errRestart) },
	})

	log.Printf("[cfg] host=%q web=%s:%d bttfn=%v master=%q wire=%v mqtt=%v",
		cfg.HostName, cfg.Web.Host, cfg.Web.Port, cfg.BTTFN.Enabled, cfg.BTTFN.Master, cfg.Wire.Enabled, cfg.MQTT.Enabled)

	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.RunAll(ctx, cfg, bootstrap.Services{
			Registry: reg,
			MQTT:     mq,
			Web:      web.New(cfg.Web, dev, evbuf, hb),
			Wire:     wire,
		})
	}()

	// The loop runs on this goroutine until ctx ends.
	_ = dev.Loop().Run(ctx)
	dev.Shutdown()

	if err := <-errCh; err != nil {
		return err
	}
	if cause := context.Cause(ctx); errors.Is(cause, errRestart) {
		return errRestart
	}
	return nil
}
