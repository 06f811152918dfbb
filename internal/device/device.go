// Package device assembles the prop: it owns the loop and everything the
// loop mutates, and feeds it from the network, the wire line, MQTT and
// the web inbox.
package device

import (
	"errors"
	"log"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"sid-sync/internal/animation"
	"sid-sync/internal/baseline"
	"sid-sync/internal/bttfn"
	"sid-sync/internal/config"
	"sid-sync/internal/display"
	"sid-sync/internal/events"
	"sid-sync/internal/hub"
	"sid-sync/internal/mqtt"
	"sid-sync/internal/registry"
	"sid-sync/internal/remote"
	"sid-sync/internal/scheduler"
	"sid-sync/internal/sequencer"
	"sid-sync/internal/state"
	"sid-sync/internal/tty"
)

// Inbox is the hub inbox the device drains.
const Inbox = "device"

// Hub command types.
const (
	CmdTimeTravel = "timetravel"
	CmdRemote     = "command"
	CmdKeypad     = "keypad"
)

var (
	ErrBusy       = errors.New("device: sequence running or input locked")
	ErrPoweredOff = errors.New("device: powered off")
)

// Deps are the device's collaborators. Only Config is required.
type Deps struct {
	Config   *config.Config
	Settings state.Settings
	Clock    scheduler.Clock
	Rand     *rand.Rand

	Conn  bttfn.Conn  // nil disables BTTFN
	NetUp func() bool // nil means always up

	Events   events.Buffer
	Registry *registry.Store
	Hub      *hub.Hub
	MQTT     <-chan mqtt.Message
	Wire     <-chan tty.Level
	Recorder display.Recorder

	LocalIP func() string
	Restart func()
}

// Device is the whole prop. All state below is owned by the loop.
type Device struct {
	cfg  *config.Config
	deps Deps
	loop *scheduler.Loop

	base  *baseline.State
	panel *display.Panel
	anim  *animation.Driver
	sa    *animation.Analyzer
	seq   *sequencer.Sequencer
	btt   *bttfn.Client

	cmds     remote.Queue
	settings state.Settings
	saver    *state.Saver

	wire      tty.Line
	powered   bool
	nightMode bool
	fakeOff   bool
	lastSpeed int
	runID     string

	mu     sync.RWMutex
	status Status
}

func New(deps Deps) *Device {
	cfg := deps.Config
	if deps.Clock == nil {
		deps.Clock = scheduler.SystemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Events == nil {
		deps.Events = events.NewRing(256)
	}
	if deps.Hub == nil {
		deps.Hub = hub.New()
	}
	if deps.LocalIP == nil {
		deps.LocalIP = func() string { return localIP(cfg.LANIfName) }
	}

	d := &Device{
		cfg:       cfg,
		deps:      deps,
		loop:      scheduler.New(deps.Clock, cfg.Tick),
		powered:   true,
		lastSpeed: -1,
		settings:  deps.Settings,
		saver:     state.NewSaver(cfg.StatePath, state.SaveDelay),
	}

	d.base = &baseline.State{
		Mode:       baseline.IdleMode(d.settings.IdleMode),
		StrictMode: d.settings.Strict,
	}
	d.panel = display.NewPanel(deps.Recorder)
	d.anim = animation.NewDriver(d.panel, d.base, animation.Options{
		ScreenSaver: cfg.Sequencer.ScreenSaver,
		Brightness:  uint8(d.settings.Brightness),
		Speed:       d.speed,
		Wait:        d.loop.Delay,
		Now:         deps.Clock.Now,
		Rand:        deps.Rand,
	})
	d.sa = animation.NewAnalyzer(d.panel, deps.Rand)
	d.sa.SetPeaks(d.settings.Peaks)

	d.seq = sequencer.New(d.base, d.anim, d.sa, sequencer.Options{
		SkipAnimation: cfg.Sequencer.SkipAnimation,
		WireLevel:     d.wire.High,
		UsingSpeed:    func() bool { return d.speed() >= 0 },
		BeforeRun:     d.beforeRun,
		OnPhase:       d.onPhase,
		Rand:          deps.Rand,
	})
	d.seq.SetLocked(d.settings.IRLocked)

	conn := deps.Conn
	bo := bttfn.Options{
		Enabled:         cfg.BTTFN.Enabled && conn != nil,
		Master:          cfg.BTTFN.Master,
		HostName:        cfg.HostName,
		Port:            cfg.BTTFN.Port,
		Group:           net.ParseIP(cfg.BTTFN.MulticastGroup),
		MulticastPort:   cfg.BTTFN.MulticastPort,
		PollInterval:    cfg.BTTFN.PollInterval,
		ResponseTimeout: cfg.BTTFN.ResponseTimeout,
		MaxFailures:     cfg.BTTFN.MaxFailures,
		Liveness:        cfg.BTTFN.Liveness,
		BootLiveness:    cfg.BTTFN.BootLiveness,
		Wired:           cfg.Wire.Enabled,
		Keypad:          cfg.BTTFN.Keypad,
	}
	if conn == nil {
		conn = nullConn{}
	}
	d.btt = bttfn.New(bo, conn, d, deps.NetUp)
	if deps.Registry != nil {
		d.btt.OnPeer(func(from *net.UDPAddr, host string, at time.Time) {
			deps.Registry.Seen(from.String(), host, from.IP.String(), from.Port, at)
		})
	}

	d.loop.Add("inputs", d.drainInputs)
	d.loop.Add("bttfn", d.btt.Poll)
	d.loop.Add("follow", d.follow)
	d.loop.Add("remote", d.runRemote)
	d.loop.Add("seq", d.seq.Step)
	d.loop.Add("settings", d.pollSettings)
	d.loop.Add("publish", d.publish)
	d.loop.SetService(d.btt.Service)

	d.publish(deps.Clock.Now())
	return d
}

// Loop returns the device loop; run it with Loop().Run.
func (d *Device) Loop() *scheduler.Loop { return d.loop }

// Panel returns the display model.
func (d *Device) Panel() *display.Panel { return d.panel }

// Shutdown writes pending settings. Call after the loop stopped.
func (d *Device) Shutdown() {
	if err := d.saver.Flush(d.settings); err != nil {
		log.Printf("[state] save on shutdown: %v", err)
	}
}

// speed returns the remote speed when speed following is on, else -1.
func (d *Device) speed() int {
	if !d.cfg.Sequencer.UseSpeed || !d.btt.Connected() {
		return -1
	}
	if v, ok := d.btt.CurrentRemoteSpeed(); ok {
		return v
	}
	return -1
}

func (d *Device) beforeRun() {
	if err := d.saver.Flush(d.settings); err != nil {
		log.Printf("[state] save before run: %v", err)
	}
}

func (d *Device) onPhase(from, to sequencer.Phase, external bool) {
	if from == sequencer.Idle {
		d.runID = uuid.NewString()
	}
	detail := from.String() + " -> " + to.String()
	if external {
		detail += " (external)"
	}
	d.event(events.SourceSequencer, "phase", detail)
	if to == sequencer.Idle {
		d.runID = ""
	}
}

func (d *Device) event(source, topic, detail string) {
	d.deps.Events.Push(events.Event{
		Source: source,
		Topic:  topic,
		Detail: detail,
		RunID:  d.runID,
		Time:   d.deps.Clock.Now(),
	})
}

func (d *Device) pollSettings(now time.Time) {
	if err := d.saver.Poll(now, d.settings); err != nil {
		log.Printf("[state] save: %v", err)
	}
}

func (d *Device) settingsChanged() { d.saver.Changed(d.deps.Clock.Now()) }

type nullConn struct{}

func (nullConn) TrySend([]byte, *net.UDPAddr) error { return nil }
func (nullConn) TryReceive() (bttfn.Datagram, bool) { return bttfn.Datagram{}, false }

func localIP(ifname string) string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, ifi := range ifaces {
		if ifname != "" && ifi.Name != ifname {
			continue
		}
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil {
				return ipn.IP.String()
			}
		}
	}
	return ""
}
