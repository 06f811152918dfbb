package device

import (
	"time"

	"sid-sync/internal/display"
	"sid-sync/internal/events"
	"sid-sync/internal/registry"
)

type RunStatus struct {
	External  bool      `json:"external"`
	Network   bool      `json:"network"`
	Start     time.Time `json:"start"`
	Remaining int       `json:"remaining_steps"`
	DelayMs   int64     `json:"delay_ms"`
	StepMs    int64     `json:"interval_ms"`
	ID        string    `json:"id,omitempty"`
}

type LinkStatus struct {
	Enabled   bool      `json:"enabled"`
	Connected bool      `json:"connected"`
	Master    string    `json:"master,omitempty"`
	Failures  int       `json:"failures"`
	LastSeen  time.Time `json:"last_seen"`
	Keypad    bool      `json:"keypad"`
}

type RemoteStatus struct {
	Speed         int       `json:"speed"`
	NightMode     bool      `json:"night_mode"`
	FakePowerOff  bool      `json:"fake_power_off"`
	RotaryEncoder bool      `json:"rotary_encoder"`
	ClockAt       time.Time `json:"clock_at"`
}

type BaselineStatus struct {
	Free       int    `json:"free"`
	Strict     int    `json:"strict"`
	StrictMode bool   `json:"strict_mode"`
	Mode       string `json:"mode"`
}

type AnalyzerStatus struct {
	Active bool `json:"active"`
	Amp    int  `json:"amp"`
	Peaks  bool `json:"peaks"`
}

// Status is the published view of the device, refreshed every tick.
type Status struct {
	Time        time.Time      `json:"time"`
	Phase       string         `json:"phase"`
	Run         *RunStatus     `json:"run,omitempty"`
	Powered     bool           `json:"powered"`
	Locked      bool           `json:"locked"`
	ScreenSaver bool           `json:"screen_saver"`
	Wire        bool           `json:"wire"`
	Pending     int            `json:"pending_commands"`
	Link        LinkStatus     `json:"link"`
	Remote      RemoteStatus   `json:"remote"`
	Baseline    BaselineStatus `json:"baseline"`
	Analyzer    AnalyzerStatus `json:"analyzer"`
}

func (d *Device) publish(now time.Time) {
	snap := d.seq.Snapshot()
	link := d.btt.Link()
	rs := d.btt.Status()

	st := Status{
		Time:        now,
		Phase:       snap.Phase.String(),
		Powered:     d.powered,
		Locked:      snap.Locked,
		ScreenSaver: d.anim.ScreenSaverActive(),
		Wire:        d.wire.High(),
		Pending:     d.cmds.Len(),
		Link: LinkStatus{
			Enabled:   d.btt.Enabled(),
			Connected: d.btt.Connected(),
			Failures:  link.Failures,
			LastSeen:  link.LastPacket,
			Keypad:    d.btt.KeypadReady(),
		},
		Remote: RemoteStatus{
			Speed:         rs.Speed,
			NightMode:     rs.NightMode,
			FakePowerOff:  rs.FakePowerOff,
			RotaryEncoder: rs.RotaryEncoder,
			ClockAt:       rs.DateAt,
		},
		Baseline: BaselineStatus{
			Free:       d.base.Free,
			Strict:     d.base.Strict,
			StrictMode: d.base.StrictMode,
			Mode:       d.base.Mode.String(),
		},
		Analyzer: AnalyzerStatus{
			Active: d.sa.Active(),
			Amp:    d.sa.AmpFactor(),
			Peaks:  d.sa.Peaks(),
		},
	}
	if link.Master != nil {
		st.Link.Master = link.Master.String()
	}
	if d.seq.IsSequenceRunning() {
		st.Run = &RunStatus{
			External:  snap.External,
			Network:   snap.Network,
			Start:     snap.Start,
			Remaining: snap.Remaining,
			DelayMs:   snap.Delay.Milliseconds(),
			StepMs:    snap.Interval.Milliseconds(),
			ID:        d.runID,
		}
	}

	d.mu.Lock()
	d.status = st
	d.mu.Unlock()
}

// Status returns the last published status. Safe from any goroutine.
func (d *Device) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Events exposes the event log.
func (d *Device) Events() events.Buffer { return d.deps.Events }

// Peers lists known masters.
func (d *Device) Peers() []registry.Peer {
	if d.deps.Registry == nil {
		return nil
	}
	return d.deps.Registry.List()
}

// Display returns what the panel shows.
func (d *Device) Display() display.Snapshot { return d.panel.Snapshot() }
