package device

import (
	"errors"
	"log"
	"time"

	"sid-sync/internal/baseline"
	"sid-sync/internal/events"
	"sid-sync/internal/remote"
)

// ErrNoIRReceiver is returned for IR key maintenance; this device has no
// IR receiver.
var ErrNoIRReceiver = errors.New("device: no IR receiver")

var _ remote.Actions = (*Device)(nil)

func (d *Device) runRemote(time.Time) {
	if d.seq.IsSequenceRunning() {
		return
	}
	cmd, ok := d.cmds.Pop()
	if !ok {
		return
	}
	// Any command counts as activity.
	d.anim.EndScreenSaver()
	if err := remote.Handle(cmd, d); err != nil {
		d.event(events.SourceRemote, "error", remote.Format(cmd)+": "+err.Error())
		return
	}
	if cmd >= 10 {
		d.event(events.SourceRemote, "executed", remote.Format(cmd))
	}
}

func (d *Device) MaxIdleMode() int { return int(baseline.MaxIdleMode) }

func (d *Device) Running() bool { return d.seq.IsSequenceRunning() }

// SetIdleMode selects the idle pattern and leaves side modes.
func (d *Device) SetIdleMode(mode int) error {
	if mode < 0 || mode > d.MaxIdleMode() {
		return remote.ErrBadInput
	}
	d.sa.Deactivate()
	d.base.Mode = baseline.IdleMode(mode)
	d.anim.ResetMaskedText()
	d.settings.IdleMode = mode
	d.settingsChanged()
	log.Printf("[remote] idle mode %s", d.base.Mode)
	return nil
}

// StopSideModes returns to the idle pattern.
func (d *Device) StopSideModes() {
	if d.sa.Active() {
		d.sa.Deactivate()
		d.anim.ResetMaskedText()
	}
}

func (d *Device) StartAnalyzer() { d.sa.Activate() }

func (d *Device) ToggleStrict() {
	d.base.StrictMode = !d.base.StrictMode
	d.settings.Strict = d.base.StrictMode
	d.settingsChanged()
	log.Printf("[remote] strict mode %v", d.base.StrictMode)
}

func (d *Device) TogglePeaks() {
	d.sa.SetPeaks(!d.sa.Peaks())
	d.settings.Peaks = d.sa.Peaks()
	d.settingsChanged()
}

// ToggleIRLock locks or unlocks trigger inputs.
func (d *Device) ToggleIRLock() {
	locked := !d.seq.IsLocked()
	d.seq.SetLocked(locked)
	d.settings.IRLocked = locked
	d.settingsChanged()
	log.Printf("[remote] input lock %v", locked)
}

func (d *Device) ShowIP() {
	ip := d.deps.LocalIP()
	if ip == "" {
		ip = "0.0.0.0"
	}
	d.anim.ShowWord(ip, 300*time.Millisecond)
}

func (d *Device) Restart() {
	log.Printf("[remote] restart requested")
	d.Shutdown()
	if d.deps.Restart != nil {
		d.deps.Restart()
	}
}

// ForgetNetwork drops learned peers and the discovered master.
func (d *Device) ForgetNetwork() error {
	d.btt.Forget()
	if d.deps.Registry != nil {
		for _, p := range d.deps.Registry.List() {
			d.deps.Registry.Remove(p.ID)
		}
	}
	return nil
}

func (d *Device) ForgetIRKeys() error { return ErrNoIRReceiver }
