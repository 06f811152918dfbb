package device

import (
	"log"
	"time"

	"sid-sync/internal/events"
)

// follow applies what the TCD reports: night mode, fake power and speed
// changes from a rotary encoder.
func (d *Device) follow(time.Time) {
	st := d.btt.Status()

	if d.cfg.Sequencer.FollowNightMode && st.NightMode != d.nightMode {
		d.nightMode = st.NightMode
		d.anim.SetNightMode(st.NightMode)
		d.event(events.SourceBTTFN, "night-mode", onOff(st.NightMode))
	}

	if d.cfg.Sequencer.FollowFakePower && st.FakePowerOff != d.fakeOff {
		d.fakeOff = st.FakePowerOff
		if d.fakeOff {
			d.powerOff()
		} else {
			d.powerOn()
		}
	}

	if sp := d.speed(); sp != d.lastSpeed {
		if d.powered && st.RotaryEncoder && sp >= 0 && !d.seq.IsSequenceRunning() {
			d.anim.EndScreenSaver()
		}
		d.lastSpeed = sp
	}
}

func (d *Device) powerOff() {
	if !d.powered {
		return
	}
	d.seq.Halt()
	d.seq.ClearPending()
	d.sa.Deactivate()
	d.anim.PowerOff()
	d.powered = false
	log.Printf("[device] fake power off")
	d.event(events.SourceBTTFN, "power", "off")
}

func (d *Device) powerOn() {
	if d.powered {
		return
	}
	d.powered = true
	d.anim.PowerOn()
	log.Printf("[device] fake power on")
	d.event(events.SourceBTTFN, "power", "on")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
