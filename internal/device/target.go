package device

import (
	"strconv"

	"sid-sync/internal/events"
)

// The device is the BTTFN client's target. Gating on wire mode and run
// state happens in the client; the device adds fake power.

func (d *Device) IsSequenceRunning() bool { return d.seq.IsSequenceRunning() }
func (d *Device) IsNetworkSequence() bool { return d.seq.IsNetworkSequence() }

// IsLocked reports whether new triggers are refused.
func (d *Device) IsLocked() bool { return d.seq.IsLocked() || !d.powered }

func (d *Device) NotifyTimeTravel(lead uint16) {
	d.event(events.SourceBTTFN, "timetravel", "lead "+strconv.Itoa(int(lead))+"ms")
	d.seq.NotifyTimeTravel(lead)
}

func (d *Device) NotifyReentry() {
	d.event(events.SourceBTTFN, "reentry", "")
	d.seq.NotifyReentry()
}

func (d *Device) NotifyAbort() {
	d.event(events.SourceBTTFN, "abort", "")
	d.seq.NotifyAbort()
}

func (d *Device) NotifyAlarm() {
	d.event(events.SourceBTTFN, "alarm", "")
	if d.powered {
		d.seq.NotifyAlarm()
	}
}

func (d *Device) NotifyPrepare() {
	d.event(events.SourceBTTFN, "prepare", "")
	d.seq.NotifyPrepare()
}

func (d *Device) NotifyWakeup() {
	d.seq.NotifyWakeup()
}

// QueueCommand queues a remote command for the loop.
func (d *Device) QueueCommand(cmd uint32) {
	d.event(events.SourceRemote, "queued", strconv.FormatUint(uint64(cmd), 10))
	d.cmds.Push(cmd)
}
