package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sid-sync/internal/bttfn"
	"sid-sync/internal/events"
	"sid-sync/internal/hub"
	"sid-sync/internal/mqtt"
	"sid-sync/internal/sequencer"
	"sid-sync/internal/tty"
)

const (
	maxHubPerTick  = 8
	maxMQTTPerTick = 4
)

// mqttLead is the lead announced for TCD triggers seen over MQTT, which
// carry no lead of their own.
var mqttLead = uint16(sequencer.DefaultLead / time.Millisecond)

// remotePayload is the body of a CmdRemote hub command.
type remotePayload struct {
	Code uint32 `json:"code"`
}

// KeypadPayload is the body of a CmdKeypad hub command: one key press,
// or the end of the keypad session.
type KeypadPayload struct {
	Key *uint8 `json:"key,omitempty"`
	End bool   `json:"end,omitempty"`
}

func (d *Device) drainInputs(now time.Time) {
	for _, c := range d.deps.Hub.Drain(Inbox, maxHubPerTick) {
		d.handleHub(now, c)
	}
	if d.deps.MQTT != nil {
	mqttLoop:
		for i := 0; i < maxMQTTPerTick; i++ {
			select {
			case m := <-d.deps.MQTT:
				d.handleMQTT(now, m)
			default:
				break mqttLoop
			}
		}
	}
	for d.deps.Wire != nil {
		select {
		case lv := <-d.deps.Wire:
			d.handleWire(now, lv)
		default:
			return
		}
	}
}

func (d *Device) handleHub(now time.Time, c hub.Command) {
	switch c.Type {
	case CmdTimeTravel:
		if err := d.TriggerLocal(now); err != nil {
			log.Printf("[web] time travel %s: %v", c.ID, err)
			d.event(events.SourceWeb, "timetravel", err.Error())
		}
	case CmdRemote:
		var p remotePayload
		if err := json.Unmarshal(c.Payload, &p); err != nil {
			log.Printf("[web] command %s: bad payload: %v", c.ID, err)
			return
		}
		d.QueueCommand(p.Code)
	case CmdKeypad:
		var p KeypadPayload
		if err := json.Unmarshal(c.Payload, &p); err != nil {
			log.Printf("[web] keypad %s: bad payload: %v", c.ID, err)
			return
		}
		if err := d.Keypad(p); err != nil {
			log.Printf("[web] keypad %s: %v", c.ID, err)
			d.event(events.SourceWeb, "keypad", err.Error())
		}
	default:
		log.Printf("[web] unknown command type %q", c.Type)
	}
}

func (d *Device) handleMQTT(now time.Time, m mqtt.Message) {
	switch m.Topic {
	case mqtt.TopicTCD:
		ev, ok := mqtt.ParseEvent(m.Payload)
		if !ok {
			return
		}
		d.event(events.SourceMQTT, ev.String(), "")
		n := bttfn.Notification{Host: "mqtt"}
		switch ev {
		case mqtt.EventPrepare:
			n.Kind = bttfn.NotPrepare
		case mqtt.EventTimeTravel:
			n.Kind, n.Lead = bttfn.NotTimeTravel, mqttLead
		case mqtt.EventReentry:
			n.Kind = bttfn.NotReentry
		case mqtt.EventAbort:
			n.Kind = bttfn.NotAbort
		case mqtt.EventAlarm:
			n.Kind = bttfn.NotAlarm
		case mqtt.EventWakeup:
			n.Kind = bttfn.NotWakeup
		}
		d.btt.Dispatch(n)

	case mqtt.TopicCmd:
		if d.seq.IsSequenceRunning() || d.IsLocked() {
			return
		}
		cmd, ok := mqtt.ParseCommand(m.Payload)
		if !ok {
			return
		}
		d.event(events.SourceMQTT, "command", string(m.Payload))
		switch cmd.Kind {
		case mqtt.CmdTimeTravel:
			// Like the button, but never forwarded to the TCD.
			d.anim.EndScreenSaver()
			d.seq.RequestTimeTravel(now, false, 0)
		case mqtt.CmdIdleMode:
			_ = d.SetIdleMode(cmd.Mode)
		case mqtt.CmdIdle:
			d.StopSideModes()
		case mqtt.CmdAnalyzer:
			d.StartAnalyzer()
		}
	}
}

func (d *Device) handleWire(now time.Time, lv tty.Level) {
	if lv.Input != tty.TTInput {
		return
	}
	if !d.wire.Set(lv.High) {
		return
	}
	d.event(events.SourceWire, "trigger", "")
	if d.IsLocked() || d.seq.IsSequenceRunning() {
		return
	}
	d.anim.EndScreenSaver()
	d.seq.RequestTimeTravel(now, true, d.cfg.LeadTime())
}

// TriggerLocal handles a local time travel request (button, console or
// web). With a connected TCD that honors network triggers the request is
// forwarded and the TCD starts the run everywhere.
func (d *Device) TriggerLocal(now time.Time) error {
	if !d.powered {
		return ErrPoweredOff
	}
	if d.seq.IsSequenceRunning() || d.seq.IsLocked() {
		return ErrBusy
	}
	if d.cfg.BTTFN.NetworkTT && !d.cfg.Wire.Enabled && d.btt.Connected() {
		err := d.btt.TriggerTimeTravel()
		if err == nil {
			d.event(events.SourceBTTFN, "trigger-sent", "")
			return nil
		}
		if !errors.Is(err, bttfn.ErrNotConnected) {
			return fmt.Errorf("forward trigger: %w", err)
		}
	}
	d.anim.EndScreenSaver()
	if !d.seq.RequestTimeTravel(now, false, 0) {
		return ErrBusy
	}
	return nil
}

// Keypad forwards a key press or the session end to the TCD keypad.
func (d *Device) Keypad(p KeypadPayload) error {
	if p.End {
		if err := d.btt.EndKeypad(); err != nil {
			return fmt.Errorf("end keypad: %w", err)
		}
		d.event(events.SourceBTTFN, "keypad-end", "")
		return nil
	}
	if p.Key == nil {
		return errors.New("keypad: no key")
	}
	if err := d.btt.SendKey(*p.Key); err != nil {
		return fmt.Errorf("send key %d: %w", *p.Key, err)
	}
	d.event(events.SourceBTTFN, "keypad-key", fmt.Sprintf("%d", *p.Key))
	return nil
}
