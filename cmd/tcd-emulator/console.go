package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"sid-sync/internal/bttfn"
)

var errUsage = errors.New("usage: tt [lead] | reentry | abort | alarm | prepare | wakeup | speed <n|off> | night on|off | power on|off | rotenc on|off | cmd <code>")

// exec runs one console line against the master.
func (m *master) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil
	}

	verb := strings.ToLower(args[0])
	switch verb {
	case "tt", "timetravel":
		lead := uint16(5000)
		if len(args) > 1 {
			v, err := strconv.ParseUint(args[1], 10, 16)
			if err != nil {
				return errUsage
			}
			lead = uint16(v)
		}
		m.timeTravel(lead)
	case "reentry":
		m.notify(bttfn.Notification{Kind: bttfn.NotReentry})
	case "abort":
		m.notify(bttfn.Notification{Kind: bttfn.NotAbort})
	case "alarm":
		m.notify(bttfn.Notification{Kind: bttfn.NotAlarm})
	case "prepare":
		m.notify(bttfn.Notification{Kind: bttfn.NotPrepare})
	case "wakeup":
		m.notify(bttfn.Notification{Kind: bttfn.NotWakeup})
	case "speed":
		if len(args) != 2 {
			return errUsage
		}
		if args[1] == "off" {
			m.setSpeed(-1)
			return nil
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 || v > bttfn.MaxSpeed {
			return errUsage
		}
		m.setSpeed(int16(v))
	case "night", "power", "rotenc":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return errUsage
		}
		on := args[1] == "on"
		switch verb {
		case "night":
			m.setNight(on)
		case "power":
			m.setFakeOff(!on)
		default:
			m.setRotEnc(on)
		}
	case "cmd":
		if len(args) != 2 {
			return errUsage
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil || v == 0 {
			return errUsage
		}
		m.notify(bttfn.Notification{Kind: bttfn.NotSIDCmd, Command: uint32(v)})
	default:
		return errUsage
	}
	return nil
}

// console reads commands from r until EOF or ctx ends.
func (m *master) console(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := m.exec(sc.Text()); err != nil {
			log.Printf("[tcd] %v", err)
		}
	}
}
