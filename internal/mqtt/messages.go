// Package mqtt connects to a broker for the TCD's published events and
// for user commands addressed to this device.
package mqtt

import (
	"bytes"
	"strings"
)

// Topics.
const (
	TopicTCD = "bttf/tcd/pub"
	TopicCmd = "bttf/sid/cmd"
)

// Event is a TCD event from TopicTCD.
type Event int

const (
	EventPrepare Event = iota + 1
	EventTimeTravel
	EventReentry
	EventAbort
	EventAlarm
	EventWakeup
)

func (e Event) String() string {
	if e < EventPrepare || int(e) > len(tcdEvents) {
		return "unknown"
	}
	return strings.ToLower(tcdEvents[e-1])
}

// Order matters: the first prefix that matches wins.
var tcdEvents = []string{
	"PREPARE",
	"TIMETRAVEL",
	"REENTRY",
	"ABORT_TT",
	"ALARM",
	"WAKEUP",
}

// CommandKind is a user command from TopicCmd.
type CommandKind int

const (
	CmdTimeTravel CommandKind = iota + 1
	CmdIdleMode
	CmdIdle
	CmdAnalyzer
)

// Command is a parsed user command. Mode is set for CmdIdleMode.
type Command struct {
	Kind CommandKind
	Mode int
}

var userCommands = []string{
	"TIMETRAVEL",
	"IDLE_0",
	"IDLE_1",
	"IDLE_2",
	"IDLE_3",
	"IDLE_4",
	"IDLE_5",
	"IDLE",
	"SA",
}

// ParseEvent matches a TCD payload. Matching is case-insensitive on the
// payload prefix, so trailing data is allowed.
func ParseEvent(payload []byte) (Event, bool) {
	i := match(payload, tcdEvents)
	if i < 0 {
		return 0, false
	}
	return Event(i + 1), true
}

// ParseCommand matches a user command payload.
func ParseCommand(payload []byte) (Command, bool) {
	switch i := match(payload, userCommands); {
	case i < 0:
		return Command{}, false
	case i == 0:
		return Command{Kind: CmdTimeTravel}, true
	case i <= 6:
		return Command{Kind: CmdIdleMode, Mode: i - 1}, true
	case i == 7:
		return Command{Kind: CmdIdle}, true
	default:
		return Command{Kind: CmdAnalyzer}, true
	}
}

func match(payload []byte, list []string) int {
	p := bytes.ToUpper(bytes.TrimSpace(payload))
	for i, s := range list {
		if bytes.HasPrefix(p, []byte(s)) {
			return i
		}
	}
	return -1
}
