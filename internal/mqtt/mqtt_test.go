package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	cases := map[string]Event{
		"PREPARE":         EventPrepare,
		"timetravel":      EventTimeTravel,
		"TimeTravel_5000": EventTimeTravel,
		"REENTRY":         EventReentry,
		"abort_tt":        EventAbort,
		"ALARM":           EventAlarm,
		" wakeup\n":       EventWakeup,
	}
	for in, want := range cases {
		got, ok := ParseEvent([]byte(in))
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "ABORT", "TIME", "hello"} {
		_, ok := ParseEvent([]byte(in))
		assert.False(t, ok, in)
	}
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"TIMETRAVEL": {Kind: CmdTimeTravel},
		"idle_0":     {Kind: CmdIdleMode, Mode: 0},
		"IDLE_3":     {Kind: CmdIdleMode, Mode: 3},
		"IDLE_5":     {Kind: CmdIdleMode, Mode: 5},
		"IDLE":       {Kind: CmdIdle},
		"idle_9":     {Kind: CmdIdle},
		"sa":         {Kind: CmdAnalyzer},
	}
	for in, want := range cases {
		got, ok := ParseCommand([]byte(in))
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseCommand([]byte("PLAY"))
	assert.False(t, ok)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "abort_tt", EventAbort.String())
	assert.Equal(t, "unknown", Event(0).String())
	assert.Equal(t, "unknown", Event(99).String())
}

func TestDeliverDropsWhenFull(t *testing.T) {
	c := New(Options{Broker: "localhost", Queue: 1})
	assert.Contains(t, c.opts.ClientID, "sid-")

	c.deliver(Message{Topic: TopicTCD, Payload: []byte("ALARM")})
	c.deliver(Message{Topic: TopicCmd, Payload: []byte("SA")})
	assert.Equal(t, uint64(1), c.Dropped())

	m := <-c.Messages()
	assert.Equal(t, TopicTCD, m.Topic)
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://broker.lan:1883", brokerURL("broker.lan"))
	assert.Equal(t, "tcp://10.0.0.2:8883", brokerURL("10.0.0.2:8883"))
}
