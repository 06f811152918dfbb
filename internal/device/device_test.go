package device

import (
	"encoding/json"
	"math/rand"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sid-sync/internal/bttfn"
	"sid-sync/internal/config"
	"sid-sync/internal/events"
	"sid-sync/internal/hub"
	"sid-sync/internal/mqtt"
	"sid-sync/internal/registry"
	"sid-sync/internal/scheduler"
	"sid-sync/internal/state"
	"sid-sync/internal/tty"
)

const masterIP = "192.168.4.1"

type memConn struct {
	sent [][]byte
	in   []bttfn.Datagram
}

func (m *memConn) TrySend(b []byte, _ *net.UDPAddr) error {
	m.sent = append(m.sent, append([]byte(nil), b...))
	return nil
}

func (m *memConn) TryReceive() (bttfn.Datagram, bool) {
	if len(m.in) == 0 {
		return bttfn.Datagram{}, false
	}
	d := m.in[0]
	m.in = m.in[1:]
	return d, true
}

func (m *memConn) push(b [bttfn.PacketSize]byte) {
	m.in = append(m.in, bttfn.Datagram{
		Data: b[:],
		From: &net.UDPAddr{IP: net.ParseIP(masterIP).To4(), Port: bttfn.DefaultPort},
	})
}

type rig struct {
	dev  *Device
	clk  *scheduler.ManualClock
	conn *memConn
	hub  *hub.Hub
	evs  events.Buffer
	reg  *registry.Store
	mqtt chan mqtt.Message
	wire chan tty.Level
	cfg  *config.Config
}

func newRig(t *testing.T, tweak func(*config.Config)) *rig {
	t.Helper()
	cfg := config.Defaults()
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")
	cfg.BTTFN.Master = ""
	if tweak != nil {
		tweak(cfg)
	}
	r := &rig{
		clk:  scheduler.NewManualClock(time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)),
		conn: &memConn{},
		hub:  hub.New(),
		evs:  events.NewRing(256),
		reg:  registry.NewStore(),
		mqtt: make(chan mqtt.Message, 8),
		wire: make(chan tty.Level, 8),
		cfg:  cfg,
	}
	r.dev = New(Deps{
		Config:   cfg,
		Settings: state.Settings{Strict: true, Brightness: 15},
		Clock:    r.clk,
		Rand:     rand.New(rand.NewSource(7)),
		Conn:     r.conn,
		Events:   r.evs,
		Registry: r.reg,
		Hub:      r.hub,
		MQTT:     r.mqtt,
		Wire:     r.wire,
		LocalIP:  func() string { return "10.0.0.5" },
	})
	return r
}

func (r *rig) tick() {
	r.dev.Loop().Tick()
	r.clk.Advance(10 * time.Millisecond)
}

func (r *rig) run(d time.Duration) {
	end := r.clk.Now().Add(d)
	for r.clk.Now().Before(end) {
		r.tick()
	}
}

// answer responds to the outstanding request.
func (r *rig) answer(status uint8) {
	r.conn.push(bttfn.Response{
		Flags:  bttfn.ReqDefault,
		ID:     r.dev.btt.Link().RequestID,
		Speed:  -1,
		Status: status,
	}.Encode())
}

func (r *rig) connect(t *testing.T) {
	t.Helper()
	r.tick()
	r.answer(0)
	r.tick()
	require.True(t, r.dev.btt.Connected())
}

func (r *rig) notify(n bttfn.Notification) { r.conn.push(n.Encode()) }

func (r *rig) topics(source string) []string {
	var out []string
	for _, e := range r.evs.Pull(time.Time{}, 256) {
		if e.Source == source {
			out = append(out, e.Topic)
		}
	}
	return out
}

func TestStandaloneRunFromWeb(t *testing.T) {
	r := newRig(t, nil)
	_, err := r.hub.Enqueue(Inbox, hub.Command{Type: CmdTimeTravel})
	require.NoError(t, err)

	r.tick()
	st := r.dev.Status()
	assert.Equal(t, "accelerate", st.Phase)
	require.NotNil(t, st.Run)
	assert.False(t, st.Run.External)
	assert.NotEmpty(t, st.Run.ID)

	r.run(11 * time.Second)
	st = r.dev.Status()
	assert.Equal(t, "idle", st.Phase)
	assert.Nil(t, st.Run)

	evs := r.evs.Pull(time.Time{}, 256)
	var phases []string
	for _, e := range evs {
		if e.Source == events.SourceSequencer {
			phases = append(phases, e.Detail)
			assert.NotEmpty(t, e.RunID)
		}
	}
	assert.Equal(t, []string{"idle -> accelerate", "accelerate -> tunnel", "tunnel -> reentry", "reentry -> idle"}, phases)
}

func TestNetworkRun(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.BTTFN.Master = masterIP })
	r.connect(t)
	require.NotEmpty(t, r.reg.List(), "master recorded as peer")

	r.notify(bttfn.Notification{Kind: bttfn.NotTimeTravel, Lead: 5000})
	r.tick()
	st := r.dev.Status()
	require.Equal(t, "accelerate", st.Phase)
	assert.True(t, st.Run.External)
	assert.True(t, st.Run.Network)

	r.run(6 * time.Second)
	assert.Equal(t, "tunnel", r.dev.Status().Phase, "network tunnel holds until reentry")

	r.notify(bttfn.Notification{Kind: bttfn.NotReentry})
	r.run(200 * time.Millisecond)
	assert.Equal(t, "idle", r.dev.Status().Phase)
	assert.Contains(t, r.topics(events.SourceBTTFN), "reentry")
}

func TestLocalTriggerForwardedToMaster(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.BTTFN.Master = masterIP })
	r.connect(t)

	require.NoError(t, r.dev.TriggerLocal(r.clk.Now()))
	p, err := bttfn.Decode(r.conn.sent[len(r.conn.sent)-1])
	require.NoError(t, err)
	cmd, ok := p.Command()
	require.True(t, ok)
	assert.Equal(t, bttfn.CmdTriggerTT, cmd.Kind)
	assert.Equal(t, uint32(1), cmd.Seq)
	assert.False(t, r.dev.IsSequenceRunning(), "the master starts the run")
}

func TestLocalTriggerStandaloneWithoutNetworkTT(t *testing.T) {
	r := newRig(t, func(c *config.Config) {
		c.BTTFN.Master = masterIP
		c.BTTFN.NetworkTT = false
	})
	r.connect(t)
	require.NoError(t, r.dev.TriggerLocal(r.clk.Now()))
	assert.True(t, r.dev.IsSequenceRunning())
	assert.False(t, r.dev.IsNetworkSequence())
	assert.ErrorIs(t, r.dev.TriggerLocal(r.clk.Now()), ErrBusy)
}

func TestRemoteCommandFromMaster(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.BTTFN.Master = masterIP })
	r.connect(t)

	r.notify(bttfn.Notification{Kind: bttfn.NotSIDCmd, Command: 13})
	r.tick()
	r.tick()
	assert.Equal(t, "idle-3", r.dev.Status().Baseline.Mode)
	assert.Contains(t, r.topics(events.SourceRemote), "executed")

	r.run(11 * time.Second)
	s, err := state.LoadOrInit(r.cfg.StatePath, state.Settings{})
	require.NoError(t, err)
	assert.Equal(t, 3, s.IdleMode)
}

func TestRemoteCommandFromWeb(t *testing.T) {
	r := newRig(t, nil)
	_, err := r.hub.Enqueue(Inbox, hub.Command{Type: CmdRemote, Payload: json.RawMessage(`{"code":50}`)})
	require.NoError(t, err)
	r.tick()
	r.tick()
	assert.False(t, r.dev.Status().Baseline.StrictMode, "strict toggled off")

	_, err = r.hub.Enqueue(Inbox, hub.Command{Type: CmdRemote, Payload: json.RawMessage(`{"code":99}`)})
	require.NoError(t, err)
	r.tick()
	r.tick()
	assert.Contains(t, r.topics(events.SourceRemote), "error")
}

func TestMQTTInputs(t *testing.T) {
	r := newRig(t, nil)

	r.mqtt <- mqtt.Message{Topic: mqtt.TopicCmd, Payload: []byte("idle_2")}
	r.tick()
	assert.Equal(t, "idle-2", r.dev.Status().Baseline.Mode)

	r.mqtt <- mqtt.Message{Topic: mqtt.TopicTCD, Payload: []byte("TIMETRAVEL")}
	r.tick()
	st := r.dev.Status()
	require.Equal(t, "accelerate", st.Phase)
	assert.True(t, st.Run.Network)

	r.mqtt <- mqtt.Message{Topic: mqtt.TopicCmd, Payload: []byte("SA")}
	r.tick()
	assert.False(t, r.dev.Status().Analyzer.Active, "commands ignored during a run")

	r.mqtt <- mqtt.Message{Topic: mqtt.TopicTCD, Payload: []byte("ABORT_TT")}
	r.run(200 * time.Millisecond)
	assert.Equal(t, "idle", r.dev.Status().Phase)
}

func TestWiredRun(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Wire.Enabled = true })

	r.wire <- tty.Level{Input: tty.TTInput, High: true}
	r.tick()
	st := r.dev.Status()
	require.Equal(t, "accelerate", st.Phase)
	assert.True(t, st.Run.External)
	assert.False(t, st.Run.Network)
	assert.True(t, st.Wire)

	r.run(8 * time.Second)
	assert.Equal(t, "tunnel", r.dev.Status().Phase)

	r.wire <- tty.Level{Input: tty.TTInput, High: false}
	r.run(100 * time.Millisecond)
	assert.Equal(t, "idle", r.dev.Status().Phase)
}

func TestWiredMasterIgnoresNetworkTrigger(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.Wire.Enabled = true })
	r.mqtt <- mqtt.Message{Topic: mqtt.TopicTCD, Payload: []byte("TIMETRAVEL")}
	r.tick()
	r.tick()
	assert.Equal(t, "idle", r.dev.Status().Phase)
}

func TestFollowFakePower(t *testing.T) {
	r := newRig(t, func(c *config.Config) {
		c.BTTFN.Master = masterIP
		c.Sequencer.FollowFakePower = true
	})
	r.tick()
	r.answer(bttfn.StatusFakeOff)
	r.tick()

	st := r.dev.Status()
	assert.False(t, st.Powered)
	assert.True(t, r.dev.IsLocked())
	assert.False(t, r.dev.Panel().IsOn())
	assert.ErrorIs(t, r.dev.TriggerLocal(r.clk.Now()), ErrPoweredOff)

	r.run(1100 * time.Millisecond)
	r.answer(0)
	r.tick()
	assert.True(t, r.dev.Status().Powered)
	assert.True(t, r.dev.Panel().IsOn())
}

func TestInputLock(t *testing.T) {
	r := newRig(t, nil)
	r.dev.ToggleIRLock()
	assert.True(t, r.dev.IsLocked())
	assert.ErrorIs(t, r.dev.TriggerLocal(r.clk.Now()), ErrBusy)

	r.mqtt <- mqtt.Message{Topic: mqtt.TopicTCD, Payload: []byte("TIMETRAVEL")}
	r.tick()
	assert.Equal(t, "idle", r.dev.Status().Phase)

	r.dev.Shutdown()
	s, err := state.LoadOrInit(r.cfg.StatePath, state.Settings{})
	require.NoError(t, err)
	assert.True(t, s.IRLocked)
}

func TestForgetNetwork(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.BTTFN.Master = masterIP })
	r.connect(t)
	require.NotEmpty(t, r.dev.Peers())

	require.NoError(t, r.dev.ForgetNetwork())
	assert.Empty(t, r.dev.Peers())
	assert.False(t, r.dev.btt.Connected())
	assert.ErrorIs(t, r.dev.ForgetIRKeys(), ErrNoIRReceiver)
}

func TestKeypadFromWeb(t *testing.T) {
	r := newRig(t, func(c *config.Config) {
		c.BTTFN.Master = masterIP
		c.BTTFN.Keypad = true
	})

	// Without advertised caps the keypad stays closed.
	key := uint8(7)
	assert.ErrorIs(t, r.dev.Keypad(KeypadPayload{Key: &key}), bttfn.ErrNotConnected)

	r.tick()
	r.conn.push(bttfn.Response{
		Flags: bttfn.ReqDefault | bttfn.ReqCaps,
		ID:    r.dev.btt.Link().RequestID,
		Speed: -1,
		Caps:  bttfn.CapKeypad | bttfn.CapKeypadAllowed,
	}.Encode())
	r.tick()
	require.True(t, r.dev.Status().Link.Keypad)

	_, err := r.hub.Enqueue(Inbox, hub.Command{Type: CmdKeypad, Payload: json.RawMessage(`{"key":7}`)})
	require.NoError(t, err)
	_, err = r.hub.Enqueue(Inbox, hub.Command{Type: CmdKeypad, Payload: json.RawMessage(`{"end":true}`)})
	require.NoError(t, err)
	r.tick()

	var cmds []bttfn.Command
	for _, b := range r.conn.sent {
		p, err := bttfn.Decode(b)
		require.NoError(t, err)
		if c, ok := p.Command(); ok {
			cmds = append(cmds, c)
		}
	}
	require.Len(t, cmds, 2)
	assert.Equal(t, bttfn.CmdKeypadKey, cmds[0].Kind)
	assert.Equal(t, uint8(7), cmds[0].Arg)
	assert.Equal(t, uint32(1), cmds[0].Seq)
	assert.Equal(t, bttfn.CmdKeypadEnd, cmds[1].Kind)
	assert.Equal(t, uint32(1), cmds[1].Seq)
	assert.Contains(t, r.topics(events.SourceBTTFN), "keypad-key")
}

func TestKeypadUnavailable(t *testing.T) {
	r := newRig(t, func(c *config.Config) { c.BTTFN.Master = masterIP })
	r.connect(t)

	key := uint8(1)
	assert.ErrorIs(t, r.dev.Keypad(KeypadPayload{Key: &key}), bttfn.ErrKeypadUnavailable)
	assert.ErrorIs(t, r.dev.Keypad(KeypadPayload{End: true}), bttfn.ErrKeypadUnavailable)

	_, err := r.hub.Enqueue(Inbox, hub.Command{Type: CmdKeypad, Payload: json.RawMessage(`{"key":1}`)})
	require.NoError(t, err)
	r.tick()
	assert.Contains(t, r.topics(events.SourceWeb), "keypad")
}
