package sequencer

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sid-sync/internal/baseline"
)

type tunnelCall struct {
	flags   baseline.Flags
	maskIdx int
}

type fakeAnim struct {
	idle, freeze, alarms int
	screenEnds, restarts int
	gamesStopped         int
	maskedResets         int
	draws                []baseline.Frame
	tunnels              []tunnelCall
	brightness           []uint8
}

func (f *fakeAnim) Idle(time.Time)         { f.idle++ }
func (f *fakeAnim) Freeze(time.Time)       { f.freeze++ }
func (f *fakeAnim) Alarm()                 { f.alarms++ }
func (f *fakeAnim) Draw(fr baseline.Frame) { f.draws = append(f.draws, fr) }
func (f *fakeAnim) SetBrightness(l uint8)  { f.brightness = append(f.brightness, l) }
func (f *fakeAnim) EndScreenSaver()        { f.screenEnds++ }
func (f *fakeAnim) RestartScreenSaver()    { f.restarts++ }
func (f *fakeAnim) StopGames()             { f.gamesStopped++ }
func (f *fakeAnim) ResetMaskedText()       { f.maskedResets++ }
func (f *fakeAnim) Tunnel(_ time.Time, flags baseline.Flags, t *TunnelState) {
	f.tunnels = append(f.tunnels, tunnelCall{flags: flags, maskIdx: t.MaskIdx})
}

type fakeSA struct {
	active bool
	amp    int
	loops  int
	amps   []int
}

func (f *fakeSA) Active() bool       { return f.active }
func (f *fakeSA) Loop(time.Time)     { f.loops++ }
func (f *fakeSA) Activate()          { f.active = true }
func (f *fakeSA) Deactivate()        { f.active = false }
func (f *fakeSA) AmpFactor() int     { return f.amp }
func (f *fakeSA) SetAmpFactor(a int) { f.amp = a; f.amps = append(f.amps, a) }

type phaseChange struct{ from, to Phase }

type rig struct {
	seq    *Sequencer
	base   *baseline.State
	anim   *fakeAnim
	sa     *fakeSA
	wire   bool
	phases []phaseChange
}

func newRig(base baseline.State) *rig {
	r := &rig{base: &base, anim: &fakeAnim{}, sa: &fakeSA{amp: 100}}
	r.seq = New(r.base, r.anim, r.sa, Options{
		WireLevel: func() bool { return r.wire },
		OnPhase:   func(from, to Phase, _ bool) { r.phases = append(r.phases, phaseChange{from, to}) },
		Rand:      rand.New(rand.NewSource(1)),
	})
	return r
}

// run ticks every 10 ms from start until the sequencer is idle again or
// limit passes. It returns the time of the last tick.
func (r *rig) run(start time.Time, limit time.Duration) time.Time {
	now := start
	for now.Sub(start) < limit {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
		if !r.seq.IsSequenceRunning() {
			break
		}
	}
	return now
}

var t0 = time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)

var fullRun = []phaseChange{
	{Idle, Accelerate},
	{Accelerate, Tunnel},
	{Tunnel, Reentry},
	{Reentry, Idle},
}

func TestAccelTimingScenarios(t *testing.T) {
	tests := []struct {
		name      string
		external  bool
		lead      time.Duration
		n         int
		wantDelay time.Duration
		wantIv    time.Duration
	}{
		{"lead 5000, 28 steps", true, 5000 * time.Millisecond, 28, 2500 * time.Millisecond, 86 * time.Millisecond},
		{"lead 400, 10 steps", true, 400 * time.Millisecond, 10, 0, 36 * time.Millisecond},
		{"floor correction", true, 5000 * time.Millisecond, 50, 1685 * time.Millisecond, 65 * time.Millisecond},
		{"short lead", true, 2500 * time.Millisecond, 4, 0, 500 * time.Millisecond},
		{"no steps external", true, 5000 * time.Millisecond, 0, 0, 0},
		{"standalone", false, 0, 28, 2500 * time.Millisecond, 86 * time.Millisecond},
		{"standalone floor", false, 0, 50, 1685 * time.Millisecond, 65 * time.Millisecond},
		{"standalone no steps", false, 0, 0, 2500 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, iv := AccelTiming(tt.external, tt.lead, tt.n)
			assert.Equal(t, tt.wantDelay, d)
			assert.Equal(t, tt.wantIv, iv)
		})
	}
}

func TestAccelTimingBounds(t *testing.T) {
	for _, leadMs := range []int{0, 20, 400, 1000, 2500, 3000, 5000, 10000, 65535} {
		lead := time.Duration(leadMs) * time.Millisecond
		for n := 1; n <= baseline.StrictLen; n++ {
			d, iv := AccelTiming(true, lead, n)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d+iv*time.Duration(n+1), lead, "lead=%d n=%d", leadMs, n)
			if iv > 0 && (n+1)*65 <= leadMs {
				assert.GreaterOrEqual(t, iv, 65*time.Millisecond, "lead=%d n=%d", leadMs, n)
			}
		}
	}
}

func TestShortLeadDisablesStepping(t *testing.T) {
	for _, leadMs := range []int{0, 5, 20, 400, 2500, 5000} {
		r := newRig(baseline.State{Free: 10, Strict: 10, StrictMode: leadMs%2 == 0})
		require.True(t, r.seq.RequestTimeTravel(t0, true, time.Duration(leadMs)*time.Millisecond))
		snap := r.seq.Snapshot()
		if snap.Interval == 0 {
			assert.Zero(t, snap.Remaining, "lead=%d", leadMs)
		} else {
			assert.Positive(t, snap.Remaining, "lead=%d", leadMs)
		}
	}

	r := newRig(baseline.State{Free: 10})
	r.wire = true
	require.True(t, r.seq.RequestTimeTravel(t0, true, 5*time.Millisecond))
	r.seq.Step(t0.Add(10 * time.Millisecond))
	assert.Equal(t, Tunnel, r.seq.Phase())
	assert.Equal(t, []baseline.Frame{baseline.FinalFrame()}, r.anim.draws)
}

func TestPartialStepsEndOnFinalFrame(t *testing.T) {
	r := newRig(baseline.State{Free: 10})
	r.wire = true
	require.True(t, r.seq.RequestTimeTravel(t0, true, 400*time.Millisecond))
	n := r.seq.Snapshot().Remaining
	require.Positive(t, n)

	// Slow ticks fire fewer steps than the lead allows.
	now := t0
	for r.seq.Phase() == Accelerate {
		now = now.Add(50 * time.Millisecond)
		r.seq.Step(now)
	}
	require.Equal(t, Tunnel, r.seq.Phase())
	require.NotEmpty(t, r.anim.draws)
	assert.Less(t, len(r.anim.draws), n+1)
	assert.Equal(t, baseline.FinalFrame(), r.anim.draws[len(r.anim.draws)-1])
	assert.Zero(t, r.seq.Snapshot().Remaining)
}

func TestPartialAnalyzerStepsEndOnTopAmp(t *testing.T) {
	r := newRig(baseline.State{Free: 10})
	r.sa.active = true
	r.wire = true
	require.True(t, r.seq.RequestTimeTravel(t0, true, 400*time.Millisecond))

	now := t0
	for r.seq.Phase() == Accelerate {
		now = now.Add(50 * time.Millisecond)
		r.seq.Step(now)
	}
	require.NotEmpty(t, r.sa.amps)
	assert.Equal(t, baseline.AmpFactor(baseline.AmpSteps-1), r.sa.amps[len(r.sa.amps)-1])
	assert.Empty(t, r.anim.draws)
}

func TestStartLatchesTiming(t *testing.T) {
	r := newRig(baseline.State{Strict: 23, StrictMode: true})
	require.True(t, r.seq.RequestTimeTravel(t0, true, 5000*time.Millisecond))

	snap := r.seq.Snapshot()
	assert.Equal(t, Accelerate, snap.Phase)
	assert.Equal(t, 28, snap.Remaining)
	assert.Equal(t, 2500*time.Millisecond, snap.Delay)
	assert.Equal(t, 86*time.Millisecond, snap.Interval)
	assert.NotZero(t, snap.Flags&baseline.FlagStrict)
	assert.NotZero(t, snap.Flags&baseline.FlagAnimate)
	assert.Equal(t, 1, r.anim.gamesStopped)

	r = newRig(baseline.State{Strict: 41, StrictMode: true})
	require.True(t, r.seq.RequestTimeTravel(t0, true, 400*time.Millisecond))
	snap = r.seq.Snapshot()
	assert.Equal(t, 10, snap.Remaining)
	assert.Zero(t, snap.Delay)
	assert.Equal(t, 36*time.Millisecond, snap.Interval)
}

func TestStartFlags(t *testing.T) {
	r := newRig(baseline.State{Mode: baseline.IdleMaskedText, StrictMode: true})
	r.seq.SetSkipAnimation(true)
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	snap := r.seq.Snapshot()
	assert.Zero(t, snap.Flags&baseline.FlagAnimate)
	assert.NotZero(t, snap.Flags&baseline.FlagMaskedTunnel)
	assert.Zero(t, snap.Flags&baseline.FlagStrict)

	r = newRig(baseline.State{Mode: baseline.IdleBacklot, StrictMode: true})
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	assert.NotZero(t, r.seq.Snapshot().Flags&baseline.FlagStrict)

	r = newRig(baseline.State{Free: 19})
	r.sa.active = true
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	assert.Equal(t, baseline.AmpSteps, r.seq.Snapshot().Remaining)
}

func TestStandaloneRun(t *testing.T) {
	r := newRig(baseline.State{Free: 19})
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	n := r.seq.Snapshot().Remaining
	require.Equal(t, 6, n)

	// Nothing is drawn during the quiet start.
	now := t0
	for now.Sub(t0) < 2490*time.Millisecond {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	assert.Empty(t, r.anim.draws)
	assert.NotZero(t, r.anim.freeze)

	// First step fires right when the delay ends.
	now = now.Add(10 * time.Millisecond)
	r.seq.Step(now)
	require.Len(t, r.anim.draws, 1)

	end := r.run(now, 20*time.Second)
	assert.Equal(t, fullRun, r.phases)
	require.Len(t, r.anim.draws, n)
	for i, f := range r.anim.draws {
		assert.Equal(t, baseline.DecayFrame(false, baseline.FreeLen-n+i), f)
	}
	assert.Equal(t, baseline.FinalFrame(), r.anim.draws[n-1])
	assert.NotEmpty(t, r.anim.tunnels)
	assert.Equal(t, uint8(255), r.anim.brightness[len(r.anim.brightness)-1])
	assert.Equal(t, 1, r.anim.restarts)

	// Acceleration 5 s, tunnel 5 s, reentry immediate without analyzer.
	assert.InDelta(t, 10000, end.Sub(t0).Milliseconds(), 20)
	assert.Equal(t, baseline.MaxFree, r.base.Free)
	assert.Equal(t, baseline.StrictLen-1, r.base.Strict)
}

func TestExternalRunStepsAfterDelay(t *testing.T) {
	r := newRig(baseline.State{Free: 19})
	require.True(t, r.seq.RequestTimeTravel(t0, true, 5000*time.Millisecond))

	now := t0
	for now.Sub(t0) < 2800*time.Millisecond {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	// The step clock starts at the end of the delay.
	assert.Empty(t, r.anim.draws)
	for now.Sub(t0) < 2860*time.Millisecond {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	assert.Len(t, r.anim.draws, 1)

	r.wire = true
	for now.Sub(t0) < 5000*time.Millisecond {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	assert.Equal(t, Tunnel, r.seq.Phase())
	assert.Len(t, r.anim.draws, 6)

	// Wired run: tunnel holds while the line is high.
	for now.Sub(t0) < 15*time.Second {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	assert.Equal(t, Tunnel, r.seq.Phase())

	r.wire = false
	r.seq.Step(now.Add(10 * time.Millisecond))
	assert.Equal(t, Idle, r.seq.Phase())
	assert.Equal(t, fullRun, r.phases)
}

func TestNetworkRun(t *testing.T) {
	r := newRig(baseline.State{Free: 5})
	r.seq.NotifyTimeTravel(3000)
	assert.False(t, r.seq.IsSequenceRunning())

	r.seq.Step(t0)
	require.True(t, r.seq.IsNetworkSequence())
	assert.Equal(t, 3000*time.Millisecond, r.seq.Snapshot().Duration)
	assert.Equal(t, 1, r.anim.screenEnds)

	now := t0
	for now.Sub(t0) < 20*time.Second {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	assert.Equal(t, Tunnel, r.seq.Phase())

	r.seq.NotifyReentry()
	r.seq.Step(now.Add(10 * time.Millisecond))
	assert.Equal(t, Idle, r.seq.Phase())
	assert.Equal(t, fullRun, r.phases)
}

func TestAbortOnlyForNetworkRuns(t *testing.T) {
	r := newRig(baseline.State{Free: 19})
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	r.seq.NotifyAbort()
	r.seq.Step(t0.Add(10 * time.Millisecond))
	assert.Equal(t, Accelerate, r.seq.Phase())

	r = newRig(baseline.State{Free: 19})
	r.seq.NotifyTimeTravel(5000)
	r.seq.Step(t0)
	r.seq.Step(t0.Add(100 * time.Millisecond))
	require.Equal(t, Accelerate, r.seq.Phase())

	r.seq.NotifyAbort()
	r.seq.Step(t0.Add(200 * time.Millisecond))
	assert.Equal(t, Idle, r.seq.Phase())
	assert.Equal(t, fullRun, r.phases)
	// Cut short before any step: the final frame is still drawn.
	require.Len(t, r.anim.draws, 1)
	assert.Equal(t, baseline.FinalFrame(), r.anim.draws[0])
}

func TestRetriggerIsNoop(t *testing.T) {
	r := newRig(baseline.State{Free: 10})
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	start := r.seq.Snapshot().Start

	assert.False(t, r.seq.RequestTimeTravel(t0.Add(time.Second), true, time.Second))
	r.seq.NotifyTimeTravel(1000)
	r.seq.Step(t0.Add(time.Second))
	snap := r.seq.Snapshot()
	assert.Equal(t, start, snap.Start)
	assert.False(t, snap.External)
	assert.Len(t, r.phases, 1)
}

func TestLockBlocksTriggersOnly(t *testing.T) {
	r := newRig(baseline.State{Free: 10})
	r.seq.SetLocked(true)
	assert.False(t, r.seq.RequestTimeTravel(t0, false, 0))

	r.seq.SetLocked(false)
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	r.seq.SetLocked(true)
	r.run(t0, 20*time.Second)
	assert.Equal(t, fullRun, r.phases)
}

func TestAnalyzerRun(t *testing.T) {
	r := newRig(baseline.State{Free: 10})
	r.sa.active = true
	r.wire = true
	require.True(t, r.seq.RequestTimeTravel(t0, true, 5000*time.Millisecond))

	now := t0
	for r.seq.Phase() == Accelerate {
		now = now.Add(10 * time.Millisecond)
		r.seq.Step(now)
	}
	assert.Equal(t, baseline.AmpFactor(baseline.AmpSteps-1), r.sa.amps[len(r.sa.amps)-1])
	assert.False(t, r.sa.active)
	assert.Empty(t, r.anim.draws)
	require.Equal(t, Tunnel, r.seq.Phase())

	r.seq.NotifyReentry() // ignored: not a network run
	r.seq.Step(now.Add(5 * time.Millisecond))
	require.Equal(t, Tunnel, r.seq.Phase())
	r.wire = false
	r.seq.Step(now.Add(10 * time.Millisecond))
	assert.Equal(t, Reentry, r.seq.Phase())
	assert.True(t, r.sa.active)

	r.run(now, 20*time.Second)
	assert.Equal(t, Idle, r.seq.Phase())
	assert.Equal(t, 100, r.sa.amp)
	assert.Equal(t, fullRun, r.phases)
}

func TestMaskedTunnel(t *testing.T) {
	r := newRig(baseline.State{Mode: baseline.IdleMaskedText, Free: 10})
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	r.run(t0, 20*time.Second)

	require.Greater(t, len(r.anim.tunnels), 3)
	for i, c := range r.anim.tunnels {
		assert.NotZero(t, c.flags&baseline.FlagTunnel)
		assert.NotZero(t, c.flags&baseline.FlagMaskedTunnel)
		assert.Equal(t, i%len(baseline.MaskedTunnelText), c.maskIdx)
	}
	assert.Equal(t, 1, r.anim.maskedResets)
}

func TestTunnelSweep(t *testing.T) {
	var ts TunnelState
	ts.Reset()
	var bars []int
	for i := 0; i < 2*baseline.Bars; i++ {
		assert.False(t, ts.Flicker)
		b, ok := ts.Sweep()
		require.True(t, ok)
		bars = append(bars, b)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, bars)
	assert.True(t, ts.Flicker)
	assert.Equal(t, 1, ts.Sweeps)
}

func TestIdleServices(t *testing.T) {
	r := newRig(baseline.State{})
	r.seq.Step(t0)
	assert.Equal(t, 1, r.anim.idle)

	r.seq.NotifyAlarm()
	r.seq.Step(t0.Add(10 * time.Millisecond))
	assert.Equal(t, 1, r.anim.alarms)
	assert.Equal(t, 1, r.anim.idle)
	r.seq.Step(t0.Add(20 * time.Millisecond))
	assert.Equal(t, 2, r.anim.idle)

	r.seq.NotifyPrepare()
	assert.Equal(t, 2, r.anim.screenEnds)
	assert.Equal(t, 1, r.anim.gamesStopped)
	r.seq.NotifyWakeup()
	assert.Equal(t, 3, r.anim.screenEnds)

	r.sa.active = true
	r.seq.Step(t0.Add(30 * time.Millisecond))
	assert.Equal(t, 1, r.sa.loops)
}

func TestHalt(t *testing.T) {
	r := newRig(baseline.State{Free: 10})
	require.True(t, r.seq.RequestTimeTravel(t0, false, 0))
	r.seq.Halt()
	assert.Equal(t, Idle, r.seq.Phase())
	assert.Equal(t, []phaseChange{{Idle, Accelerate}, {Accelerate, Idle}}, r.phases)
	assert.Equal(t, 100, r.sa.amp)
}

func TestIsValidTransition(t *testing.T) {
	assert.True(t, IsValidTransition(Idle, Accelerate))
	assert.True(t, IsValidTransition(Reentry, Idle))
	assert.False(t, IsValidTransition(Idle, Tunnel))
	assert.False(t, IsValidTransition(Reentry, Accelerate))
	assert.False(t, IsValidTransition(Tunnel, Accelerate))
}
