package sequencer

import (
	"log"
	"math/rand"
	"time"

	"sid-sync/internal/baseline"
)

// Animator draws what the sequencer asks for. It also owns the idle
// animation, the screen saver and the games.
type Animator interface {
	Idle(now time.Time)
	Freeze(now time.Time) // idle animation with the baseline held
	Alarm()
	Draw(f baseline.Frame)
	Tunnel(now time.Time, flags baseline.Flags, t *TunnelState)
	SetBrightness(level uint8)

	EndScreenSaver()
	RestartScreenSaver()
	StopGames()
	ResetMaskedText()
}

// Analyzer is the spectrum analyzer display mode. During a run its
// amplitude factor replaces the decay frames.
type Analyzer interface {
	Active() bool
	Loop(now time.Time)
	Activate()
	Deactivate()
	AmpFactor() int
	SetAmpFactor(f int)
}

// Options wire the sequencer to the rest of the device.
type Options struct {
	SkipAnimation bool

	// WireLevel reads the wired hold line; nil means low.
	WireLevel func() bool
	// UsingSpeed reports whether the idle baseline follows a remote speed.
	UsingSpeed func() bool
	// BeforeRun is called right before a run starts.
	BeforeRun func()
	// OnPhase is called on every phase change.
	OnPhase func(from, to Phase, external bool)

	Rand *rand.Rand
}

// Snapshot is a read-only view of the run state.
type Snapshot struct {
	Phase     Phase
	External  bool
	Network   bool
	Locked    bool
	Start     time.Time
	Duration  time.Duration
	Delay     time.Duration
	Interval  time.Duration
	Remaining int
	Flags     baseline.Flags
}

// Sequencer is the time travel phase machine. It is driven by Step once
// per loop tick and by trigger and notification calls in between.
type Sequencer struct {
	opts Options
	base *baseline.State
	anim Animator
	sa   Analyzer
	rnd  *rand.Rand

	locked bool

	phase    Phase
	external bool
	network  bool
	flags    baseline.Flags

	start    time.Time // of the current phase
	lastStep time.Time
	duration time.Duration
	delay    time.Duration
	interval time.Duration
	cnt      int
	stepped  bool

	saStopped bool
	tunnel    TunnelState

	pendingTT   bool
	pendingLead time.Duration
	reentry     bool
	abort       bool
	alarm       bool
}

func New(base *baseline.State, anim Animator, sa Analyzer, opts Options) *Sequencer {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.WireLevel == nil {
		opts.WireLevel = func() bool { return false }
	}
	if opts.UsingSpeed == nil {
		opts.UsingSpeed = func() bool { return false }
	}
	return &Sequencer{opts: opts, base: base, anim: anim, sa: sa, rnd: opts.Rand}
}

// SetSkipAnimation changes whether future runs use the tunnel sweep.
func (s *Sequencer) SetSkipAnimation(v bool) { s.opts.SkipAnimation = v }

func (s *Sequencer) Phase() Phase { return s.phase }

// IsSequenceRunning reports an active run.
func (s *Sequencer) IsSequenceRunning() bool { return s.phase != Idle }

// IsNetworkSequence reports a run started by a network notification.
func (s *Sequencer) IsNetworkSequence() bool { return s.phase != Idle && s.network }

// IsLocked reports whether new triggers are blocked.
func (s *Sequencer) IsLocked() bool { return s.locked }

// SetLocked blocks or unblocks new triggers. A running sequence is not
// affected.
func (s *Sequencer) SetLocked(v bool) { s.locked = v }

// Snapshot returns the current run state.
func (s *Sequencer) Snapshot() Snapshot {
	return Snapshot{
		Phase:     s.phase,
		External:  s.external,
		Network:   s.network,
		Locked:    s.locked,
		Start:     s.start,
		Duration:  s.duration,
		Delay:     s.delay,
		Interval:  s.interval,
		Remaining: s.cnt,
		Flags:     s.flags,
	}
}

// RequestTimeTravel starts a run now. External runs follow the TCD with
// the given lead; standalone runs ignore it. It reports whether a run
// was started.
func (s *Sequencer) RequestTimeTravel(now time.Time, external bool, lead time.Duration) bool {
	return s.begin(now, external, false, lead)
}

// NotifyTimeTravel latches a network trigger. It is picked up by the
// next Step. Triggers during a run or while locked are dropped.
func (s *Sequencer) NotifyTimeTravel(lead uint16) {
	if s.phase != Idle || s.locked {
		return
	}
	s.pendingTT = true
	s.pendingLead = time.Duration(lead) * time.Millisecond
	s.reentry = false
	s.abort = false
}

// NotifyReentry ends the tunnel of a network run.
func (s *Sequencer) NotifyReentry() {
	if s.IsNetworkSequence() {
		s.reentry = true
	}
}

// NotifyAbort cuts a network run short.
func (s *Sequencer) NotifyAbort() {
	if s.IsNetworkSequence() {
		s.abort = true
	}
}

// NotifyAlarm latches an alarm. It is shown when the device is idle.
func (s *Sequencer) NotifyAlarm() { s.alarm = true }

// NotifyPrepare readies the display for an upcoming run.
func (s *Sequencer) NotifyPrepare() {
	s.anim.EndScreenSaver()
	s.anim.StopGames()
}

// NotifyWakeup ends the screen saver.
func (s *Sequencer) NotifyWakeup() { s.anim.EndScreenSaver() }

// Halt drops any run and returns to Idle without the reentry phase.
func (s *Sequencer) Halt() {
	if s.phase == Idle {
		return
	}
	s.sa.SetAmpFactor(100)
	s.anim.SetBrightness(255)
	s.saStopped = false
	s.pendingTT = false
	s.setPhase(Idle)
}

// ClearPending drops a latched network trigger.
func (s *Sequencer) ClearPending() { s.pendingTT = false }

func (s *Sequencer) begin(now time.Time, external, network bool, lead time.Duration) bool {
	if s.phase != Idle || s.locked {
		return false
	}

	s.anim.StopGames()
	if s.opts.BeforeRun != nil {
		s.opts.BeforeRun()
	}

	s.external = external
	s.network = external && network
	if !s.network {
		s.reentry, s.abort = false, false
	}
	s.start, s.lastStep = now, now
	s.stepped = false
	s.saStopped = false
	s.tunnel.Reset()

	s.flags = 0
	if !s.opts.SkipAnimation {
		s.flags = baseline.FlagAnimate
	}
	switch {
	case s.sa.Active():
		s.cnt = baseline.AmpSteps
	case s.opts.UsingSpeed():
		if s.base.StrictMode {
			s.flags |= baseline.FlagStrict
		}
		s.cnt = s.base.StepCount(s.strict())
	default:
		if s.base.Mode == baseline.IdleMaskedText {
			s.flags |= baseline.FlagMaskedTunnel
		} else if s.base.StrictMode {
			// Backlot included.
			s.flags |= baseline.FlagStrict
		}
		s.cnt = s.base.StepCount(s.strict())
	}

	if external {
		s.duration = lead
	} else {
		s.duration = StandaloneAccel
	}
	s.delay, s.interval = AccelTiming(external, lead, s.cnt)
	if s.interval == 0 {
		// Too short to step at all.
		s.cnt = 0
	}

	log.Printf("[seq] time travel: external=%v lead=%v steps=%d delay=%v interval=%v",
		external, s.duration, s.cnt, s.delay, s.interval)
	s.setPhase(Accelerate)
	return true
}

// Step advances the sequence. Call once per loop tick, after the
// protocol poll.
func (s *Sequencer) Step(now time.Time) {
	if s.phase == Idle && s.pendingTT {
		s.pendingTT = false
		s.anim.EndScreenSaver()
		s.begin(now, true, true, s.pendingLead)
	}

	if s.phase == Idle {
		if s.alarm && !s.locked && !s.sa.Active() {
			s.alarm = false
			s.anim.EndScreenSaver()
			s.anim.Alarm()
			return
		}
		if s.sa.Active() {
			s.sa.Loop(now)
		} else {
			s.anim.Idle(now)
		}
		return
	}

	if s.phase == Accelerate {
		s.accelerate(now)
	}
	if s.phase == Tunnel {
		s.tunnelStep(now)
	}
	if s.phase == Reentry {
		s.reentryStep(now)
	}
}

func (s *Sequencer) accelerate(now time.Time) {
	if !s.abort && now.Sub(s.start) < s.duration {
		if s.delay > 0 && now.Sub(s.lastStep) < s.delay {
			// Quiet start: keep the idle picture frozen.
			if s.sa.Active() {
				s.sa.Loop(now)
			} else {
				s.anim.Freeze(now)
			}
			return
		}

		if s.delay > 0 {
			s.delay = 0
			if s.external {
				// Steps are timed from the end of the delay.
				s.lastStep = now
				if s.sa.Active() {
					s.sa.Loop(now)
				}
				return
			}
		}

		if s.interval > 0 && now.Sub(s.lastStep) >= s.interval {
			if s.cnt > 0 {
				s.cnt--
				if s.sa.Active() {
					s.sa.SetAmpFactor(baseline.AmpFactor(baseline.AmpSteps - 1 - s.cnt))
				} else {
					strict := s.strict()
					s.anim.Draw(baseline.DecayFrame(strict, baseline.TableLen(strict)-1-s.cnt))
				}
				s.stepped = true
			}
			s.lastStep = now
		}
		if s.sa.Active() {
			s.sa.Loop(now)
		}
		return
	}

	// Never leave the acceleration cut off mid-animation.
	if !s.stepped || s.cnt > 0 {
		if s.sa.Active() {
			s.sa.SetAmpFactor(baseline.AmpFactor(baseline.AmpSteps - 1))
		} else {
			s.anim.Draw(baseline.FinalFrame())
		}
		s.cnt = 0
	}
	if s.sa.Active() {
		s.sa.Deactivate()
		s.saStopped = true
	}
	s.base.Top()
	s.tunnel.Reset()
	s.start, s.lastStep = now, now
	s.interval = s.jitter(1000, 100)
	s.setPhase(Tunnel)
}

func (s *Sequencer) tunnelStep(now time.Time) {
	var hold bool
	switch {
	case !s.external:
		hold = now.Sub(s.start) < StandaloneTunnel
	case s.network:
		hold = !s.reentry && !s.abort
	default:
		hold = s.opts.WireLevel()
	}

	if !hold {
		s.anim.SetBrightness(255)
		s.interval = 50 * time.Millisecond
		s.lastStep = now
		s.setPhase(Reentry)
		return
	}

	if s.interval > 0 && now.Sub(s.lastStep) >= s.interval {
		s.tunnel.nextLetter()
		s.anim.Tunnel(now, s.flags|baseline.FlagTunnel, &s.tunnel)
		s.lastStep = now
		if s.flags&baseline.FlagMaskedTunnel != 0 {
			s.tunnel.maskTrigger = true
			s.interval = 130 * time.Millisecond
		} else {
			s.interval = s.jitter(100, 50)
		}
	}
}

func (s *Sequencer) reentryStep(now time.Time) {
	if s.saStopped {
		s.sa.Activate()
		s.saStopped = false
	}
	if s.sa.Active() && s.sa.AmpFactor() > 100 {
		if now.Sub(s.lastStep) >= s.interval {
			s.cnt++
			if s.cnt <= baseline.AmpSteps {
				// Past the table end the factor bottoms out at 100.
				s.sa.SetAmpFactor(baseline.AmpFactor(baseline.AmpSteps - 1 - s.cnt))
			} else {
				s.sa.SetAmpFactor(100)
			}
			s.lastStep = now
			s.interval = s.jitter(400, 50)
		}
		s.sa.Loop(now)
		return
	}

	s.anim.RestartScreenSaver()
	s.sa.SetAmpFactor(100)
	s.anim.ResetMaskedText()
	s.flags = 0
	s.reentry, s.abort = false, false
	s.setPhase(Idle)
}

func (s *Sequencer) strict() bool { return s.flags&baseline.FlagStrict != 0 }

func (s *Sequencer) jitter(base, spread int) time.Duration {
	return time.Duration(base+s.rnd.Intn(2*spread)-spread) * time.Millisecond
}

func (s *Sequencer) setPhase(to Phase) {
	from := s.phase
	if from == to {
		return
	}
	if !IsValidTransition(from, to) {
		log.Printf("[seq] illegal phase change %s -> %s", from, to)
	}
	s.phase = to
	if to == Idle {
		s.cnt = 0
		s.interval = 0
		s.delay = 0
	}
	log.Printf("[seq] phase %s -> %s", from, to)
	if s.opts.OnPhase != nil {
		s.opts.OnPhase(from, to, s.external)
	}
}
