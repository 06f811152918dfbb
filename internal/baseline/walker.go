package baseline

import (
	"math/rand"
	"time"
)

// Step is the outcome of one idle advance.
type Step struct {
	Flags     Flags
	Variation int
	Delay     time.Duration // until the next advance
	Backlot   bool
	Frame     Frame // set for backlot steps
}

// Walker drifts the baseline while idle, the way the prop wanders
// between low and high readings. It is driven by the idle animation.
type Walker struct {
	rnd *rand.Rand

	wayUp      bool
	backlotIdx int

	usedSpeed bool
	prevSpeed int

	lastMasked  time.Time
	maskedDelay time.Duration
}

func NewWalker(rnd *rand.Rand) *Walker {
	return &Walker{rnd: rnd, prevSpeed: -1}
}

// ResetBacklot restarts the backlot loop.
func (w *Walker) ResetBacklot() { w.backlotIdx = 0 }

// Advance moves s by one idle step. A negative speed means no remote
// speed is available. With freeze set the baseline is kept (apart from
// the strict bit toggle) so an acceleration can start from it.
func (w *Walker) Advance(now time.Time, s *State, speed int, freeze bool) Step {
	oldFree, oldStrict := s.Free, s.Strict
	st := Step{Variation: 20}

	switch {
	case speed >= 0:
		w.followSpeed(s, speed, oldFree, oldStrict, freeze, &st)
		st.Delay = 500 * time.Millisecond
		s.Clamp()
		return st

	case s.Mode == IdleBacklot:
		st.Backlot = true
		st.Frame = BacklotFrame(w.backlotIdx)
		w.backlotIdx = (w.backlotIdx + 1) % BacklotLen()
		st.Flags |= FlagNoBaseline
		st.Delay = 90 * time.Millisecond
		s.Reset()
		return st
	}

	if s.StrictMode && s.Mode != IdleMaskedText {
		st.Flags |= FlagStrict
	}

	switch s.Mode {
	case IdleHighPeaks, IdleFastHighPeaks:
		if s.Mode == IdleHighPeaks {
			st.Delay = w.jitterMs(800, 100)
		} else {
			st.Delay = w.jitterMs(300, 100)
		}
		if !s.StrictMode {
			if !freeze {
				switch {
				case s.Free > 12:
					s.Free -= w.rnd.Intn(3) + 1
				case s.Free < 3:
					s.Free += w.rnd.Intn(3) + 2
				default:
					s.Free += w.rnd.Intn(5) - 1
				}
				st.Variation = 40
			}
		} else {
			w.walkStrict(s, freeze, 40, 5)
		}

	case IdleMaskedText:
		st.Delay = 80 * time.Millisecond
		st.Flags |= FlagMaskedText | FlagSkipShow
		if w.maskedDelay > 0 && now.Sub(w.lastMasked) < w.maskedDelay {
			st.Flags |= FlagRepeat
			break
		}
		if !freeze {
			switch {
			case s.Free > 18:
				s.Free -= w.rnd.Intn(3) + 1
			case s.Free < 3:
				s.Free += w.rnd.Intn(3) + 2
			default:
				s.Free += w.rnd.Intn(5) - 1
			}
			st.Variation = 40
		}
		w.lastMasked = now
		w.maskedDelay = w.jitterMs(800, 100)

	default: // normal and fast
		if s.Mode == IdleFast {
			st.Delay = w.jitterMs(300, 100)
		} else {
			st.Delay = w.jitterMs(800, 100)
		}
		if !s.StrictMode {
			if !freeze {
				switch {
				case s.Free > 14:
					s.Free -= w.rnd.Intn(3) + 1
				case s.Free > 8:
					s.Free -= w.rnd.Intn(5) + 1
				case s.Free < 3:
					s.Free += w.rnd.Intn(3) + 2
				default:
					s.Free += w.rnd.Intn(4) - 1
				}
			}
		} else {
			w.walkStrict(s, freeze, 30, 3)
		}
	}

	if !freeze && w.usedSpeed {
		// Coming back from speed following: avoid a hard jump.
		if st.Flags&FlagStrict == 0 {
			s.Free = smooth(oldFree, s.Free, 3)
		} else {
			s.Strict = smooth(oldStrict, s.Strict, 7)
		}
		w.usedSpeed = false
	}

	s.Clamp()
	return st
}

func (w *Walker) walkStrict(s *State, freeze bool, high, span int) {
	if freeze {
		if w.rnd.Intn(5) >= 2 {
			s.Strict ^= 0x01
		}
		return
	}
	switch {
	case s.Strict > high:
		s.Strict -= w.rnd.Intn(span) + 1
		w.wayUp = false
	case s.Strict < 10:
		s.Strict += w.rnd.Intn(span) + 2
		w.wayUp = true
	default:
		down := 4
		if w.wayUp {
			down = 2
		}
		s.Strict += w.rnd.Intn(7) - down
	}
}

func (w *Walker) followSpeed(s *State, speed, oldFree, oldStrict int, freeze bool, st *Step) {
	w.usedSpeed = true
	defer func() { w.prevSpeed = speed }()

	if !s.StrictMode {
		if !freeze {
			s.Free = smooth(oldFree, FreeFromSpeed(speed), 3)
		}
		return
	}
	st.Flags |= FlagStrict
	if freeze {
		return
	}
	bl := StrictFromSpeed(speed)
	if speed == w.prevSpeed {
		// Steady speed: keep the bars alive.
		switch {
		case bl < 5:
			bl += w.rnd.Intn(5)
		case bl > StrictLen-4:
		default:
			bl += w.rnd.Intn(5) - 2
		}
		bl = clamp(bl, 0, StrictLen-2)
	}
	s.Strict = smooth(oldStrict, bl, 3)
}

func (w *Walker) jitterMs(base, spread int) time.Duration {
	return time.Duration(base+w.rnd.Intn(2*spread)-spread) * time.Millisecond
}
