// Package baseline keeps the current idle animation height and the
// lookup tables that turn it into an acceleration step count.
package baseline

import "fmt"

// IdleMode selects the idle pattern.
type IdleMode int

const (
	IdleNormal IdleMode = iota
	IdleHighPeaks
	IdleFast
	IdleFastHighPeaks
	IdleBacklot    // fixed loop, no baseline
	IdleMaskedText // masked text, own tunnel sequence
)

// MaxIdleMode is the highest selectable idle mode.
const MaxIdleMode = IdleMaskedText

func (m IdleMode) String() string {
	switch m {
	case IdleBacklot:
		return "backlot"
	case IdleMaskedText:
		return "masked-text"
	}
	return fmt.Sprintf("idle-%d", int(m))
}

// Flags modify how a baseline frame is synthesized. A subset is latched
// by the sequencer at trigger time.
type Flags uint16

const (
	FlagRepeat     Flags = 1 << iota // redraw the previous frame
	FlagTunnel                       // frame is part of the tunnel
	FlagMaskedText                   // masked text overlay
	FlagSkipShow
	FlagMaskedTunnel // masked text tunnel sequence
	FlagNoBaseline
	FlagAnimate // flashy bar sweep in the tunnel
	FlagStrict  // follow the canonical table
)

// State is the baseline bookkeeping. It is written by the idle driver
// and only read by the sequencer while a run is active.
type State struct {
	Free       int // 0..MaxFree
	Strict     int // 0..StrictLen-1
	StrictMode bool
	Mode       IdleMode
}

// Clamp pulls both baselines back into range.
func (s *State) Clamp() {
	s.Free = clamp(s.Free, 0, MaxFree)
	s.Strict = clamp(s.Strict, 0, StrictLen-1)
}

// Reset drops both baselines to the bottom.
func (s *State) Reset() {
	s.Free, s.Strict = 0, 0
}

// Top moves both baselines to the top of their tables, as after an
// acceleration phase.
func (s *State) Top() {
	s.Free = MaxFree
	s.Strict = StrictLen - 1
}

// StepCount returns the remaining acceleration steps for the latched
// strict choice.
func (s State) StepCount(strict bool) int {
	if strict {
		return StepCountFor(s.Strict, true)
	}
	return StepCountFor(s.Free, false)
}

// StepCountFor returns how many decay table rows lie between baseline
// and the top of the table.
func StepCountFor(baseline int, strict bool) int {
	if strict {
		return StrictLen - clamp(baseline, 0, StrictLen-1)
	}
	return FreeLen - seqEntry[clamp(baseline, 0, len(seqEntry)-1)]
}

// DecayFrame returns row index of the strict or free table.
func DecayFrame(strict bool, index int) Frame {
	if strict {
		return strictSeq[clamp(index, 0, StrictLen-1)]
	}
	return freeSeq[clamp(index, 0, FreeLen-1)]
}

// TableLen returns the row count of the strict or free table.
func TableLen(strict bool) int {
	if strict {
		return StrictLen
	}
	return FreeLen
}

// FinalFrame is drawn when an acceleration phase ends before any step
// fired. It is the same in strict and free mode.
func FinalFrame() Frame {
	return freeSeq[FreeLen-1]
}

// AmpFactor returns the analyzer amplitude factor for step i.
func AmpFactor(i int) int {
	return ampFactors[clamp(i, 0, AmpSteps-1)]
}

// BacklotFrame returns frame i of the backlot loop, wrapping.
func BacklotFrame(i int) Frame {
	return backlotSeq[i%len(backlotSeq)]
}

// BacklotLen is the length of the backlot loop.
func BacklotLen() int { return len(backlotSeq) }

// FreeFromSpeed maps a remote speed (0..88) to a free baseline.
func FreeFromSpeed(speed int) int {
	bl := max(10, speed)*20/88 - 1
	if bl > MaxFree {
		bl = MaxFree
	}
	return bl
}

// StrictFromSpeed maps a remote speed (0..88) to a strict baseline.
func StrictFromSpeed(speed int) int {
	bl := speed * 100 / (88 * 100 / (StrictLen - 1))
	return clamp(bl, 0, StrictLen-1)
}

// smooth halves a jump larger than limit.
func smooth(prev, next, limit int) int {
	if abs(prev-next) > limit {
		return (next + prev) / 2
	}
	return next
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
