package sequencer

import "sid-sync/internal/baseline"

// TunnelState is the per-run state of the tunnel effect: a blank bar
// sweeping left and right, brightness flicker once a sweep completed,
// and the letter index of the masked text tunnel.
type TunnelState struct {
	ClearBar int
	clearInc int
	Sweeps   int
	Flicker  bool

	MaskIdx     int
	maskTrigger bool
}

// Reset starts a new tunnel: sweep from bar 0, no flicker.
func (t *TunnelState) Reset() {
	*t = TunnelState{clearInc: 1}
}

// Sweep returns the bar to blank in this frame and moves the sweep on.
func (t *TunnelState) Sweep() (bar int, ok bool) {
	if t.clearInc == 0 {
		return 0, false
	}
	bar = t.ClearBar
	t.ClearBar += t.clearInc
	if t.ClearBar >= baseline.Bars {
		t.ClearBar = baseline.Bars - 1
		t.clearInc = -1
	}
	if t.ClearBar < 0 && t.clearInc < 0 {
		t.clearInc = 1
		t.ClearBar = 0
		t.Sweeps++
		t.Flicker = true
	}
	return bar, true
}

// MaskLetter returns the glyph of the masked text tunnel to overlay.
func (t *TunnelState) MaskLetter() byte {
	return baseline.MaskedTunnelText[t.MaskIdx]
}

func (t *TunnelState) nextLetter() {
	if !t.maskTrigger {
		return
	}
	t.MaskIdx++
	if t.MaskIdx >= len(baseline.MaskedTunnelText) {
		t.MaskIdx = 0
	}
}
