package animation

import (
	"math/rand"
	"time"

	"sid-sync/internal/display"
	"sid-sync/internal/sequencer"
)

const (
	analyzerFrame = 30 * time.Millisecond
	peakHold      = 600 * time.Millisecond
	peakFall      = 80 * time.Millisecond
)

// Analyzer shows a spectrum display. Without an audio input the band
// levels are synthesized; the amplitude factor scales them in percent.
type Analyzer struct {
	panel *display.Panel
	rnd   *rand.Rand

	active bool
	amp    int
	peaks  bool

	level  [display.Bars]int
	peak   [display.Bars]int
	peakAt [display.Bars]time.Time
	next   time.Time
}

var _ sequencer.Analyzer = (*Analyzer)(nil)

func NewAnalyzer(panel *display.Panel, rnd *rand.Rand) *Analyzer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Analyzer{panel: panel, rnd: rnd, amp: 100}
}

func (a *Analyzer) Active() bool { return a.active }

// Activate starts the analyzer display.
func (a *Analyzer) Activate() {
	if a.active {
		return
	}
	a.active = true
	a.level = [display.Bars]int{}
	a.peak = [display.Bars]int{}
	a.next = time.Time{}
	a.panel.Clear()
	a.panel.Show()
}

// Deactivate stops the analyzer display.
func (a *Analyzer) Deactivate() {
	if !a.active {
		return
	}
	a.active = false
	a.panel.ClearPeaks()
}

func (a *Analyzer) AmpFactor() int { return a.amp }

// SetAmpFactor sets the scale in percent; 100 is neutral.
func (a *Analyzer) SetAmpFactor(f int) {
	if f < 100 {
		f = 100
	}
	a.amp = f
}

// SetPeaks turns the peak markers on or off.
func (a *Analyzer) SetPeaks(on bool) {
	a.peaks = on
	if !on {
		a.panel.ClearPeaks()
	}
}

func (a *Analyzer) Peaks() bool { return a.peaks }

// Loop draws a frame when one is due.
func (a *Analyzer) Loop(now time.Time) {
	if !a.active || now.Before(a.next) {
		return
	}
	a.next = now.Add(analyzerFrame)

	for i := range a.level {
		// Lower bands carry more energy.
		raw := a.rnd.Intn(12 - i/2)
		v := raw * a.amp / 100
		if v < a.level[i]-2 {
			v = a.level[i] - 2
		}
		if v > display.Height {
			v = display.Height
		}
		a.level[i] = v
		a.panel.DrawBar(i, uint8(v))

		if !a.peaks {
			continue
		}
		switch {
		case v >= a.peak[i]:
			a.peak[i] = v
			a.peakAt[i] = now
		case now.Sub(a.peakAt[i]) > peakHold && a.peak[i] > 0:
			a.peak[i]--
			a.peakAt[i] = now.Add(peakFall - peakHold)
		}
		a.panel.SetPeak(i, a.peak[i])
	}
	a.panel.Show()
}
