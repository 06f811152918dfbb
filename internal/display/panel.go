// Package display models the bar panel: ten bars of twenty LEDs, a
// brightness level and an optional letter overlay.
package display

import (
	"sync"
	"time"

	"sid-sync/internal/baseline"
)

const (
	Bars   = baseline.Bars
	Height = baseline.MaxHeight

	MaxBrightness = 15

	// NoLetter means no overlay.
	NoLetter = -1
)

// Snapshot is what the panel shows.
type Snapshot struct {
	Bars       baseline.Frame `json:"bars"`
	Peaks      [Bars]int      `json:"peaks"` // -1 when off
	Brightness uint8          `json:"brightness"`
	On         bool           `json:"on"`
	Letter     int            `json:"letter"`
	Shown      time.Time      `json:"shown"`
}

// Recorder receives every shown frame.
type Recorder interface {
	Record(s Snapshot) error
}

// Panel buffers drawing and publishes it on Show. Drawing happens on the
// device loop; Snapshot may be called from any goroutine.
type Panel struct {
	mu sync.RWMutex

	pending baseline.Frame
	peaks   [Bars]int
	letter  int

	shown      Snapshot
	brightness uint8
	on         bool

	rec    Recorder
	recErr error
	now    func() time.Time
}

func NewPanel(rec Recorder) *Panel {
	p := &Panel{rec: rec, letter: NoLetter, brightness: MaxBrightness, on: true, now: time.Now}
	for i := range p.peaks {
		p.peaks[i] = -1
	}
	p.shown = p.snapshotLocked()
	return p
}

// DrawBar sets bar i to the given number of lit LEDs.
func (p *Panel) DrawBar(i int, height uint8) {
	if i < 0 || i >= Bars {
		return
	}
	if height > Height {
		height = Height
	}
	p.mu.Lock()
	p.pending[i] = height
	p.mu.Unlock()
}

// ClearBar blanks bar i.
func (p *Panel) ClearBar(i int) { p.DrawBar(i, 0) }

// Draw sets all bars.
func (p *Panel) Draw(f baseline.Frame) {
	for i, h := range f {
		p.DrawBar(i, h)
	}
}

// Pending returns the frame that the next Show publishes.
func (p *Panel) Pending() baseline.Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pending
}

// SetPeak sets the peak marker of bar i; -1 hides it.
func (p *Panel) SetPeak(i, level int) {
	if i < 0 || i >= Bars {
		return
	}
	p.mu.Lock()
	p.peaks[i] = level
	p.mu.Unlock()
}

// ClearPeaks hides all peak markers.
func (p *Panel) ClearPeaks() {
	p.mu.Lock()
	for i := range p.peaks {
		p.peaks[i] = -1
	}
	p.mu.Unlock()
}

// ShowLetter overlays a glyph; NoLetter removes it.
func (p *Panel) ShowLetter(code int) {
	p.mu.Lock()
	p.letter = code
	p.mu.Unlock()
}

// Clear blanks bars, peaks and overlay.
func (p *Panel) Clear() {
	p.mu.Lock()
	p.pending = baseline.Frame{}
	for i := range p.peaks {
		p.peaks[i] = -1
	}
	p.letter = NoLetter
	p.mu.Unlock()
}

// Show publishes the pending drawing.
func (p *Panel) Show() {
	p.mu.Lock()
	p.shown = p.snapshotLocked()
	s := p.shown
	rec := p.rec
	p.mu.Unlock()

	if rec != nil {
		if err := rec.Record(s); err != nil {
			p.mu.Lock()
			p.recErr = err
			p.mu.Unlock()
		}
	}
}

// RecordErr returns the last recorder failure.
func (p *Panel) RecordErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recErr
}

// SetBrightness sets the level, 0..MaxBrightness.
func (p *Panel) SetBrightness(level uint8) {
	if level > MaxBrightness {
		level = MaxBrightness
	}
	p.mu.Lock()
	p.brightness = level
	p.shown.Brightness = level
	p.mu.Unlock()
}

func (p *Panel) Brightness() uint8 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.brightness
}

func (p *Panel) On() {
	p.mu.Lock()
	p.on = true
	p.shown.On = true
	p.mu.Unlock()
}

func (p *Panel) Off() {
	p.mu.Lock()
	p.on = false
	p.shown.On = false
	p.mu.Unlock()
}

func (p *Panel) IsOn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.on
}

// Snapshot returns the last shown state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shown
}

func (p *Panel) snapshotLocked() Snapshot {
	return Snapshot{
		Bars:       p.pending,
		Peaks:      p.peaks,
		Brightness: p.brightness,
		On:         p.on,
		Letter:     p.letter,
		Shown:      p.now(),
	}
}
