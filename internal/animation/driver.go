// Package animation draws the idle patterns, the tunnel, word sequences
// and the spectrum analyzer on the panel.
package animation

import (
	"log"
	"math/rand"
	"time"

	"sid-sync/internal/baseline"
	"sid-sync/internal/display"
	"sid-sync/internal/sequencer"
)

// NightModeSaverDelay replaces the screen saver delay while the TCD is
// in night mode.
const NightModeSaverDelay = 10 * time.Second

// RestoreBrightness asks SetBrightness for the user's level.
const RestoreBrightness = 255

// Options configure a Driver.
type Options struct {
	ScreenSaver time.Duration // 0 disables it
	Brightness  uint8

	// Speed returns the remote speed or -1.
	Speed func() int
	// Wait blocks for d while keeping the network serviced.
	Wait func(d time.Duration)
	Now  func() time.Time
	Rand *rand.Rand
}

// Driver is the device's Animator.
type Driver struct {
	panel  *display.Panel
	base   *baseline.State
	walker *baseline.Walker
	render *baseline.Renderer
	rnd    *rand.Rand
	opts   Options

	userBrightness uint8
	nextIdle       time.Time
	maskIdx        int

	powered     bool
	ssActive    bool
	ssDelay     time.Duration
	ssLast      time.Time
	nightMode   bool
	overlayText bool
}

var _ sequencer.Animator = (*Driver)(nil)

func NewDriver(panel *display.Panel, base *baseline.State, opts Options) *Driver {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Speed == nil {
		opts.Speed = func() int { return -1 }
	}
	if opts.Wait == nil {
		opts.Wait = time.Sleep
	}
	if opts.Brightness == 0 || opts.Brightness > display.MaxBrightness {
		opts.Brightness = display.MaxBrightness
	}
	d := &Driver{
		panel:          panel,
		base:           base,
		walker:         baseline.NewWalker(opts.Rand),
		render:         baseline.NewRenderer(opts.Rand),
		rnd:            opts.Rand,
		opts:           opts,
		userBrightness: opts.Brightness,
		powered:        true,
		ssDelay:        opts.ScreenSaver,
		ssLast:         opts.Now(),
	}
	panel.SetBrightness(d.userBrightness)
	return d
}

// Idle runs the idle animation and the screen saver.
func (d *Driver) Idle(now time.Time) {
	if !d.powered {
		return
	}
	if !d.ssActive && d.ssDelay > 0 && now.Sub(d.ssLast) > d.ssDelay {
		d.startScreenSaver()
	}
	if d.ssActive {
		return
	}
	d.advance(now, false)
}

// Freeze runs the idle animation without moving the baseline.
func (d *Driver) Freeze(now time.Time) {
	if !d.powered || d.ssActive {
		return
	}
	d.advance(now, true)
}

func (d *Driver) advance(now time.Time, freeze bool) {
	if now.Before(d.nextIdle) {
		return
	}
	st := d.walker.Advance(now, d.base, d.opts.Speed(), freeze)
	d.nextIdle = now.Add(st.Delay)

	if st.Backlot {
		d.panel.Draw(st.Frame)
		d.panel.Show()
		return
	}

	d.panel.Draw(d.render.Frame(*d.base, st.Flags, st.Variation))
	if st.Flags&baseline.FlagMaskedText != 0 {
		if st.Flags&baseline.FlagRepeat == 0 {
			d.maskIdx = (d.maskIdx + 1) % len(baseline.MaskedTunnelText)
		}
		d.panel.ShowLetter(int(baseline.MaskedTunnelText[d.maskIdx]))
	} else {
		d.panel.ShowLetter(display.NoLetter)
	}
	d.panel.Show()
}

// Draw shows a fixed frame.
func (d *Driver) Draw(f baseline.Frame) {
	d.panel.ShowLetter(display.NoLetter)
	d.panel.Draw(f)
	d.panel.Show()
}

// Tunnel draws one tunnel frame: the baseline at full height with a
// blank bar sweeping across, flickering once the sweep came back.
func (d *Driver) Tunnel(_ time.Time, flags baseline.Flags, t *sequencer.TunnelState) {
	masked := flags&baseline.FlagMaskedTunnel != 0
	d.panel.Draw(d.render.Frame(*d.base, flags, baseline.TunnelVariation))

	if flags&baseline.FlagAnimate != 0 && !masked {
		if bar, ok := t.Sweep(); ok {
			d.panel.ClearBar(bar)
		}
	}
	if t.Flicker || masked {
		d.panel.SetBrightness(uint8(d.rnd.Intn(13) + 3))
	}
	if masked {
		d.panel.ShowLetter(int(t.MaskLetter()))
	}
	d.panel.Show()
}

// Alarm shows the alarm word.
func (d *Driver) Alarm() {
	log.Printf("[anim] alarm")
	d.ShowWord("ALARM", 500*time.Millisecond)
}

// ShowWord shows text one glyph at a time, fading each out.
func (d *Driver) ShowWord(text string, hold time.Duration) {
	if !d.powered {
		return
	}
	d.overlayText = true
	defer func() { d.overlayText = false }()

	d.panel.Clear()
	for _, ch := range text {
		d.panel.Clear()
		d.panel.ShowLetter(int(ch))
		d.panel.SetBrightness(d.userBrightness)
		d.panel.Show()
		d.opts.Wait(hold)
		d.fadeOut()
		d.opts.Wait(50 * time.Millisecond)
	}
	d.panel.Clear()
	d.panel.Show()
	d.panel.SetBrightness(d.userBrightness)
	d.nextIdle = time.Time{}
}

func (d *Driver) fadeOut() {
	for b := int(d.panel.Brightness()); b >= 0; b-- {
		d.panel.SetBrightness(uint8(b))
		d.opts.Wait(10 * time.Millisecond)
	}
}

// SetBrightness sets the panel level; RestoreBrightness returns to the
// user's level.
func (d *Driver) SetBrightness(level uint8) {
	if level == RestoreBrightness {
		level = d.userBrightness
	}
	d.panel.SetBrightness(level)
}

// SetUserBrightness changes the level restored after effects.
func (d *Driver) SetUserBrightness(level uint8) {
	if level > display.MaxBrightness {
		level = display.MaxBrightness
	}
	d.userBrightness = level
	d.panel.SetBrightness(level)
}

func (d *Driver) UserBrightness() uint8 { return d.userBrightness }

func (d *Driver) startScreenSaver() {
	if d.ssActive {
		return
	}
	d.panel.Off()
	d.ssActive = true
	log.Printf("[anim] screen saver on")
}

// EndScreenSaver wakes the display and restarts the saver timer.
func (d *Driver) EndScreenSaver() {
	if !d.powered {
		return
	}
	d.ssLast = d.opts.Now()
	if !d.ssActive {
		return
	}
	d.panel.On()
	d.ssActive = false
	log.Printf("[anim] screen saver off")
}

// RestartScreenSaver restarts the saver timer.
func (d *Driver) RestartScreenSaver() { d.ssLast = d.opts.Now() }

func (d *Driver) ScreenSaverActive() bool { return d.ssActive }

// SetNightMode follows the TCD's night mode: the saver kicks in after
// NightModeSaverDelay while it is on.
func (d *Driver) SetNightMode(on bool) {
	if on == d.nightMode {
		return
	}
	d.nightMode = on
	if on {
		d.ssDelay = NightModeSaverDelay
		return
	}
	d.EndScreenSaver()
	d.ssDelay = d.opts.ScreenSaver
}

// StopGames ends any side display such as a word overlay.
func (d *Driver) StopGames() {
	if d.overlayText {
		return
	}
	d.panel.ShowLetter(display.NoLetter)
}

// ResetMaskedText restarts the masked text from its first glyph.
func (d *Driver) ResetMaskedText() {
	d.maskIdx = 0
	d.walker.ResetBacklot()
	d.nextIdle = time.Time{}
}

// PowerOff blanks the display and stops all animation.
func (d *Driver) PowerOff() {
	d.powered = false
	d.ssActive = false
	d.panel.Clear()
	d.panel.Show()
	d.panel.Off()
}

// PowerOn restarts from a fresh baseline.
func (d *Driver) PowerOn() {
	d.powered = true
	d.base.Reset()
	d.walker.ResetBacklot()
	d.maskIdx = 0
	d.panel.Clear()
	d.panel.On()
	d.panel.SetBrightness(d.userBrightness)
	d.panel.Show()
	d.ssLast = d.opts.Now()
	d.nextIdle = time.Time{}
}

func (d *Driver) Powered() bool { return d.powered }
