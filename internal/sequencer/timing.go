package sequencer

import "time"

// Fixed durations of a standalone run.
const (
	StandaloneAccel  = 5000 * time.Millisecond
	StandaloneTunnel = 5000 * time.Millisecond
	StandaloneDelay  = 2500 * time.Millisecond

	// DefaultLead is the acceleration lead a TCD uses when it does not
	// say otherwise.
	DefaultLead = 5000 * time.Millisecond

	minStepInterval = 65 // ms
)

// AccelTiming computes the initial quiet delay and the step interval of
// the acceleration phase for n decay steps. External runs fit into lead;
// standalone runs use the fixed 5 s budget with a 2.5 s quiet start.
// Intervals below 65 ms are raised to 65 ms when the steps still fit,
// moving the slack into the delay.
func AccelTiming(external bool, lead time.Duration, n int) (delay, interval time.Duration) {
	d := lead.Milliseconds()
	var dl int64
	if external {
		if d > 2500 {
			dl = d - 2500
		}
	} else {
		d = StandaloneAccel.Milliseconds()
		dl = StandaloneDelay.Milliseconds()
	}

	if n <= 0 {
		if external {
			return 0, 0
		}
		return ms(dl), 0
	}

	steps := int64(n + 1)
	iv := (d - dl) / steps
	if iv > 0 && iv < minStepInterval && steps*minStepInterval <= d {
		iv = minStepInterval
		dl = d - iv*steps
	}
	if iv < 0 {
		iv = 0
	}
	return ms(dl), ms(iv)
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
