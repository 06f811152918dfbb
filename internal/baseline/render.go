package baseline

import "math/rand"

// TunnelVariation is the bar variation used for tunnel frames.
const TunnelVariation = 80

// Renderer synthesizes bar frames from the baseline. It keeps the top
// LED of the last frame so consecutive frames do not jump. Returned
// frames carry heights (lit LEDs per bar).
type Renderer struct {
	rnd  *rand.Rand
	prev Frame
}

func NewRenderer(rnd *rand.Rand) *Renderer {
	return &Renderer{rnd: rnd}
}

// Prev returns the last synthesized frame.
func (r *Renderer) Prev() Frame { return heights(r.prev) }

// Frame builds the frame for the current baseline.
func (r *Renderer) Frame(s State, flags Flags, variation int) Frame {
	if flags&FlagRepeat != 0 {
		return heights(r.prev)
	}
	tunnel := flags&FlagTunnel != 0
	animate := flags&FlagAnimate != 0

	var out Frame
	if flags&FlagStrict != 0 {
		row := strictSeq[clamp(s.Strict, 0, StrictLen-1)]
		for i := range out {
			bh := int(row[i])
			if tunnel && (bh > int(maxTunnelHeight[i])+1 || !animate) {
				bh = int(maxTunnelHeight[i]) + 1
			}
			out[i] = uint8(bh)
			if bh > 0 {
				bh--
			}
			r.prev[i] = uint8(bh)
		}
		return out
	}

	a := clamp(s.Free, 0, MaxFree)
	b := a
	vc := variation / 2
	if tunnel {
		b = 20
		vc = 0
	}
	if variation <= 0 {
		variation = 1
	}
	for i := range out {
		bh := a * (mods[b][i] + r.rnd.Intn(variation) - vc) / 100
		bh = clamp(bh, 0, MaxFree)
		if flags&FlagMaskedText != 0 && bh < 9 {
			bh = 9 + r.rnd.Intn(4)
		}
		if !tunnel && abs(bh-int(r.prev[i])) > 5 {
			bh = (int(r.prev[i]) + bh) / 2
		}
		if tunnel && (bh > int(maxTunnelHeight[i]) || !animate) {
			bh = int(maxTunnelHeight[i])
		}
		out[i] = uint8(bh + 1)
		r.prev[i] = uint8(bh)
	}
	return out
}

// heights turns top LED indices into bar heights.
func heights(top Frame) Frame {
	var out Frame
	for i, t := range top {
		out[i] = t + 1
	}
	return out
}
