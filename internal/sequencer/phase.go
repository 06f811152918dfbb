// Package sequencer runs the time travel sequence: acceleration, tunnel
// and reentry, either in step with the TCD or on its own.
package sequencer

// Phase is the sequencer state. Exactly one phase is current.
type Phase int

const (
	Idle Phase = iota
	Accelerate
	Tunnel
	Reentry
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Accelerate:
		return "accelerate"
	case Tunnel:
		return "tunnel"
	case Reentry:
		return "reentry"
	}
	return "unknown"
}

// validTransitions lists the legal phase changes. A run always goes
// through all phases in order; stopping a run (power off) jumps to Idle.
var validTransitions = map[Phase]map[Phase]bool{
	Idle:       {Accelerate: true},
	Accelerate: {Tunnel: true, Idle: true},
	Tunnel:     {Reentry: true, Idle: true},
	Reentry:    {Idle: true},
}

// IsValidTransition reports whether from -> to is legal.
func IsValidTransition(from, to Phase) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
