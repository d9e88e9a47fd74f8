package lifecycle

import "sync/atomic"

// Phase is where the process is in its serve/drain cycle.
type Phase int32

const (
	Starting Phase = iota
	Serving
	Draining
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Serving:
		return "serving"
	case Draining:
		return "shutting-down"
	}
	return "unknown"
}

var phase atomic.Int32

// SetPhase records the current phase. main moves to Serving once the listener
// is up and to Draining when SIGTERM/SIGINT arrives.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the last phase set.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// IsDraining reports whether the process should stop receiving new traffic.
// /health answers 503 while true.
func IsDraining() bool {
	return CurrentPhase() == Draining
}
