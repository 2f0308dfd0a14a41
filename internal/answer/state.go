package answer

import "fmt"

// State enumerates the stages of a single question's lifecycle.
type State int

const (
	StateReceived State = iota
	StateSessionResolved
	StateCacheCheck
	StateCacheHit
	StateRetrieving
	StateContextBuilt
	StateGenerating
	StateCacheWrite
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateReceived:        "RECEIVED",
	StateSessionResolved: "SESSION_RESOLVED",
	StateCacheCheck:      "CACHE_CHECK",
	StateCacheHit:        "CACHE_HIT",
	StateRetrieving:      "RETRIEVING",
	StateContextBuilt:    "CONTEXT_BUILT",
	StateGenerating:      "GENERATING",
	StateCacheWrite:      "CACHE_WRITE",
	StateDone:            "DONE",
	StateFailed:          "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lists the legal successor states. FAILED is terminal and
// reachable only from the required-path states.
var transitions = map[State][]State{
	StateReceived:        {StateSessionResolved},
	StateSessionResolved: {StateCacheCheck},
	StateCacheCheck:      {StateCacheHit, StateRetrieving},
	StateCacheHit:        {StateDone},
	StateRetrieving:      {StateContextBuilt, StateFailed},
	StateContextBuilt:    {StateGenerating},
	StateGenerating:      {StateCacheWrite, StateFailed},
	StateCacheWrite:      {StateDone},
}

// machine tracks one request's progress through the pipeline. It is
// used by a single goroutine; no locking.
type machine struct {
	state State
}

// advance moves to next, panicking on an illegal transition — that is a
// bug in the pipeline, not a runtime condition.
func (m *machine) advance(next State) {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return
		}
	}
	panic(fmt.Sprintf("illegal state transition %s -> %s", m.state, next))
}

// canAdvance reports whether next is a legal successor of the current
// state.
func (m *machine) canAdvance(next State) bool {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			return true
		}
	}
	return false
}
