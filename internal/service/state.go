package service

import "fmt"

// State is a step of one orchestration run.
type State int

const (
	StateCreated State = iota
	StateDecoding
	StateDispatched
	StateAwaitingBoth
	StateFusing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateCreated:      "created",
	StateDecoding:     "decoding",
	StateDispatched:   "dispatched",
	StateAwaitingBoth: "awaiting_both",
	StateFusing:       "fusing",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// allowed lists the legal successors of every non-terminal state. Failed is
// reachable from Created because variant and prompt checks happen before
// admission to decoding.
var allowed = map[State][]State{
	StateCreated:      {StateDecoding, StateFailed},
	StateDecoding:     {StateDispatched, StateFailed},
	StateDispatched:   {StateAwaitingBoth},
	StateAwaitingBoth: {StateFusing},
	StateFusing:       {StateDone, StateFailed},
}

// TransitionFunc observes state changes of a run.
type TransitionFunc func(requestID string, from, to State)

// run tracks the state of a single orchestration. It is owned by one
// goroutine and needs no locking.
type run struct {
	requestID string
	state     State
	onChange  TransitionFunc
}

func newRun(requestID string, onChange TransitionFunc) *run {
	return &run{requestID: requestID, state: StateCreated, onChange: onChange}
}

// to moves the run to next, panicking on an illegal edge. Illegal edges are
// programming errors in the orchestrator, never a consequence of input.
func (r *run) to(next State) {
	for _, candidate := range allowed[r.state] {
		if candidate == next {
			prev := r.state
			r.state = next
			if r.onChange != nil {
				r.onChange(r.requestID, prev, next)
			}
			return
		}
	}
	panic(fmt.Sprintf("illegal transition %s -> %s", r.state, next))
}
