package resolver

import "github.com/aliceyli/job-board-finder/internal/model"

// State of one resolution.
//
//	SEARCHING ──► FOUND
//	    │
//	    └───────► EXHAUSTED
//
// FOUND and EXHAUSTED are terminal states.
type State string

const (
	StateSearching State = "SEARCHING"
	StateFound     State = "FOUND"
	StateExhausted State = "EXHAUSTED"
)

var validTransitions = map[State][]State{
	StateSearching: {StateFound, StateExhausted},
	// FOUND and EXHAUSTED are terminal
}

// IsTransitionAllowed reports whether moving from → to is permitted.
func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s State) bool {
	_, ok := validTransitions[s]
	return !ok
}

// StepKind classifies the result of one (candidate, provider) probe.
type StepKind int

const (
	SoftMiss StepKind = iota
	Match
	HardError
)

func (k StepKind) String() string {
	switch k {
	case Match:
		return "match"
	case HardError:
		return "hard_error"
	default:
		return "soft_miss"
	}
}

// Classify maps a provider's Fetch return values onto a StepKind.
func Classify(res *model.BoardResult, err error) StepKind {
	switch {
	case err != nil:
		return HardError
	case res == nil:
		return SoftMiss
	default:
		return Match
	}
}
