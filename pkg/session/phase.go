package session

import (
	"errors"
	"fmt"
)

// Phase is the coarse-grained stage a session is in.
type Phase string

const (
	PhaseInit     Phase = "INIT"
	PhaseResearch Phase = "RESEARCH"
	PhaseAnalysis Phase = "ANALYSIS"
	PhaseReport   Phase = "REPORT"
	PhaseDone     Phase = "DONE"
	PhaseFailed   Phase = "FAILED"
)

// ErrInvalidTransition is returned for a phase change the state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid phase transition")

var allowedTransitions = map[Phase]map[Phase]struct{}{
	PhaseInit:     {PhaseResearch: {}, PhaseFailed: {}},
	PhaseResearch: {PhaseAnalysis: {}, PhaseFailed: {}},
	PhaseAnalysis: {PhaseReport: {}, PhaseFailed: {}},
	PhaseReport:   {PhaseDone: {}, PhaseFailed: {}},
	PhaseDone:     {},
	PhaseFailed:   {},
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := allowedTransitions[p]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Next returns the phase that follows p on the success path, or "" when p is
// terminal.
func (p Phase) Next() Phase {
	switch p {
	case PhaseInit:
		return PhaseResearch
	case PhaseResearch:
		return PhaseAnalysis
	case PhaseAnalysis:
		return PhaseReport
	case PhaseReport:
		return PhaseDone
	default:
		return ""
	}
}

// ValidateTransition returns ErrInvalidTransition unless from -> to is allowed.
func ValidateTransition(from, to Phase) error {
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, from)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
