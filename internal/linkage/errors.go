package linkage

import (
	"errors"
	"fmt"
)

// ErrNoGroups is returned when a clustering pass is started with an
// empty group list.
var ErrNoGroups = errors.New("no groups to cluster")

// Phase names the stage of a clustering pass.
type Phase string

const (
	PhaseSelfScores Phase = "self-scores"
	PhaseRBH        Phase = "rbh"
	PhaseCandidates Phase = "candidates"
	PhasePersist    Phase = "persist"
)

// PhaseError reports which stage of a pass failed and, when the failure
// happened while walking a group pair, which pair it was.
type PhaseError struct {
	Phase  Phase
	GroupA string
	GroupB string
	Err    error
}

func (e *PhaseError) Error() string {
	switch {
	case e.GroupA == "":
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	case e.GroupA == e.GroupB:
		return fmt.Sprintf("%s [%s]: %v", e.Phase, e.GroupA, e.Err)
	default:
		return fmt.Sprintf("%s [%s/%s]: %v", e.Phase, e.GroupA, e.GroupB, e.Err)
	}
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseErr(phase Phase, a, b string, err error) *PhaseError {
	return &PhaseError{Phase: phase, GroupA: a, GroupB: b, Err: err}
}
