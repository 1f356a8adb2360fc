package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

var (
	// ErrInvalidInput is returned for caller errors. No state changes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRunning is returned when another run holds the session.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrFinished is returned for operations on a DONE or FAILED session.
	ErrFinished = fmt.Errorf("%w: session already finished", ErrInvalidInput)

	// ErrClosed is returned once the coordinator has been closed.
	ErrClosed = errors.New("coordinator closed")
)

// PhaseError is a failure that moved a session to FAILED.
type PhaseError struct {
	Phase session.Phase
	Kind  string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Kind, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Error kinds, as exposed through status, the API and the CLI.
const (
	KindInvalidInput       = "InvalidInput"
	KindSessionNotFound    = "SessionNotFound"
	KindCheckpointNotFound = "CheckpointNotFound"
	KindAlreadyRunning     = "AlreadyRunning"
	KindConcurrentWrite    = "ConcurrentWriteError"
	KindCapabilityFailure  = "CapabilityFailure"
	KindTimeout            = "Timeout"
	KindPhaseFailure       = "PhaseFailure"
	KindInternal           = "Internal"
)

// Kind maps err to its error kind. A nil error has no kind.
func Kind(err error) string {
	var (
		phaseErr *PhaseError
		taskErr  *research.TaskError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, session.ErrInvalidTransition):
		return KindInvalidInput
	case errors.Is(err, checkpoint.ErrNotFound):
		return KindCheckpointNotFound
	case errors.Is(err, session.ErrNotFound):
		return KindSessionNotFound
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, session.ErrClaimed):
		return KindAlreadyRunning
	case errors.Is(err, session.ErrConcurrentWrite):
		return KindConcurrentWrite
	case errors.As(err, &phaseErr):
		if phaseErr.Kind == session.KindTimeout {
			return KindTimeout
		}
		return KindPhaseFailure
	case errors.As(err, &taskErr):
		if taskErr.Kind == research.KindTimeout {
			return KindTimeout
		}
		return KindCapabilityFailure
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}
