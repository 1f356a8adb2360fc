// Package checkpoint stores immutable, append-only snapshots of sessions and
// restores them on resume.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/papercomputeco/landscape/pkg/session"
)

// ErrNotFound is returned when a checkpoint id does not exist for a session.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is a snapshot of a session. It is never modified after it is
// written.
type Checkpoint struct {
	ID        string    `json:"checkpoint_id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`

	// Reason describes the boundary that produced the checkpoint, e.g.
	// "pause" or "phase:ANALYSIS".
	Reason string `json:"reason"`

	Session session.Session `json:"session"`
}

// Driver persists checkpoints. Checkpoints of one session are totally
// ordered by Seq, which the driver assigns on save in write order.
type Driver interface {
	// SaveCheckpoint appends cp, assigning cp.Seq.
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error

	// GetCheckpoint returns the checkpoint id of session sessionID, or
	// ErrNotFound.
	GetCheckpoint(ctx context.Context, sessionID, id string) (*Checkpoint, error)

	// LatestCheckpoint returns the highest-Seq checkpoint of a session, or
	// ErrNotFound when it has none.
	LatestCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error)

	// ListCheckpoints returns a session's checkpoints in Seq order.
	ListCheckpoints(ctx context.Context, sessionID string) ([]*Checkpoint, error)

	// Close releases driver resources.
	Close() error
}
