package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")

	// ErrConcurrentWrite is returned by Put when the caller's revision is
	// stale: another writer updated the session first.
	ErrConcurrentWrite = errors.New("concurrent write to session")

	// ErrClaimed is returned by Claim when another owner holds the session.
	ErrClaimed = errors.New("session claimed by another owner")
)

// Store holds live session state keyed by session id.
//
// Writes to one session are sequenced by Revision: Put succeeds only when
// the session's Revision equals the stored revision (zero to create) and
// increments it on success. Claim grants one owner the right to drive a
// session; it is re-entrant for the same owner, which refreshes any lease.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error

	Claim(ctx context.Context, id, owner string) error
	Release(ctx context.Context, id, owner string) error

	Close() error
}

// Leaser is implemented by stores whose claims expire. Drivers re-claim
// well within LeaseTTL to keep their claim.
type Leaser interface {
	LeaseTTL() time.Duration
}
