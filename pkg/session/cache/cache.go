// Package cache provides an in-process session.Store backed by go-cache.
// Idle sessions expire after the configured TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/papercomputeco/landscape/pkg/session"
)

const defaultCleanupInterval = 10 * time.Minute

// Store implements session.Store in memory.
type Store struct {
	// mu sequences revision checks with writes and guards claims
	mu sync.Mutex

	// sessions maps session id to the session's JSON encoding
	sessions *gocache.Cache

	// claims maps session id to its current owner
	claims map[string]string
}

// NewStore creates a Store whose entries expire ttl after their last write.
// A zero ttl never expires entries.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Store{
		sessions: gocache.New(ttl, defaultCleanupInterval),
		claims:   make(map[string]string),
	}
}

// Get returns a copy of the stored session.
func (s *Store) Get(_ context.Context, id string) (*session.Session, error) {
	raw, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}

	out := &session.Session{}
	if err := json.Unmarshal(raw.([]byte), out); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return out, nil
}

// Put stores sess if its revision is current and advances sess.Revision.
func (s *Store) Put(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.revision(sess.ID)
	if err != nil {
		return err
	}
	if sess.Revision != current {
		return fmt.Errorf("%w: %s at revision %d, have %d",
			session.ErrConcurrentWrite, sess.ID, current, sess.Revision)
	}

	sess.Revision = current + 1
	data, err := json.Marshal(sess)
	if err != nil {
		sess.Revision = current
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}

	s.sessions.Set(sess.ID, data, gocache.DefaultExpiration)
	return nil
}

func (s *Store) revision(id string) (int64, error) {
	raw, ok := s.sessions.Get(id)
	if !ok {
		return 0, nil
	}

	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(raw.([]byte), &head); err != nil {
		return 0, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return head.Revision, nil
}

// Delete removes the session and any claim on it.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Delete(id)
	delete(s.claims, id)
	return nil
}

// Claim records owner as the session's driver.
func (s *Store) Claim(_ context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.claims[id]; ok && held != owner {
		return fmt.Errorf("%w: %s", session.ErrClaimed, id)
	}
	s.claims[id] = owner
	return nil
}

// Release drops owner's claim. Releasing an unclaimed session is a no-op.
func (s *Store) Release(_ context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.claims[id]
	if !ok {
		return nil
	}
	if held != owner {
		return fmt.Errorf("%w: %s", session.ErrClaimed, id)
	}
	delete(s.claims, id)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
