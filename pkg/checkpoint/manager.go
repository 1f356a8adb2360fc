package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/session"
)

// Checkpoint reasons.
const (
	ReasonPause    = "pause"
	ReasonAbandon  = "abandon"
	ReasonFinished = "finished"
	reasonPhase    = "phase:"
)

// Manager saves and loads session checkpoints through a Driver.
type Manager struct {
	driver Driver
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock overrides time.Now for checkpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns a Manager over d.
func NewManager(d Driver, opts ...Option) *Manager {
	m := &Manager{
		driver: d,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save writes a snapshot of s and returns the new checkpoint's id. The
// snapshot is a deep copy: later changes to s never reach it.
func (m *Manager) Save(ctx context.Context, s *session.Session) (string, error) {
	snapshot, err := s.Clone()
	if err != nil {
		return "", fmt.Errorf("snapshot session %s: %w", s.ID, err)
	}

	cp := &Checkpoint{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		CreatedAt: m.now().UTC(),
		Reason:    reasonFor(s),
		Session:   *snapshot,
	}
	if err := m.driver.SaveCheckpoint(ctx, cp); err != nil {
		return "", fmt.Errorf("save checkpoint for session %s: %w", s.ID, err)
	}

	m.logger.Debug("checkpoint saved",
		"session_id", s.ID,
		"checkpoint_id", cp.ID,
		"seq", cp.Seq,
		"reason", cp.Reason,
	)
	return cp.ID, nil
}

func reasonFor(s *session.Session) string {
	switch {
	case s.Phase == session.PhaseFailed && s.Error != nil && s.Error.Kind == session.KindAbandoned:
		return ReasonAbandon
	case s.Phase.Terminal():
		return ReasonFinished
	case s.Paused:
		return ReasonPause
	default:
		return reasonPhase + string(s.Phase)
	}
}

// Get returns a checkpoint. An empty checkpointID selects the latest.
// A session with no checkpoints yields session.ErrNotFound; an unknown
// checkpointID yields ErrNotFound.
func (m *Manager) Get(ctx context.Context, sessionID, checkpointID string) (*Checkpoint, error) {
	latest, err := m.driver.LatestCheckpoint(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
		}
		return nil, err
	}
	if checkpointID == "" || checkpointID == latest.ID {
		return latest, nil
	}

	cp, err := m.driver.GetCheckpoint(ctx, sessionID, strings.TrimSpace(checkpointID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, checkpointID)
		}
		return nil, err
	}
	return cp, nil
}

// Load restores the session stored in a checkpoint. An empty checkpointID
// selects the latest.
func (m *Manager) Load(ctx context.Context, sessionID, checkpointID string) (*session.Session, error) {
	cp, err := m.Get(ctx, sessionID, checkpointID)
	if err != nil {
		return nil, err
	}
	return cp.Session.Clone()
}

// List returns a session's checkpoints oldest first.
func (m *Manager) List(ctx context.Context, sessionID string) ([]*Checkpoint, error) {
	return m.driver.ListCheckpoints(ctx, sessionID)
}
