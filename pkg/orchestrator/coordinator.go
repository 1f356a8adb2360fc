// Package orchestrator drives sessions through their phases. A Coordinator
// owns the runs in this process: it starts sessions, pauses them at safe
// boundaries, resumes them from checkpoints and records their outcome in the
// memory bank.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/peer"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

// Coordinator runs sessions in background goroutines.
type Coordinator struct {
	config *Config
	logger *slog.Logger

	// id prefixes the claim owner of every run started here
	id string

	// ctx is the parent of every run context. It outlives the requests
	// that start runs.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	runs   map[string]*run
	closed bool

	// wg counts registered runs. It is only incremented under mu while
	// the coordinator is open.
	wg sync.WaitGroup
}

// New creates a Coordinator.
func New(c Config) (*Coordinator, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if c.AgentID == "" {
		c.AgentID = "landscape-" + id[:8]
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		config: &c,
		logger: c.Logger,
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]*run),
	}, nil
}

// AgentID is the identity this coordinator uses with peers.
func (c *Coordinator) AgentID() string {
	return c.config.AgentID
}

// Start creates a session for inputs, moves it into RESEARCH and runs it in
// the background. It returns once the session and its first checkpoint are
// written.
func (c *Coordinator) Start(ctx context.Context, inputs session.Inputs) (string, error) {
	in := inputs.Normalize()
	if in.Empty() {
		return "", fmt.Errorf("%w: a query or at least one subject is required", ErrInvalidInput)
	}

	now := c.config.Now()
	s := session.New(uuid.NewString(), in, now)
	if err := s.Transition(session.PhaseResearch, now); err != nil {
		return "", err
	}

	subjects := researchSubjects(s)
	s.PriorContext = c.recall(ctx, subjects)
	s.Outputs.Research = research.Aggregate(research.NewTasks(subjects, c.config.Capabilities))

	r, err := c.register(s.ID)
	if err != nil {
		return "", err
	}
	if err := c.claim(ctx, r); err != nil {
		c.unregister(r)
		return "", err
	}
	if err := c.config.Store.Put(ctx, s); err != nil {
		c.abort(r)
		return "", fmt.Errorf("store session %s: %w", s.ID, err)
	}
	if _, err := c.config.Checkpoints.Save(ctx, s); err != nil {
		c.abort(r)
		return "", err
	}

	c.logger.Info("session started",
		"session_id", s.ID,
		"subjects", len(subjects),
		"topics", len(in.Topics),
	)

	c.launch(r, s)
	return s.ID, nil
}

// Resume restores a session from a checkpoint (the latest when checkpointID
// is empty) and continues it in the background from its stored phase. It
// returns the restored state.
func (c *Coordinator) Resume(ctx context.Context, sessionID, checkpointID string) (*session.Session, error) {
	s, err := c.config.Checkpoints.Load(ctx, sessionID, checkpointID)
	if err != nil {
		return nil, err
	}
	if s.Phase.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrFinished, sessionID, s.Phase)
	}

	r, err := c.register(sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.claim(ctx, r); err != nil {
		c.unregister(r)
		return nil, err
	}

	live, err := c.config.Store.Get(ctx, sessionID)
	switch {
	case err == nil:
		if live.Phase.Terminal() {
			c.abort(r)
			return nil, fmt.Errorf("%w: %s is %s", ErrFinished, sessionID, live.Phase)
		}
		s.Revision = live.Revision
	case errors.Is(err, session.ErrNotFound):
		s.Revision = 0
	default:
		c.abort(r)
		return nil, err
	}

	s.Paused = false
	s.UpdatedAt = c.config.Now()
	if err := c.config.Store.Put(ctx, s); err != nil {
		c.abort(r)
		return nil, fmt.Errorf("store session %s: %w", sessionID, err)
	}

	snapshot, err := s.Clone()
	if err != nil {
		c.abort(r)
		return nil, err
	}

	c.logger.Info("session resumed",
		"session_id", sessionID,
		"checkpoint_id", checkpointID,
		"phase", s.Phase,
	)

	c.launch(r, s)
	return snapshot, nil
}

// Pause stops a session at its next safe boundary and returns the id of the
// pause checkpoint. A running session is paused by its run, which Pause
// waits for. An idle session is marked paused and checkpointed directly.
func (c *Coordinator) Pause(ctx context.Context, sessionID string) (string, error) {
	if r := c.lookup(sessionID); r != nil {
		r.requestPause()
		if err := r.wait(ctx); err != nil {
			return "", err
		}
		if r.checkpointID != "" {
			return r.checkpointID, nil
		}
		var phaseErr *PhaseError
		if r.err != nil && !errors.As(r.err, &phaseErr) && !errors.Is(r.err, context.Canceled) {
			return "", r.err
		}
		return "", fmt.Errorf("%w: %s", ErrFinished, sessionID)
	}

	s, err := c.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if s.Phase.Terminal() {
		return "", fmt.Errorf("%w: %s is %s", ErrFinished, sessionID, s.Phase)
	}
	if s.Paused {
		cp, err := c.config.Checkpoints.Get(ctx, sessionID, "")
		if err != nil {
			return "", err
		}
		return cp.ID, nil
	}

	var checkpointID string
	err = c.withClaim(ctx, sessionID, func() error {
		s.Paused = true
		s.UpdatedAt = c.config.Now()
		if err := c.config.Store.Put(ctx, s); err != nil {
			return fmt.Errorf("store session %s: %w", sessionID, err)
		}
		checkpointID, err = c.config.Checkpoints.Save(ctx, s)
		return err
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("session paused", "session_id", sessionID, "checkpoint_id", checkpointID)
	return checkpointID, nil
}

// Abandon hard-cancels a session. Results still in flight are discarded and
// the session ends FAILED with kind abandoned.
func (c *Coordinator) Abandon(ctx context.Context, sessionID string) (*session.Session, error) {
	if r := c.lookup(sessionID); r != nil {
		r.cancel()
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
	}

	s, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Phase.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrFinished, sessionID, s.Phase)
	}

	err = c.withClaim(ctx, sessionID, func() error {
		now := c.config.Now()
		if err := s.Fail(session.KindAbandoned, errors.New("abandoned by caller"), now); err != nil {
			return err
		}
		if err := c.config.Store.Put(ctx, s); err != nil {
			return fmt.Errorf("store session %s: %w", sessionID, err)
		}
		_, err := c.config.Checkpoints.Save(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Warn("session abandoned", "session_id", sessionID, "phase", s.Error.Phase)
	c.publishFailed(ctx, s)
	return s, nil
}

// RunToCompletion drives an idle session in the calling goroutine until it
// is DONE, FAILED or paused. Cancelling ctx pauses the session at its next
// safe boundary rather than abandoning it.
func (c *Coordinator) RunToCompletion(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Phase.Terminal() {
		return s, nil
	}

	r, err := c.register(sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.claim(ctx, r); err != nil {
		c.unregister(r)
		return nil, err
	}

	if s.Paused {
		s.Paused = false
		s.UpdatedAt = c.config.Now()
		if err := c.config.Store.Put(ctx, s); err != nil {
			c.abort(r)
			return nil, fmt.Errorf("store session %s: %w", sessionID, err)
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			r.requestPause()
		case <-r.done:
		}
	}()

	c.drive(r, s)

	var phaseErr *PhaseError
	if r.err != nil && !errors.As(r.err, &phaseErr) {
		return nil, r.err
	}
	return s.Clone()
}

// Wait blocks until the session's background run stops, then returns its
// state.
func (c *Coordinator) Wait(ctx context.Context, sessionID string) (*session.Session, error) {
	if r := c.lookup(sessionID); r != nil {
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.Status(ctx, sessionID)
}

// Status returns a session's current state. Sessions that are no longer in
// the session store are read from their latest checkpoint.
func (c *Coordinator) Status(ctx context.Context, sessionID string) (*session.Session, error) {
	return c.load(ctx, sessionID)
}

// Running reports whether this coordinator is driving the session.
func (c *Coordinator) Running(sessionID string) bool {
	return c.lookup(sessionID) != nil
}

// Checkpoints lists a session's checkpoints oldest first.
func (c *Coordinator) Checkpoints(ctx context.Context, sessionID string) ([]*checkpoint.Checkpoint, error) {
	cps, err := c.config.Checkpoints.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
	}
	return cps, nil
}

// Export builds a peer envelope from the session's current state.
func (c *Coordinator) Export(ctx context.Context, sessionID string) (*peer.Envelope, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return peer.Export(s, c.config.AgentID, c.config.Now())
}

// Merge folds a peer envelope into an idle session. Sessions being driven
// by a run must be paused first.
func (c *Coordinator) Merge(ctx context.Context, sessionID string, env *peer.Envelope) (*peer.MergeResult, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: missing envelope", ErrInvalidInput)
	}
	if c.lookup(sessionID) != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, sessionID)
	}

	s, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var result *peer.MergeResult
	err = c.withClaim(ctx, sessionID, func() error {
		res, err := peer.Merge(s, env)
		if err != nil {
			if errors.Is(err, peer.ErrIncompatible) ||
				errors.Is(err, peer.ErrMergeClosed) ||
				errors.Is(err, peer.ErrNoResearch) {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			return err
		}
		result = res

		s.UpdatedAt = c.config.Now()
		if err := c.config.Store.Put(ctx, s); err != nil {
			return fmt.Errorf("store session %s: %w", sessionID, err)
		}
		_, err = c.config.Checkpoints.Save(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("peer envelope merged",
		"session_id", sessionID,
		"sender_id", env.SenderID,
		"merged", len(result.Merged),
		"insights", result.Insights,
	)
	return result, nil
}

// Close pauses every run and waits for them to stop. Later calls that would
// start a run return ErrClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	runs := make([]*run, 0, len(c.runs))
	for _, r := range c.runs {
		runs = append(runs, r)
	}
	c.mu.Unlock()

	for _, r := range runs {
		r.requestPause()
	}
	c.wg.Wait()
	c.cancel()
	return nil
}

// load reads the live session, falling back to the latest checkpoint. A
// session restored from a checkpoint is not in the store, so its revision
// is reset for creation.
func (c *Coordinator) load(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := c.config.Store.Get(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	s, err = c.config.Checkpoints.Load(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	s.Revision = 0
	return s, nil
}

func (c *Coordinator) register(sessionID string) (*run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.runs[sessionID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, sessionID)
	}

	ctx, cancel := context.WithCancel(c.ctx)
	r := &run{
		sessionID: sessionID,
		owner:     c.id + "/" + uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
		pause:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.runs[sessionID] = r
	c.wg.Add(1)
	return r, nil
}

// unregister ends a registered run. It is called exactly once per run.
func (c *Coordinator) unregister(r *run) {
	c.mu.Lock()
	if c.runs[r.sessionID] == r {
		delete(c.runs, r.sessionID)
	}
	c.mu.Unlock()
	r.cancel()
	c.wg.Done()
}

func (c *Coordinator) lookup(sessionID string) *run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[sessionID]
}

func (c *Coordinator) claim(ctx context.Context, r *run) error {
	if err := c.config.Store.Claim(ctx, r.sessionID, r.owner); err != nil {
		if errors.Is(err, session.ErrClaimed) {
			return fmt.Errorf("%w: %w", ErrAlreadyRunning, err)
		}
		return err
	}
	return nil
}

// abort undoes register and claim for a run that never launched.
func (c *Coordinator) abort(r *run) {
	c.release(r.sessionID, r.owner)
	c.unregister(r)
}

func (c *Coordinator) release(sessionID, owner string) {
	if err := c.config.Store.Release(context.WithoutCancel(c.ctx), sessionID, owner); err != nil {
		c.logger.Warn("could not release session", "session_id", sessionID, "error", err)
	}
}

// withClaim runs fn while holding a short-lived claim on an idle session.
func (c *Coordinator) withClaim(ctx context.Context, sessionID string, fn func() error) error {
	owner := c.id + "/" + uuid.NewString()
	if err := c.config.Store.Claim(ctx, sessionID, owner); err != nil {
		if errors.Is(err, session.ErrClaimed) {
			return fmt.Errorf("%w: %w", ErrAlreadyRunning, err)
		}
		return err
	}
	defer c.release(sessionID, owner)
	return fn()
}

func (c *Coordinator) launch(r *run, s *session.Session) {
	go c.drive(r, s)
}

// recall loads prior knowledge of subjects from the memory bank. Memory is
// advisory: failures are logged and the session starts without it.
func (c *Coordinator) recall(ctx context.Context, subjects []string) *compaction.Context {
	if c.config.Memory == nil {
		return nil
	}

	fragments, err := c.config.Memory.Recall(ctx, subjects, c.config.HistoryLimit)
	if err != nil {
		c.logger.Warn("memory recall failed", "error", err)
		return nil
	}
	if len(fragments) == 0 {
		return nil
	}

	prior := compaction.Compact(fragments, c.config.CompactionBudget, compaction.WithSizer(c.config.Sizer))
	return &prior
}

// researchSubjects is the subject list of a session. A query-only session
// researches its query.
func researchSubjects(s *session.Session) []string {
	if len(s.Inputs.Subjects) > 0 {
		return s.Inputs.Subjects
	}
	return []string{s.Inputs.Query}
}
