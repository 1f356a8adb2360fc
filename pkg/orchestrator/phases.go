package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/landscape/pkg/analysis"
	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/evaluation"
	"github.com/papercomputeco/landscape/pkg/eventstream"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/peer"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
	"github.com/papercomputeco/landscape/pkg/utils"
)

// errSuspend stops a phase that observed a pause request.
var errSuspend = errors.New("suspend requested")

// drive advances s phase by phase until it is terminal, paused, or the run
// is cancelled. It owns s for its whole lifetime.
func (c *Coordinator) drive(r *run, s *session.Session) {
	ctx := r.ctx
	log := c.logger.With("session_id", s.ID)

	stopRenewal := make(chan struct{})
	var renewal sync.WaitGroup
	if c.config.ClaimRenewal > 0 {
		renewal.Add(1)
		go func() {
			defer renewal.Done()
			c.keepClaim(r, stopRenewal)
		}()
	}

	defer func() {
		close(stopRenewal)
		renewal.Wait()
		c.release(s.ID, r.owner)
		c.unregister(r)
		close(r.done)
	}()

	for !s.Phase.Terminal() {
		if ctx.Err() != nil {
			r.err = r.stopErr()
			log.Info("session run cancelled", "phase", s.Phase)
			return
		}
		if r.pauseRequested() {
			r.err = c.suspend(ctx, r, s)
			return
		}

		if err := c.claim(ctx, r); err != nil {
			r.err = err
			log.Error("lost session claim", "phase", s.Phase, "error", err)
			return
		}

		from := s.Phase
		var err error
		switch s.Phase {
		case session.PhaseInit:
			err = c.initialize(s)
		case session.PhaseResearch:
			err = c.research(ctx, r, s)
		case session.PhaseAnalysis:
			err = c.analyze(ctx, s)
		case session.PhaseReport:
			err = c.report(ctx, s)
		default:
			err = &PhaseError{Phase: s.Phase, Kind: session.KindPhaseFailure, Err: fmt.Errorf("unknown phase %q", s.Phase)}
		}

		var phaseErr *PhaseError
		switch {
		case err == nil:
			if err := c.complete(ctx, from, s); err != nil {
				r.err = err
				log.Error("could not record phase", "phase", from, "error", err)
				return
			}
		case errors.Is(err, errSuspend):
			r.err = c.suspend(ctx, r, s)
			return
		case ctx.Err() != nil:
			r.err = r.stopErr()
			log.Info("session run cancelled", "phase", s.Phase)
			return
		case errors.As(err, &phaseErr):
			r.err = phaseErr
			if err := c.fail(ctx, s, phaseErr); err != nil {
				log.Error("could not record failure", "phase", phaseErr.Phase, "error", err)
			}
			return
		default:
			r.err = err
			log.Error("session run stopped", "phase", s.Phase, "error", err)
			return
		}
	}
}

// keepClaim refreshes r's claim every ClaimRenewal until stop is closed. A
// run whose claim was taken by another owner is cancelled.
func (c *Coordinator) keepClaim(r *run, stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.ClaimRenewal)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}

		err := c.config.Store.Claim(r.ctx, r.sessionID, r.owner)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrClaimed):
			r.claimLost.Store(true)
			c.logger.Error("lost session claim", "session_id", r.sessionID, "error", err)
			r.cancel()
			return
		case r.ctx.Err() == nil:
			c.logger.Warn("could not refresh session claim", "session_id", r.sessionID, "error", err)
		}
	}
}

// complete persists a phase transition and announces it.
func (c *Coordinator) complete(ctx context.Context, from session.Phase, s *session.Session) error {
	if err := c.config.Store.Put(ctx, s); err != nil {
		return fmt.Errorf("store session %s: %w", s.ID, err)
	}

	if s.Phase == session.PhaseDone && c.config.Memory != nil {
		if err := c.config.Memory.Finalize(ctx, s); err != nil {
			c.logger.Error("memory update failed", "session_id", s.ID, "error", err)
		}
	}

	if _, err := c.config.Checkpoints.Save(ctx, s); err != nil {
		return err
	}

	c.logger.Info("phase completed", "session_id", s.ID, "phase", from, "next", s.Phase)

	eventType := eventstream.EventTypePhaseCompleted
	if s.Phase == session.PhaseDone {
		eventType = eventstream.EventTypeSessionFinished
		c.logger.Info("session finished",
			"session_id", s.ID,
			"grade", s.Evaluation.Grade,
			"overall", s.Evaluation.Overall,
		)
	}
	c.publish(ctx, eventType, s)
	return nil
}

// suspend marks s paused at a safe boundary and checkpoints it.
func (c *Coordinator) suspend(ctx context.Context, r *run, s *session.Session) error {
	s.Paused = true
	s.UpdatedAt = c.config.Now()
	if err := c.config.Store.Put(ctx, s); err != nil {
		return fmt.Errorf("store session %s: %w", s.ID, err)
	}

	id, err := c.config.Checkpoints.Save(ctx, s)
	if err != nil {
		return err
	}
	r.checkpointID = id

	c.logger.Info("session paused", "session_id", s.ID, "phase", s.Phase, "checkpoint_id", id)
	return nil
}

// fail moves s to FAILED and records it.
func (c *Coordinator) fail(ctx context.Context, s *session.Session, pe *PhaseError) error {
	if err := s.Fail(pe.Kind, pe.Err, c.config.Now()); err != nil {
		return err
	}
	c.logger.Error("session failed",
		"session_id", s.ID,
		"phase", pe.Phase,
		"kind", pe.Kind,
		"error", pe.Err,
	)

	if err := c.config.Store.Put(ctx, s); err != nil {
		return fmt.Errorf("store session %s: %w", s.ID, err)
	}
	if _, err := c.config.Checkpoints.Save(ctx, s); err != nil {
		return err
	}
	c.publishFailed(ctx, s)
	return nil
}

func (c *Coordinator) initialize(s *session.Session) error {
	s.Outputs.Research = research.Aggregate(research.NewTasks(researchSubjects(s), c.config.Capabilities))
	return s.Transition(session.PhaseResearch, c.config.Now())
}

// research dispatches every unfinished task. Finished tasks from before a
// pause are kept as they are.
func (c *Coordinator) research(ctx context.Context, r *run, s *session.Session) error {
	out, err := s.Outputs.ResearchOutput()
	if err != nil {
		return &PhaseError{Phase: session.PhaseResearch, Kind: session.KindPhaseFailure, Err: err}
	}

	halted, err := research.Dispatch(ctx, c.config.researchConfig(), out.Tasks, r.pause)
	if err != nil {
		return err
	}

	agg := research.Aggregate(out.Tasks)
	s.Outputs.Research = agg
	if halted {
		return errSuspend
	}

	if agg.Succeeded == 0 {
		return &PhaseError{
			Phase: session.PhaseResearch,
			Kind:  session.KindPhaseFailure,
			Err:   fmt.Errorf("all %d research tasks failed", agg.Requested),
		}
	}

	now := c.config.Now()
	agg.CompletedAt = &now
	return s.Transition(session.PhaseAnalysis, now)
}

func (c *Coordinator) analyze(ctx context.Context, s *session.Session) error {
	res, err := s.Outputs.ResearchOutput()
	if err != nil {
		return &PhaseError{Phase: session.PhaseAnalysis, Kind: session.KindPhaseFailure, Err: err}
	}

	sizer := compaction.WithSizer(c.config.Sizer)
	fragments := res.Fragments(c.config.CapabilityWeights)

	in := analysis.Input{
		Query:        s.Inputs.Query,
		Subjects:     researchSubjects(s),
		Topics:       s.Inputs.Topics,
		Research:     res,
		Prior:        s.PriorContext,
		PeerInsights: s.PeerInsights,
	}
	if compaction.NeedsCompaction(fragments, c.config.CompactionBudget, sizer) {
		in.Context = compaction.Compact(fragments, c.config.CompactionBudget, sizer)
		in.Compacted = true
		c.logger.Info("research context compacted",
			"session_id", s.ID,
			"budget", in.Context.Budget,
			"dropped", in.Context.Dropped,
		)
	} else {
		in.Context = compaction.Keep(fragments, sizer)
	}

	pctx, cancel := context.WithTimeout(ctx, c.config.AnalysisTimeout)
	defer cancel()

	out, err := utils.Await(pctx, func(ctx context.Context) (*analysis.Output, error) {
		return c.config.Analyzer.Analyze(ctx, in)
	})
	if err != nil {
		return c.phaseError(ctx, pctx, session.PhaseAnalysis, c.config.AnalysisTimeout, err)
	}
	if out == nil {
		return &PhaseError{Phase: session.PhaseAnalysis, Kind: session.KindPhaseFailure, Err: errors.New("analyzer returned no output")}
	}

	s.Outputs.Analysis = out
	return s.Transition(session.PhaseReport, c.config.Now())
}

func (c *Coordinator) report(ctx context.Context, s *session.Session) error {
	an, err := s.Outputs.AnalysisOutput()
	if err != nil {
		return &PhaseError{Phase: session.PhaseReport, Kind: session.KindPhaseFailure, Err: err}
	}

	req := narrative.Request{
		Query:    s.Inputs.Query,
		Subjects: researchSubjects(s),
		Topics:   s.Inputs.Topics,
		Analysis: an,
	}

	pctx, cancel := context.WithTimeout(ctx, c.config.ReportTimeout)
	defer cancel()

	rep, err := utils.Await(pctx, func(ctx context.Context) (*narrative.Report, error) {
		return c.config.Generator.Generate(ctx, req)
	})
	if err != nil {
		return c.phaseError(ctx, pctx, session.PhaseReport, c.config.ReportTimeout, err)
	}
	if rep == nil {
		return &PhaseError{Phase: session.PhaseReport, Kind: session.KindPhaseFailure, Err: errors.New("generator returned no report")}
	}

	now := c.config.Now()
	rep.GeneratedAt = now
	s.Outputs.Report = rep
	if err := s.Transition(session.PhaseDone, now); err != nil {
		return err
	}

	ev := evaluation.Evaluate(s)
	s.Evaluation = &ev
	return nil
}

// phaseError classifies a collaborator failure. Cancellation of the run
// itself is returned as is so the driver can stop without failing the
// session.
func (c *Coordinator) phaseError(ctx, pctx context.Context, phase session.Phase, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		return &PhaseError{Phase: phase, Kind: session.KindTimeout, Err: fmt.Errorf("%s exceeded %s", phase, timeout)}
	}
	return &PhaseError{Phase: phase, Kind: session.KindPhaseFailure, Err: err}
}

func (c *Coordinator) publishFailed(ctx context.Context, s *session.Session) {
	c.publish(ctx, eventstream.EventTypeSessionFailed, s)
}

// publish sends a milestone to the configured publisher. Delivery failures
// never affect the session.
func (c *Coordinator) publish(ctx context.Context, eventType string, s *session.Session) {
	if c.config.Publisher == nil {
		return
	}

	now := c.config.Now()
	env, err := peer.Export(s, c.config.AgentID, now)
	if err != nil {
		c.logger.Warn("could not export session", "session_id", s.ID, "error", err)
		return
	}

	if err := c.config.Publisher.Publish(context.WithoutCancel(ctx), eventstream.NewSessionEvent(eventType, env, now)); err != nil {
		c.logger.Warn("could not publish session event",
			"session_id", s.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
