package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/memory"
	"github.com/papercomputeco/landscape/pkg/orchestrator"
	"github.com/papercomputeco/landscape/pkg/peer"
	"github.com/papercomputeco/landscape/pkg/session"
)

// defaultHistoryLimit is used by the memory route when no limit is given.
const defaultHistoryLimit = 10

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is one of the orchestrator error kinds, e.g. "SessionNotFound".
	Kind string `json:"kind,omitempty"`
}

// StartRequest starts a new session.
type StartRequest struct {
	Query    string   `json:"query"`
	Subjects []string `json:"subjects"`
	Topics   []string `json:"topics,omitempty"`
}

// StartResponse identifies the session that was started.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// ResumeRequest selects the checkpoint to resume from. An empty
// CheckpointID resumes from the latest one.
type ResumeRequest struct {
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// PauseResponse carries the checkpoint written when the session paused.
type PauseResponse struct {
	SessionID    string `json:"session_id"`
	CheckpointID string `json:"checkpoint_id"`
}

// CheckpointSummary describes a checkpoint without its session snapshot.
type CheckpointSummary struct {
	CheckpointID string        `json:"checkpoint_id"`
	Seq          int64         `json:"seq"`
	Reason       string        `json:"reason"`
	Phase        session.Phase `json:"phase"`
	CreatedAt    string        `json:"created_at"`
}

// MemoryResponse is what the memory bank holds for one subject.
type MemoryResponse struct {
	Subject string                 `json:"subject"`
	Profile *memory.Profile        `json:"profile,omitempty"`
	History []*memory.HistoryEntry `json:"history"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStartSession creates a session and starts driving it in the
// background.
func (s *Server) handleStartSession(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
			Kind:  orchestrator.KindInvalidInput,
		})
	}

	id, err := s.coordinator.Start(c.Context(), session.Inputs{
		Query:    req.Query,
		Subjects: req.Subjects,
		Topics:   req.Topics,
	})
	if err != nil {
		return s.errorResponse(c, "could not start session", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartResponse{SessionID: id})
}

// handleGetSession returns a session's current state.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.coordinator.Status(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorResponse(c, "could not get session", err)
	}
	return c.JSON(sess)
}

// handlePauseSession pauses a session at its next safe boundary.
func (s *Server) handlePauseSession(c *fiber.Ctx) error {
	id := c.Params("id")
	checkpointID, err := s.coordinator.Pause(c.Context(), id)
	if err != nil {
		return s.errorResponse(c, "could not pause session", err)
	}
	return c.JSON(PauseResponse{SessionID: id, CheckpointID: checkpointID})
}

// handleResumeSession resumes a session from a checkpoint.
func (s *Server) handleResumeSession(c *fiber.Ctx) error {
	var req ResumeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "invalid request body",
				Kind:  orchestrator.KindInvalidInput,
			})
		}
	}

	sess, err := s.coordinator.Resume(c.Context(), c.Params("id"), req.CheckpointID)
	if err != nil {
		return s.errorResponse(c, "could not resume session", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(sess)
}

// handleAbandonSession stops a session and marks it failed.
func (s *Server) handleAbandonSession(c *fiber.Ctx) error {
	sess, err := s.coordinator.Abandon(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorResponse(c, "could not abandon session", err)
	}
	return c.JSON(sess)
}

// handleListCheckpoints returns a session's checkpoints oldest first.
func (s *Server) handleListCheckpoints(c *fiber.Ctx) error {
	cps, err := s.coordinator.Checkpoints(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorResponse(c, "could not list checkpoints", err)
	}
	return c.JSON(summarize(cps))
}

func summarize(cps []*checkpoint.Checkpoint) []CheckpointSummary {
	out := make([]CheckpointSummary, 0, len(cps))
	for _, cp := range cps {
		out = append(out, CheckpointSummary{
			CheckpointID: cp.ID,
			Seq:          cp.Seq,
			Reason:       cp.Reason,
			Phase:        cp.Session.Phase,
			CreatedAt:    cp.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return out
}

// handleExportSession returns the session as a peer envelope.
func (s *Server) handleExportSession(c *fiber.Ctx) error {
	env, err := s.coordinator.Export(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorResponse(c, "could not export session", err)
	}
	return c.JSON(env)
}

// handleMergeSession folds a peer envelope into an idle session.
func (s *Server) handleMergeSession(c *fiber.Ctx) error {
	var env peer.Envelope
	if err := c.BodyParser(&env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid envelope",
			Kind:  orchestrator.KindInvalidInput,
		})
	}

	res, err := s.coordinator.Merge(c.Context(), c.Params("id"), &env)
	if err != nil {
		return s.errorResponse(c, "could not merge envelope", err)
	}
	return c.JSON(res)
}

// handleGetMemory returns the stored profile and recent history of a
// subject. Query parameter "limit" bounds the history.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	if s.bank == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "memory bank not configured"})
	}

	subject := c.Params("subject")
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "limit must be a non-negative integer",
				Kind:  orchestrator.KindInvalidInput,
			})
		}
		limit = n
	}

	resp := MemoryResponse{Subject: memory.NormalizeKey(subject)}

	profile, err := s.bank.GetProfile(c.Context(), subject)
	switch {
	case errors.Is(err, memory.ErrInvalidKey):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error(), Kind: orchestrator.KindInvalidInput})
	case errors.Is(err, memory.ErrNotFound):
	case err != nil:
		return s.errorResponse(c, "could not read profile", err)
	default:
		resp.Profile = profile
	}

	history, err := s.bank.QueryHistory(c.Context(), subject, limit, nil)
	if err != nil {
		return s.errorResponse(c, "could not read history", err)
	}
	if history == nil {
		history = []*memory.HistoryEntry{}
	}
	resp.History = history

	return c.JSON(resp)
}

// errorResponse maps err to a status code by its orchestrator kind.
func (s *Server) errorResponse(c *fiber.Ctx, msg string, err error) error {
	kind := orchestrator.Kind(err)

	status := fiber.StatusInternalServerError
	switch kind {
	case orchestrator.KindInvalidInput:
		status = fiber.StatusBadRequest
	case orchestrator.KindSessionNotFound, orchestrator.KindCheckpointNotFound:
		status = fiber.StatusNotFound
	case orchestrator.KindAlreadyRunning, orchestrator.KindConcurrentWrite:
		status = fiber.StatusConflict
	case orchestrator.KindTimeout:
		status = fiber.StatusGatewayTimeout
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error(msg, "path", c.Path(), "error", err)
	} else {
		s.logger.Debug(msg, "path", c.Path(), "kind", kind, "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
}
