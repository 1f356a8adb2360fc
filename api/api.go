package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/memory"
	"github.com/papercomputeco/landscape/pkg/orchestrator"
)

// Server is the API server in front of a session coordinator.
type Server struct {
	config      Config
	coordinator *orchestrator.Coordinator
	bank        *memory.Bank
	logger      *slog.Logger
	app         *fiber.App
}

// NewServer creates a new API server. The coordinator is shared with the
// caller, which stays responsible for closing it. bank may be nil, in which
// case the memory routes answer 404.
func NewServer(config Config, coordinator *orchestrator.Coordinator, bank *memory.Bank, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// Session ids taken from route params outlive the request.
		Immutable: true,
	})

	s := &Server{
		config:      config,
		coordinator: coordinator,
		bank:        bank,
		logger:      log,
		app:         app,
	}

	app.Get("/ping", s.handlePing)

	sessions := app.Group("/sessions")
	sessions.Post("/", s.handleStartSession)
	sessions.Get("/:id", s.handleGetSession)
	sessions.Delete("/:id", s.handleAbandonSession)
	sessions.Post("/:id/pause", s.handlePauseSession)
	sessions.Post("/:id/resume", s.handleResumeSession)
	sessions.Get("/:id/checkpoints", s.handleListCheckpoints)
	sessions.Get("/:id/export", s.handleExportSession)
	sessions.Post("/:id/merge", s.handleMergeSession)

	app.Get("/memory/:subject", s.handleGetMemory)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Handler exposes the API as a net/http handler, for mounting it in another
// server or serving it from httptest.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
