package orchestrator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/papercomputeco/landscape/pkg/analysis"
	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/compaction"
	"github.com/papercomputeco/landscape/pkg/eventstream"
	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/memory"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/research"
	"github.com/papercomputeco/landscape/pkg/session"
)

const (
	defaultAnalysisTimeout  = 2 * time.Minute
	defaultReportTimeout    = 2 * time.Minute
	defaultCompactionBudget = 4000
	defaultHistoryLimit     = 5
)

// Config wires a Coordinator to its collaborators.
type Config struct {
	// Store holds live session state. Required.
	Store session.Store

	// Checkpoints persists snapshots. Required.
	Checkpoints *checkpoint.Manager

	// Memory is read at start and written on DONE. Optional.
	Memory *memory.Bank

	// Invoker serves capability calls. Required.
	Invoker research.Invoker

	// Capabilities are requested for every subject. Required.
	Capabilities []string

	// CapabilityWeights are the compaction weights of each capability's
	// findings.
	CapabilityWeights map[string]float64

	// Params and CapabilityParams are passed to capability calls.
	Params           map[string]any
	CapabilityParams map[string]map[string]any

	// MaxConcurrency bounds parallel research tasks. 1 runs them in order.
	MaxConcurrency uint

	// TaskTimeout bounds one research task.
	TaskTimeout time.Duration

	Analyzer  analysis.Analyzer
	Generator narrative.Generator

	AnalysisTimeout time.Duration
	ReportTimeout   time.Duration

	// CompactionBudget bounds the research context handed to ANALYSIS and
	// the prior context recalled from memory.
	CompactionBudget int
	Sizer            compaction.Sizer

	// HistoryLimit is how many past runs per subject are recalled.
	HistoryLimit int

	// Publisher receives session milestones. Optional.
	Publisher eventstream.Publisher

	// ClaimRenewal is how often a run refreshes its claim. Defaults to a
	// third of the lease of stores that implement session.Leaser; other
	// stores are not renewed.
	ClaimRenewal time.Duration

	// AgentID identifies this coordinator to peers. Defaults to a random id.
	AgentID string

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *Config) validate() error {
	switch {
	case c.Store == nil:
		return errors.New("orchestrator requires a session store")
	case c.Checkpoints == nil:
		return errors.New("orchestrator requires a checkpoint manager")
	case c.Invoker == nil:
		return errors.New("orchestrator requires a capability invoker")
	case len(c.Capabilities) == 0:
		return errors.New("orchestrator requires at least one capability")
	}

	if c.Analyzer == nil {
		c.Analyzer = analysis.NewStructural()
	}
	if c.Generator == nil {
		c.Generator = narrative.NewMarkdown()
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = defaultAnalysisTimeout
	}
	if c.ReportTimeout <= 0 {
		c.ReportTimeout = defaultReportTimeout
	}
	if c.CompactionBudget <= 0 {
		c.CompactionBudget = defaultCompactionBudget
	}
	if c.Sizer == nil {
		c.Sizer = compaction.TokenSizer
	}
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	} else if c.HistoryLimit == 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.ClaimRenewal <= 0 {
		if l, ok := c.Store.(session.Leaser); ok && l.LeaseTTL() > 0 {
			c.ClaimRenewal = l.LeaseTTL() / 3
		}
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

func (c *Config) researchConfig() research.Config {
	return research.Config{
		Invoker:          c.Invoker,
		NumWorkers:       c.MaxConcurrency,
		TaskTimeout:      c.TaskTimeout,
		Params:           c.Params,
		CapabilityParams: c.CapabilityParams,
		Logger:           c.Logger,
	}
}
