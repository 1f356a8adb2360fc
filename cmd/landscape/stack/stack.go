// Package stack assembles a session coordinator and its backends from
// layered configuration. It is shared by the commands that run sessions in
// process ("landscape serve" and "landscape run").
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/landscape/pkg/analysis"
	"github.com/papercomputeco/landscape/pkg/capability"
	"github.com/papercomputeco/landscape/pkg/checkpoint"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/credentials"
	"github.com/papercomputeco/landscape/pkg/dotdir"
	"github.com/papercomputeco/landscape/pkg/eventstream"
	"github.com/papercomputeco/landscape/pkg/eventstream/kafka"
	"github.com/papercomputeco/landscape/pkg/eventstream/nop"
	"github.com/papercomputeco/landscape/pkg/llmcall"
	"github.com/papercomputeco/landscape/pkg/memory"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/orchestrator"
	"github.com/papercomputeco/landscape/pkg/session"
	"github.com/papercomputeco/landscape/pkg/session/cache"
	"github.com/papercomputeco/landscape/pkg/session/redis"
	"github.com/papercomputeco/landscape/pkg/storage"
	"github.com/papercomputeco/landscape/pkg/storage/inmemory"
	"github.com/papercomputeco/landscape/pkg/storage/postgres"
	"github.com/papercomputeco/landscape/pkg/storage/sqlite"
)

// Session store names accepted in the session.store config key.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Publisher names accepted in the peer.publisher config key.
const (
	PublisherNop   = "nop"
	PublisherKafka = "kafka"
)

// Stack is a coordinator together with everything it owns.
type Stack struct {
	Coordinator *orchestrator.Coordinator
	Bank        *memory.Bank

	storage   storage.Driver
	store     session.Store
	publisher eventstream.Publisher
}

// Build creates every backend named by v and a coordinator over them.
// configDir locates the default SQLite database.
func Build(ctx context.Context, v *viper.Viper, configDir string, log *slog.Logger) (*Stack, error) {
	s := &Stack{}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	var err error
	s.storage, err = newStorageDriver(ctx, v, configDir, log)
	if err != nil {
		return nil, err
	}

	s.store, err = newSessionStore(ctx, v, log)
	if err != nil {
		return nil, err
	}

	s.publisher, err = newPublisher(v, log)
	if err != nil {
		return nil, err
	}

	s.Bank, err = memory.NewBank(memory.BankConfig{Driver: s.storage, Logger: log})
	if err != nil {
		return nil, err
	}

	registry, weights, err := newRegistry(v)
	if err != nil {
		return nil, err
	}

	capabilities := v.GetStringSlice("research.capabilities")
	if len(capabilities) == 0 {
		capabilities = registry.Names()
	}
	for _, name := range capabilities {
		if !registry.Has(name) {
			return nil, fmt.Errorf("capability %q has no [capabilities.%s] endpoint configured", name, name)
		}
	}

	taskTimeout, err := config.Duration(v.GetString("research.task_timeout"), 0)
	if err != nil {
		return nil, fmt.Errorf("research.task_timeout: %w", err)
	}
	analysisTimeout, err := config.Duration(v.GetString("phases.analysis_timeout"), 0)
	if err != nil {
		return nil, fmt.Errorf("phases.analysis_timeout: %w", err)
	}
	reportTimeout, err := config.Duration(v.GetString("phases.report_timeout"), 0)
	if err != nil {
		return nil, fmt.Errorf("phases.report_timeout: %w", err)
	}

	analyzer, generator, err := newWriters(v, configDir, log)
	if err != nil {
		return nil, err
	}

	s.Coordinator, err = orchestrator.New(orchestrator.Config{
		Store:             s.store,
		Checkpoints:       checkpoint.NewManager(s.storage, checkpoint.WithLogger(log)),
		Memory:            s.Bank,
		Invoker:           registry,
		Capabilities:      capabilities,
		CapabilityWeights: weights,
		MaxConcurrency:    v.GetUint("research.max_concurrency"),
		TaskTimeout:       taskTimeout,
		Analyzer:          analyzer,
		Generator:         generator,
		AnalysisTimeout:   analysisTimeout,
		ReportTimeout:     reportTimeout,
		CompactionBudget:  v.GetInt("compaction.budget"),
		HistoryLimit:      v.GetInt("compaction.history_limit"),
		Publisher:         s.publisher,
		AgentID:           v.GetString("peer.agent_id"),
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	log.Info("coordinator ready",
		"agent_id", s.Coordinator.AgentID(),
		"capabilities", capabilities,
		"max_concurrency", v.GetUint("research.max_concurrency"),
	)

	ok = true
	return s, nil
}

// Close pauses running sessions and releases every backend.
func (s *Stack) Close() error {
	var errs []error
	if s.Coordinator != nil {
		errs = append(errs, s.Coordinator.Close())
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.storage != nil {
		errs = append(errs, s.storage.Close())
	}
	return errors.Join(errs...)
}

func newStorageDriver(ctx context.Context, v *viper.Viper, configDir string, log *slog.Logger) (storage.Driver, error) {
	switch backend := v.GetString("storage.driver"); backend {
	case storage.BackendSQLite, "":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			var err error
			path, err = dotdir.NewManager().DatabasePath(configDir)
			if err != nil {
				return nil, err
			}
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		log.Info("using SQLite storage", "path", path)
		return driver, nil

	case storage.BackendPostgres:
		dsn := v.GetString("storage.postgres_dsn")
		if dsn == "" {
			return nil, errors.New("storage.postgres_dsn is required for postgres storage")
		}
		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storage: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case storage.BackendMemory:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", backend)
	}
}

func newSessionStore(ctx context.Context, v *viper.Viper, log *slog.Logger) (session.Store, error) {
	ttl, err := config.Duration(v.GetString("session.ttl"), 0)
	if err != nil {
		return nil, fmt.Errorf("session.ttl: %w", err)
	}

	claimTTL, err := config.Duration(v.GetString("session.claim_ttl"), 0)
	if err != nil {
		return nil, fmt.Errorf("session.claim_ttl: %w", err)
	}

	switch store := v.GetString("session.store"); store {
	case StoreMemory, "":
		log.Debug("using in-process session store", "ttl", ttl)
		return cache.NewStore(ttl), nil

	case StoreRedis:
		url := v.GetString("session.redis_url")
		if url == "" {
			return nil, errors.New("session.redis_url is required for the redis session store")
		}
		s, err := redis.NewStore(ctx, redis.Config{URL: url, TTL: ttl, ClaimTTL: claimTTL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		log.Info("using redis session store", "ttl", ttl, "claim_ttl", s.LeaseTTL())
		return s, nil

	default:
		return nil, fmt.Errorf("unknown session store %q", store)
	}
}

func newPublisher(v *viper.Viper, log *slog.Logger) (eventstream.Publisher, error) {
	switch name := v.GetString("peer.publisher"); name {
	case PublisherNop, "":
		return nop.NewPublisher(), nil

	case PublisherKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: v.GetStringSlice("peer.brokers"),
			Topic:   v.GetString("peer.topic"),
		})
		if err != nil {
			return nil, err
		}
		log.Info("publishing session events to kafka", "topic", v.GetString("peer.topic"))
		return p, nil

	default:
		return nil, fmt.Errorf("unknown publisher %q", name)
	}
}

// newRegistry registers an HTTP capability for every configured endpoint.
func newRegistry(v *viper.Viper) (*capability.Registry, map[string]float64, error) {
	caps, err := config.Capabilities(v)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := capability.NewRegistry()
	weights := map[string]float64{}
	for _, name := range names {
		c := caps[name]
		if c.Endpoint == "" {
			continue
		}
		fn, err := capability.NewHTTP(capability.HTTPConfig{Endpoint: c.Endpoint})
		if err != nil {
			return nil, nil, fmt.Errorf("capability %s: %w", name, err)
		}
		registry.Register(name, fn)
		if c.Weight > 0 {
			weights[name] = c.Weight
		}
	}
	return registry, weights, nil
}

// newWriters picks the analyzer and report generator. The markdown provider
// keeps both offline; any LLM provider enriches analysis and writes the
// report.
func newWriters(v *viper.Viper, configDir string, log *slog.Logger) (analysis.Analyzer, narrative.Generator, error) {
	provider := v.GetString("narrative.provider")
	if provider == "" || provider == narrative.MarkdownName {
		return analysis.NewStructural(), narrative.NewMarkdown(), nil
	}

	// The provider env var wins over a key stored with "landscape auth".
	var apiKey string
	if credentials.IsSupportedProvider(provider) {
		creds, err := credentials.NewManager(configDir)
		if err != nil {
			return nil, nil, fmt.Errorf("loading credentials: %w", err)
		}
		if apiKey, err = creds.Lookup(provider); err != nil {
			return nil, nil, fmt.Errorf("loading credentials: %w", err)
		}
	}

	call, err := llmcall.New(llmcall.Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    v.GetString("narrative.model"),
		BaseURL:  v.GetString("narrative.target"),
		Timeout:  90 * time.Second,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s client: %w", provider, err)
	}

	return analysis.NewLLM(analysis.NewStructural(), call, log), narrative.NewLLM(call), nil
}
