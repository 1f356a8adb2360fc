package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/landscape/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the LANDSCAPE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (LANDSCAPE_API_LISTEN, LANDSCAPE_STORAGE_DRIVER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: LANDSCAPE_API_LISTEN, LANDSCAPE_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("LANDSCAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Session
	v.SetDefault("session.store", d.Session.Store)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.redis_url", d.Session.RedisURL)
	v.SetDefault("session.claim_ttl", d.Session.ClaimTTL)

	// Research
	v.SetDefault("research.max_concurrency", d.Research.MaxConcurrency)
	v.SetDefault("research.task_timeout", d.Research.TaskTimeout)
	v.SetDefault("research.capabilities", d.Research.Capabilities)

	// Phases
	v.SetDefault("phases.analysis_timeout", d.Phases.AnalysisTimeout)
	v.SetDefault("phases.report_timeout", d.Phases.ReportTimeout)

	// Compaction
	v.SetDefault("compaction.budget", d.Compaction.Budget)
	v.SetDefault("compaction.history_limit", d.Compaction.HistoryLimit)

	// Narrative
	v.SetDefault("narrative.provider", d.Narrative.Provider)
	v.SetDefault("narrative.model", d.Narrative.Model)
	v.SetDefault("narrative.target", d.Narrative.Target)

	// Peer
	v.SetDefault("peer.publisher", d.Peer.Publisher)
	v.SetDefault("peer.brokers", d.Peer.Brokers)
	v.SetDefault("peer.topic", d.Peer.Topic)
	v.SetDefault("peer.agent_id", d.Peer.AgentID)

	// Monitor
	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.retry_delay", d.Monitor.RetryDelay)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)
}

// Capabilities decodes the [capabilities.<name>] tables from v.
func Capabilities(v *viper.Viper) (map[string]CapabilityConfig, error) {
	out := map[string]CapabilityConfig{}
	if err := v.UnmarshalKey("capabilities", &out); err != nil {
		return nil, fmt.Errorf("decoding capabilities: %w", err)
	}
	return out, nil
}
