package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent landscape configuration stored as
// config.toml in the .landscape/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version      int                         `toml:"version"`
	Storage      StorageConfig               `toml:"storage"`
	Session      SessionConfig               `toml:"session"`
	Research     ResearchConfig              `toml:"research"`
	Phases       PhasesConfig                `toml:"phases"`
	Compaction   CompactionConfig            `toml:"compaction"`
	Narrative    NarrativeConfig             `toml:"narrative"`
	Peer         PeerConfig                  `toml:"peer"`
	Monitor      MonitorConfig               `toml:"monitor"`
	API          APIConfig                   `toml:"api"`
	Client       ClientConfig                `toml:"client"`
	Capabilities map[string]CapabilityConfig `toml:"capabilities,omitempty"`
}

// StorageConfig selects the durable backend for checkpoints and the memory
// bank.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// SessionConfig selects where live session state is held.
type SessionConfig struct {
	Store    string `toml:"store,omitempty"`
	TTL      string `toml:"ttl,omitempty"`
	RedisURL string `toml:"redis_url,omitempty"`
	ClaimTTL string `toml:"claim_ttl,omitempty"`
}

// ResearchConfig holds research fan-out settings.
type ResearchConfig struct {
	MaxConcurrency uint     `toml:"max_concurrency,omitempty"`
	TaskTimeout    string   `toml:"task_timeout,omitempty"`
	Capabilities   []string `toml:"capabilities,omitempty"`
}

// PhasesConfig holds the ANALYSIS and REPORT phase timeouts.
type PhasesConfig struct {
	AnalysisTimeout string `toml:"analysis_timeout,omitempty"`
	ReportTimeout   string `toml:"report_timeout,omitempty"`
}

// CompactionConfig bounds the context handed to analysis.
type CompactionConfig struct {
	Budget       int `toml:"budget,omitempty"`
	HistoryLimit int `toml:"history_limit,omitempty"`
}

// NarrativeConfig selects the report generator. A provider other than
// "markdown" also enriches analysis insights with the same model.
type NarrativeConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// PeerConfig selects where session events are published.
type PeerConfig struct {
	Publisher string   `toml:"publisher,omitempty"`
	Brokers   []string `toml:"brokers,omitempty"`
	Topic     string   `toml:"topic,omitempty"`
	AgentID   string   `toml:"agent_id,omitempty"`
}

// MonitorConfig paces "landscape monitor".
type MonitorConfig struct {
	Interval   string `toml:"interval,omitempty"`
	RetryDelay string `toml:"retry_delay,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// CapabilityConfig describes one HTTP capability.
type CapabilityConfig struct {
	Endpoint string  `toml:"endpoint"`
	Weight   float64 `toml:"weight,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			*field(c) = splitList(v)
			return nil
		},
	}
}

// splitList parses a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure. Per-capability
// keys (capabilities.<name>.endpoint, capabilities.<name>.weight) are resolved
// by capabilityKey.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"session.store":     stringKey(func(c *Config) *string { return &c.Session.Store }),
	"session.ttl":       durationKey("session.ttl", func(c *Config) *string { return &c.Session.TTL }),
	"session.redis_url": stringKey(func(c *Config) *string { return &c.Session.RedisURL }),
	"session.claim_ttl": durationKey("session.claim_ttl", func(c *Config) *string { return &c.Session.ClaimTTL }),

	"research.max_concurrency": {
		get: func(c *Config) string {
			if c.Research.MaxConcurrency == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Research.MaxConcurrency), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for research.max_concurrency: %w", err)
			}
			c.Research.MaxConcurrency = uint(n)
			return nil
		},
	},
	"research.task_timeout": durationKey("research.task_timeout", func(c *Config) *string { return &c.Research.TaskTimeout }),
	"research.capabilities": listKey(func(c *Config) *[]string { return &c.Research.Capabilities }),

	"phases.analysis_timeout": durationKey("phases.analysis_timeout", func(c *Config) *string { return &c.Phases.AnalysisTimeout }),
	"phases.report_timeout":   durationKey("phases.report_timeout", func(c *Config) *string { return &c.Phases.ReportTimeout }),

	"compaction.budget":        intKey("compaction.budget", func(c *Config) *int { return &c.Compaction.Budget }),
	"compaction.history_limit": intKey("compaction.history_limit", func(c *Config) *int { return &c.Compaction.HistoryLimit }),

	"narrative.provider": stringKey(func(c *Config) *string { return &c.Narrative.Provider }),
	"narrative.model":    stringKey(func(c *Config) *string { return &c.Narrative.Model }),
	"narrative.target":   stringKey(func(c *Config) *string { return &c.Narrative.Target }),

	"peer.publisher": stringKey(func(c *Config) *string { return &c.Peer.Publisher }),
	"peer.brokers":   listKey(func(c *Config) *[]string { return &c.Peer.Brokers }),
	"peer.topic":     stringKey(func(c *Config) *string { return &c.Peer.Topic }),
	"peer.agent_id":  stringKey(func(c *Config) *string { return &c.Peer.AgentID }),

	"monitor.interval":    durationKey("monitor.interval", func(c *Config) *string { return &c.Monitor.Interval }),
	"monitor.retry_delay": durationKey("monitor.retry_delay", func(c *Config) *string { return &c.Monitor.RetryDelay }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}

// capabilityKey resolves capabilities.<name>.endpoint and
// capabilities.<name>.weight.
func capabilityKey(key string) (configKeyInfo, bool) {
	rest, ok := strings.CutPrefix(key, "capabilities.")
	if !ok {
		return configKeyInfo{}, false
	}
	name, field, ok := strings.Cut(rest, ".")
	if !ok || name == "" {
		return configKeyInfo{}, false
	}

	update := func(c *Config, fn func(*CapabilityConfig)) {
		if c.Capabilities == nil {
			c.Capabilities = map[string]CapabilityConfig{}
		}
		cc := c.Capabilities[name]
		fn(&cc)
		c.Capabilities[name] = cc
	}

	switch field {
	case "endpoint":
		return configKeyInfo{
			get: func(c *Config) string { return c.Capabilities[name].Endpoint },
			set: func(c *Config, v string) error {
				update(c, func(cc *CapabilityConfig) { cc.Endpoint = v })
				return nil
			},
		}, true
	case "weight":
		return configKeyInfo{
			get: func(c *Config) string {
				w := c.Capabilities[name].Weight
				if w == 0 {
					return ""
				}
				return strconv.FormatFloat(w, 'f', -1, 64)
			},
			set: func(c *Config, v string) error {
				w, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("invalid value for %s: %w", key, err)
				}
				if w < 0 {
					return fmt.Errorf("invalid value for %s: must not be negative", key)
				}
				update(c, func(cc *CapabilityConfig) { cc.Weight = w })
				return nil
			},
		}, true
	default:
		return configKeyInfo{}, false
	}
}

func lookupKey(key string) (configKeyInfo, bool) {
	if info, ok := configKeys[key]; ok {
		return info, true
	}
	return capabilityKey(key)
}

// Duration parses a configured duration, falling back to def when the value
// is empty.
func Duration(v string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", v, err)
	}
	return d, nil
}
