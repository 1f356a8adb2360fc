package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/landscape/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .landscape/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the list of all fixed configuration key names in
// TOML section order. Per-capability keys are not listed.
func ValidConfigKeys() []string {
	ordered := []string{
		"storage.driver",
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"session.store",
		"session.ttl",
		"session.redis_url",
		"session.claim_ttl",
		"research.max_concurrency",
		"research.task_timeout",
		"research.capabilities",
		"phases.analysis_timeout",
		"phases.report_timeout",
		"compaction.budget",
		"compaction.history_limit",
		"narrative.provider",
		"narrative.model",
		"narrative.target",
		"peer.publisher",
		"peer.brokers",
		"peer.topic",
		"peer.agent_id",
		"monitor.interval",
		"monitor.retry_delay",
		"api.listen",
		"client.api_target",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	var missed []string
	for k := range configKeys {
		if !seen[k] {
			missed = append(missed, k)
		}
	}
	sort.Strings(missed)
	return append(result, missed...)
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .landscape/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
// If overrideDir is non-empty, it is used instead of the default .landscape/ location.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from DefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = defaults.Session.Store
	}
	if cfg.Session.TTL == "" {
		cfg.Session.TTL = defaults.Session.TTL
	}
	if cfg.Session.ClaimTTL == "" {
		cfg.Session.ClaimTTL = defaults.Session.ClaimTTL
	}

	if cfg.Research.MaxConcurrency == 0 {
		cfg.Research.MaxConcurrency = defaults.Research.MaxConcurrency
	}
	if cfg.Research.TaskTimeout == "" {
		cfg.Research.TaskTimeout = defaults.Research.TaskTimeout
	}

	if cfg.Phases.AnalysisTimeout == "" {
		cfg.Phases.AnalysisTimeout = defaults.Phases.AnalysisTimeout
	}
	if cfg.Phases.ReportTimeout == "" {
		cfg.Phases.ReportTimeout = defaults.Phases.ReportTimeout
	}

	if cfg.Compaction.Budget == 0 {
		cfg.Compaction.Budget = defaults.Compaction.Budget
	}
	if cfg.Compaction.HistoryLimit == 0 {
		cfg.Compaction.HistoryLimit = defaults.Compaction.HistoryLimit
	}

	if cfg.Narrative.Provider == "" {
		cfg.Narrative.Provider = defaults.Narrative.Provider
	}

	if cfg.Peer.Publisher == "" {
		cfg.Peer.Publisher = defaults.Peer.Publisher
	}
	if cfg.Peer.Topic == "" {
		cfg.Peer.Topic = defaults.Peer.Topic
	}

	if cfg.Monitor.Interval == "" {
		cfg.Monitor.Interval = defaults.Monitor.Interval
	}
	if cfg.Monitor.RetryDelay == "" {
		cfg.Monitor.RetryDelay = defaults.Monitor.RetryDelay
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.Client.APITarget == "" {
		cfg.Client.APITarget = defaults.Client.APITarget
	}
}

// SaveConfig persists the configuration to config.toml in the target .landscape/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named narrative
// preset. Supported presets: "markdown", "openai", "anthropic", "ollama".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "markdown":
		return cfg, nil

	case "openai":
		cfg.Narrative = NarrativeConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Target:   "https://api.openai.com",
		}
		return cfg, nil

	case "anthropic":
		cfg.Narrative = NarrativeConfig{
			Provider: "anthropic",
			Model:    "claude-haiku-4-5-20251001",
			Target:   "https://api.anthropic.com",
		}
		return cfg, nil

	case "ollama":
		cfg.Narrative = NarrativeConfig{
			Provider: "ollama",
			Model:    "llama3.2",
			Target:   "http://localhost:11434",
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: markdown, openai, anthropic, ollama)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"markdown", "openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
