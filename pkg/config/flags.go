package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite on
// both "landscape serve" and "landscape run").
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen         = "api-listen"
	FlagAPITarget         = "api-target"
	FlagStorageDriver     = "storage-driver"
	FlagSQLite            = "sqlite"
	FlagPostgresDSN       = "postgres-dsn"
	FlagSessionStore      = "session-store"
	FlagRedisURL          = "redis-url"
	FlagMaxConcurrency    = "max-concurrency"
	FlagTaskTimeout       = "task-timeout"
	FlagNarrativeProvider = "narrative-provider"
	FlagNarrativeModel    = "narrative-model"
	FlagNarrativeTarget   = "narrative-target"
	FlagPublisher         = "publisher"
	FlagAgentID           = "agent-id"
	FlagMonitorInterval   = "monitor-interval"
)

// Flags is the registry of every flag a landscape command can carry.
var Flags = FlagSet{
	FlagAPIListen:         {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:         {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "URL of the landscape API server"},
	FlagStorageDriver:     {Name: "storage", ViperKey: "storage.driver", Description: "Storage driver for checkpoints and memory (sqlite, postgres, memory)"},
	FlagSQLite:            {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgresDSN:       {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagSessionStore:      {Name: "session-store", ViperKey: "session.store", Description: "Live session store (memory, redis)"},
	FlagRedisURL:          {Name: "redis", ViperKey: "session.redis_url", Description: "Redis URL for the redis session store"},
	FlagMaxConcurrency:    {Name: "max-concurrency", Shorthand: "c", ViperKey: "research.max_concurrency", Description: "Maximum concurrent research tasks"},
	FlagTaskTimeout:       {Name: "task-timeout", ViperKey: "research.task_timeout", Description: "Timeout for a single research task"},
	FlagNarrativeProvider: {Name: "narrative", ViperKey: "narrative.provider", Description: "Report generator (markdown, openai, anthropic, ollama)"},
	FlagNarrativeModel:    {Name: "model", ViperKey: "narrative.model", Description: "Model used by LLM report generation"},
	FlagNarrativeTarget:   {Name: "narrative-target", ViperKey: "narrative.target", Description: "Base URL of the LLM provider"},
	FlagPublisher:         {Name: "publisher", ViperKey: "peer.publisher", Description: "Session event publisher (nop, kafka)"},
	FlagAgentID:           {Name: "agent-id", ViperKey: "peer.agent_id", Description: "Identity of this orchestrator towards peers"},
	FlagMonitorInterval:   {Name: "interval", Shorthand: "i", ViperKey: "monitor.interval", Description: "Time between monitoring sessions"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
