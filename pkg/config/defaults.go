package config

const (
	defaultStorageDriver = "sqlite"
	defaultSessionStore  = "memory"
	defaultSessionTTL    = "24h"
	defaultClaimTTL      = "10m"

	defaultMaxConcurrency  = 4
	defaultTaskTimeout     = "60s"
	defaultAnalysisTimeout = "2m"
	defaultReportTimeout   = "2m"

	defaultCompactionBudget = 4000
	defaultHistoryLimit     = 5

	defaultNarrativeProvider = "markdown"
	defaultPeerPublisher     = "nop"
	defaultPeerTopic         = "landscape.sessions"

	defaultMonitorInterval   = "24h"
	defaultMonitorRetryDelay = "5m"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Session: SessionConfig{
			Store:    defaultSessionStore,
			TTL:      defaultSessionTTL,
			ClaimTTL: defaultClaimTTL,
		},
		Research: ResearchConfig{
			MaxConcurrency: defaultMaxConcurrency,
			TaskTimeout:    defaultTaskTimeout,
		},
		Phases: PhasesConfig{
			AnalysisTimeout: defaultAnalysisTimeout,
			ReportTimeout:   defaultReportTimeout,
		},
		Compaction: CompactionConfig{
			Budget:       defaultCompactionBudget,
			HistoryLimit: defaultHistoryLimit,
		},
		Narrative: NarrativeConfig{
			Provider: defaultNarrativeProvider,
		},
		Peer: PeerConfig{
			Publisher: defaultPeerPublisher,
			Topic:     defaultPeerTopic,
		},
		Monitor: MonitorConfig{
			Interval:   defaultMonitorInterval,
			RetryDelay: defaultMonitorRetryDelay,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
