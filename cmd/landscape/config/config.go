// Package configcmder provides the config command for managing persistent
// landscape configuration stored in the .landscape/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent landscape configuration.

Configuration is stored as config.toml in the .landscape/ directory and
provides default values for command flags. CLI flags and LANDSCAPE_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  session.store, session.ttl, session.redis_url, session.claim_ttl,
  research.max_concurrency, research.task_timeout, research.capabilities,
  phases.analysis_timeout, phases.report_timeout,
  compaction.budget, compaction.history_limit,
  narrative.provider, narrative.model, narrative.target,
  peer.publisher, peer.brokers, peer.topic, peer.agent_id,
  monitor.interval, monitor.retry_delay,
  api.listen, client.api_target,
  capabilities.<name>.endpoint, capabilities.<name>.weight

Use subcommands to get, set, or list configuration values:
  landscape config set <key> <value>    Set a configuration value
  landscape config get <key>            Get a configuration value
  landscape config list                 List all configuration values

Examples:
  landscape config set capabilities.search.endpoint http://localhost:9000/search
  landscape config set research.max_concurrency 8
  landscape config get narrative.provider
  landscape config list`

const configShortDesc string = "Manage persistent landscape configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
