package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/config"
)

const getLongDesc string = `Print one or more configuration values from config.toml.

Keys use dotted notation matching the TOML sections. Unset keys print as
<not set>. With --raw only the values are printed, one per line, which is
convenient in scripts.

Examples:
  landscape config get narrative.provider
  landscape config get research.max_concurrency research.task_timeout
  landscape config get --raw api.listen`

const getShortDesc string = "Get configuration values"

func newGetCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get <key>...",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(cmd.OutOrStdout(), configDir, args, raw)
		},
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print bare values only")

	return cmd
}

func runGet(w io.Writer, configDir string, keys []string, raw bool) error {
	for _, key := range keys {
		if !config.IsValidConfigKey(key) {
			return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
				key, strings.Join(config.ValidConfigKeys(), ", "))
		}
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	values := make([]string, len(keys))
	for i, key := range keys {
		if values[i], err = cfger.GetConfigValue(key); err != nil {
			return err
		}
	}

	if raw {
		for _, v := range values {
			fmt.Fprintln(w, v)
		}
		return nil
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "%s %s\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
	} else {
		fmt.Fprintln(w, cliui.DimStyle.Render("No config file found. Using defaults."))
	}
	for i, key := range keys {
		value := cliui.ValueStyle.Render(values[i])
		if values[i] == "" {
			value = cliui.DimStyle.Render("<not set>")
		}
		fmt.Fprintf(w, "%s  %s\n", cliui.KeyStyle.Render(key), value)
	}
	return nil
}
