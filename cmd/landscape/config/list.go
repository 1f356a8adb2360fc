package configcmder

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every fixed configuration key and its current value from the
config.toml file stored in the .landscape/ directory, followed by the
configured capabilities.

Examples:
  landscape config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(configDir)
		},
	}

	return cmd
}

func runList(configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if target != "" {
		fmt.Printf("Using config file: %s\n\n", target)
	} else {
		fmt.Print("No config file found. Using default config.\n\n")
	}

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		if value == "" {
			fmt.Printf("%-*s = <not set>\n", maxLen, key)
		} else {
			fmt.Printf("%-*s = %q\n", maxLen, key, value)
		}
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Capabilities) == 0 {
		fmt.Printf("\n%s\n", cliui.DimStyle.Render("No capabilities configured."))
		return nil
	}

	fmt.Println()
	for _, name := range sortedNames(cfg.Capabilities) {
		c := cfg.Capabilities[name]
		cliui.KeyValue(os.Stdout, "capabilities."+name, fmt.Sprintf("%s (weight %g)", c.Endpoint, c.Weight))
	}
	return nil
}

func sortedNames(caps map[string]config.CapabilityConfig) []string {
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
