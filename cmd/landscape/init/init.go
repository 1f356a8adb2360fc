// Package initcmder provides the init command for initializing a local
// .landscape directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .landscape/ directory in the current working directory.

Creates a local .landscape/ directory that takes precedence over the default
~/.landscape/ directory for configuration, the SQLite database and the
last-session record.

A config.toml is written with defaults unless one already exists. Use
--preset to pick the report generator (markdown, openai, anthropic, ollama)
or to fetch a config.toml from an http(s) URL.

Examples:
  landscape init
  landscape init --preset anthropic
  landscape init --preset https://example.com/landscape/config.toml`

const initShortDesc string = "Initialize a local .landscape/ directory"

const fetchTimeout = 15 * time.Second

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := c.resolveConfig(ctx)
	if err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Init(cwd)
	if err != nil {
		return fmt.Errorf("creating .landscape directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	if statErr == nil && c.preset == "" {
		fmt.Printf("  %s Already initialized: %s\n", cliui.SuccessMark, dir)
		return nil
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("  %s Initialized .landscape directory: %s\n", cliui.SuccessMark, dir)
	return nil
}

// resolveConfig returns the config to write: defaults, a named preset, or a
// remote config.toml.
func (c *initCommander) resolveConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching config from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching config from %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
