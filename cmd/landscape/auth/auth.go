// Package authcmder provides the auth command for storing narrative provider
// API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/credentials"
)

const authLongDesc string = `Store API keys for the LLM narrative providers.

Keys are kept in credentials.toml in the .landscape/ directory and used when
narrative.provider names the provider. A provider's environment variable
(OPENAI_API_KEY, ANTHROPIC_API_KEY) takes precedence over a stored key.

Examples:
  landscape auth anthropic              Prompt for an Anthropic API key
  echo $KEY | landscape auth openai     Read the key from stdin
  landscape auth --list                 List stored credentials
  landscape auth --remove openai        Remove the stored OpenAI key`

const authShortDesc string = "Store API keys for narrative providers"

type authCommander struct {
	list   bool
	remove string
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			mgr, err := credentials.NewManager(configDir)
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			switch {
			case cmder.list:
				return cmder.runList(cmd.OutOrStdout(), mgr)
			case cmder.remove != "":
				return cmder.runRemove(cmd.OutOrStdout(), mgr)
			case len(args) == 0:
				return fmt.Errorf("provider argument required (supported: %s)",
					strings.Join(credentials.SupportedProviders(), ", "))
			default:
				return cmder.runStore(cmd, mgr, args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&cmder.list, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove stored credentials for a provider")

	return cmd
}

func (c *authCommander) runStore(cmd *cobra.Command, mgr *credentials.Manager, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !credentials.IsSupportedProvider(provider) {
		return fmt.Errorf("unsupported provider %q (supported: %s)",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	key, err := readAPIKey(cmd.InOrStdin(), cmd.ErrOrStderr(), provider)
	if err != nil {
		return err
	}
	if err := mgr.SetKey(provider, key); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Stored %s credentials %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(provider),
		cliui.DimStyle.Render("("+mgr.Path()+")"),
	)
	return nil
}

func (c *authCommander) runList(w io.Writer, mgr *credentials.Manager) error {
	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(w, "%s No stored credentials. Use 'landscape auth <provider>' to add one.\n",
			cliui.DimStyle.Render("●"))
		return nil
	}

	for _, p := range providers {
		fmt.Fprintf(w, "%s %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(p),
			cliui.DimStyle.Render("overridden by "+credentials.EnvVarForProvider(p)),
		)
	}
	return nil
}

func (c *authCommander) runRemove(w io.Writer, mgr *credentials.Manager) error {
	provider := strings.ToLower(strings.TrimSpace(c.remove))
	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Removed %s credentials\n", cliui.SuccessMark, cliui.NameStyle.Render(provider))
	return nil
}

// readAPIKey reads the first line of piped input, or prompts with hidden
// input when in is a terminal.
func readAPIKey(in io.Reader, prompt io.Writer, provider string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "Enter API key for %s (%s): ", provider, credentials.EnvVarForProvider(provider))
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(key), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
