// Package historycmder provides the history command, which shows what the
// memory bank remembers about a subject.
package historycmder

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/cmd/landscape/client"
	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/utils"
)

const historyLongDesc string = `Show the stored profile and past sessions of a subject.

Subjects are matched case-insensitively with whitespace collapsed, the same
way sessions record them.

Examples:
  landscape history acme
  landscape history "Globex Corp" --limit 20`

const historyShortDesc string = "Show what is remembered about a subject"

type historyCommander struct {
	apiTarget string
	limit     int
	client    *client.Client
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history <subject>",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

			cmder.client, err = client.New(v.GetString("client.api_target"))
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := cmder.client.Memory(cmd.Context(), args[0], cmder.limit)
			if err != nil {
				return err
			}

			fmt.Printf("\n  %s %s\n\n", cliui.KeyStyle.Render("Subject:"), cliui.NameStyle.Render(m.Subject))

			if m.Profile == nil {
				fmt.Printf("  %s\n", cliui.DimStyle.Render("No profile stored."))
			} else {
				keys := make([]string, 0, len(m.Profile.Fields))
				for k := range m.Profile.Fields {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					cliui.KeyValue(os.Stdout, k, utils.Truncate(fmt.Sprint(m.Profile.Fields[k]), 72))
				}
			}

			fmt.Println()
			if len(m.History) == 0 {
				fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No past sessions."))
				return nil
			}
			for _, h := range m.History {
				fmt.Printf("  %s %s %s\n",
					cliui.DimStyle.Render(h.RecordedAt.Format("2006-01-02 15:04")),
					cliui.ValueStyle.Render(utils.Truncate(h.Summary, 72)),
					cliui.DimStyle.Render(h.SessionID),
				)
			}
			fmt.Println()
			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 10, "Maximum number of past sessions to show")

	return cmd
}
