package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/api"
	"github.com/papercomputeco/landscape/pkg/cliui"
)

const startLongDesc string = `Start a research session on a running landscape server.

Subjects are given as arguments. The session runs in the background on the
server; its id is printed and remembered, so later status, pause, resume and
abandon commands can omit it.

Examples:
  landscape start acme globex --query "fintech payments" --topic pricing
  landscape start --query "vector databases"`

const startShortDesc string = "Start a session on the server"

type startCommander struct {
	apiCommander
	query  string
	topics []string
}

func NewStartCmd() *cobra.Command {
	cmder := &startCommander{}

	cmd := &cobra.Command{
		Use:   "start [subject...]",
		Short: startShortDesc,
		Long:  startLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmder.client.Start(cmd.Context(), api.StartRequest{
				Query:    cmder.query,
				Subjects: args,
				Topics:   cmder.topics,
			})
			if err != nil {
				return err
			}
			if err := cmder.remember(id); err != nil {
				return err
			}

			fmt.Printf("  %s Started session %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
			return nil
		},
	}

	cmder.register(cmd)
	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Research question")
	cmd.Flags().StringSliceVarP(&cmder.topics, "topic", "t", nil, "Topic to focus on (repeatable)")

	return cmd
}
