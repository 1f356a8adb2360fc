package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
)

const pauseLongDesc string = `Pause a running session.

The session stops at its next safe boundary: research tasks already in
flight finish, nothing new is dispatched, and a checkpoint is written.

Examples:
  landscape pause
  landscape pause 3f0c9a4e-...`

func NewPauseCmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "pause [session-id]",
		Short: "Pause a running session",
		Long:  pauseLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmder.sessionID(args)
			if err != nil {
				return err
			}

			checkpointID, err := cmder.client.Pause(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("  %s Paused %s at checkpoint %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(id),
				cliui.ValueStyle.Render(checkpointID),
			)
			return nil
		},
	}

	cmder.register(cmd)
	return cmd
}
