package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
)

const abandonLongDesc string = `Abandon a session.

Stops the session if it is running and marks it FAILED. Abandoned sessions
cannot be resumed and write nothing to the memory bank.

Examples:
  landscape abandon 3f0c9a4e-...`

func NewAbandonCmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "abandon [session-id]",
		Short: "Abandon a session",
		Long:  abandonLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmder.sessionID(args)
			if err != nil {
				return err
			}

			s, err := cmder.client.Abandon(cmd.Context(), id)
			if err != nil {
				return err
			}
			phase := s.Phase
			if s.Error != nil {
				phase = s.Error.Phase
			}
			fmt.Printf("  %s Abandoned %s in %s\n", cliui.SuccessMark, cliui.NameStyle.Render(s.ID), cliui.Phase(string(phase)))
			return nil
		},
	}

	cmder.register(cmd)
	return cmd
}
