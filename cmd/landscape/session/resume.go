package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
)

const resumeLongDesc string = `Resume a paused or interrupted session.

Resumes from the latest checkpoint, or from --checkpoint. Research tasks
that already finished are not repeated.

Examples:
  landscape resume
  landscape resume 3f0c9a4e-... --checkpoint 81b2...`

type resumeCommander struct {
	apiCommander
	checkpointID string
}

func NewResumeCmd() *cobra.Command {
	cmder := &resumeCommander{}

	cmd := &cobra.Command{
		Use:   "resume [session-id]",
		Short: "Resume a session from a checkpoint",
		Long:  resumeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmder.sessionID(args)
			if err != nil {
				return err
			}

			s, err := cmder.client.Resume(cmd.Context(), id, cmder.checkpointID)
			if err != nil {
				return err
			}
			fmt.Printf("  %s Resumed %s in %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(s.ID),
				cliui.Phase(string(s.Phase)),
			)
			return nil
		},
	}

	cmder.register(cmd)
	cmd.Flags().StringVar(&cmder.checkpointID, "checkpoint", "", "Checkpoint to resume from (default: latest)")

	return cmd
}
