package sessioncmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/pkg/cliui"
)

const statusLongDesc string = `Show a session's state.

Prints the phase, research progress, any failure and, once the session is
DONE, its evaluation. Use --report to render the report, --output to write
it to a file and --checkpoints to list the session's checkpoints.

Examples:
  landscape status
  landscape status 3f0c9a4e-... --report
  landscape status 3f0c9a4e-... --output report.html`

const statusShortDesc string = "Show a session's state"

type statusCommander struct {
	apiCommander
	report      bool
	checkpoints bool
	output      string
	format      string
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status [session-id]",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return ValidateExport(cmder.output, cmder.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmder.sessionID(args)
			if err != nil {
				return err
			}

			s, err := cmder.client.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			PrintSession(os.Stdout, s, cmder.report)

			if cmder.output != "" {
				if err := ExportReport(os.Stdout, s, cmder.output, cmder.format); err != nil {
					return err
				}
			}

			if !cmder.checkpoints {
				return nil
			}
			cps, err := cmder.client.Checkpoints(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, cp := range cps {
				fmt.Printf("  %s %s %s %s\n",
					cliui.DimStyle.Render(fmt.Sprintf("%3d.", cp.Seq)),
					cliui.NameStyle.Render(cp.CheckpointID),
					cliui.Phase(string(cp.Phase)),
					cliui.DimStyle.Render(cp.Reason+" "+cp.CreatedAt),
				)
			}
			fmt.Println()
			return nil
		},
	}

	cmder.register(cmd)
	cmd.Flags().BoolVarP(&cmder.report, "report", "r", false, "Render the report of a finished session")
	cmd.Flags().BoolVar(&cmder.checkpoints, "checkpoints", false, "List the session's checkpoints")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write the session's report to this file")
	cmd.Flags().StringVar(&cmder.format, "format", "", "Report file format: markdown or html (default: from --output extension)")

	return cmd
}
