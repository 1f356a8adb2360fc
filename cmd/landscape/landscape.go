// Package landscapecmder is the root of the landscape command tree.
package landscapecmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/landscape/cmd/landscape/auth"
	configcmder "github.com/papercomputeco/landscape/cmd/landscape/config"
	historycmder "github.com/papercomputeco/landscape/cmd/landscape/history"
	initcmder "github.com/papercomputeco/landscape/cmd/landscape/init"
	monitorcmder "github.com/papercomputeco/landscape/cmd/landscape/monitor"
	runcmder "github.com/papercomputeco/landscape/cmd/landscape/run"
	servecmder "github.com/papercomputeco/landscape/cmd/landscape/serve"
	sessioncmder "github.com/papercomputeco/landscape/cmd/landscape/session"
	versioncmder "github.com/papercomputeco/landscape/cmd/version"
)

const landscapeLongDesc string = `Landscape runs resumable research sessions over a set of subjects.

Each session gathers findings per subject from the configured capabilities,
analyzes them, writes a report and grades itself. Every phase is
checkpointed, so sessions can be paused, resumed and inspected, and what a
finished session learned is remembered for the next one.

Run a session in the foreground:
  landscape run acme globex --query "fintech payments"

Or run the server and drive sessions through it:
  landscape serve
  landscape start acme globex --query "fintech payments"
  landscape status`

const landscapeShortDesc string = "Landscape - resumable research sessions"

func NewLandscapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "landscape",
		Short:        landscapeShortDesc,
		Long:         landscapeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .landscape/ directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(runcmder.NewRunCmd())
	cmd.AddCommand(monitorcmder.NewMonitorCmd())
	cmd.AddCommand(sessioncmder.NewStartCmd())
	cmd.AddCommand(sessioncmder.NewStatusCmd())
	cmd.AddCommand(sessioncmder.NewPauseCmd())
	cmd.AddCommand(sessioncmder.NewResumeCmd())
	cmd.AddCommand(sessioncmder.NewAbandonCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
