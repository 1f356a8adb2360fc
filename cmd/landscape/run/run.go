// Package runcmder provides the run command, which drives one session in
// the foreground without an API server.
package runcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	sessioncmder "github.com/papercomputeco/landscape/cmd/landscape/session"
	"github.com/papercomputeco/landscape/cmd/landscape/stack"
	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/session"
)

const runLongDesc string = `Run a research session in the foreground.

Subjects are given as arguments. The session runs through RESEARCH, ANALYSIS
and REPORT in this process, checkpointing every phase to durable storage, and
the report is rendered when it is done.

Press Ctrl-C to pause: research tasks in flight finish, a checkpoint is
written, and the session can be continued later with --resume.

Examples:
  landscape run acme globex --query "fintech payments" --topic pricing
  landscape run --resume 3f0c9a4e-...
  landscape run --resume 3f0c9a4e-... --checkpoint 81b2...
  landscape run acme --output report.html`

const runShortDesc string = "Run a session in the foreground"

var flagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagMaxConcurrency,
	config.FlagTaskTimeout,
	config.FlagNarrativeProvider,
	config.FlagNarrativeModel,
	config.FlagNarrativeTarget,
}

type runCommander struct {
	configDir string
	debug     bool

	query        string
	topics       []string
	resume       string
	checkpointID string
	output       string
	format       string

	storageDriver  string
	sqlitePath     string
	postgresDSN    string
	maxConcurrency uint
	taskTimeout    string
	narrative      string
	model          string
	narrativeURL   string

	viper  *viper.Viper
	logger *slog.Logger
}

func NewRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run [subject...]",
		Short: runShortDesc,
		Long:  runLongDesc,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cmder.checkpointID != "" && cmder.resume == "" {
				return fmt.Errorf("--checkpoint requires --resume")
			}
			if cmder.resume != "" && (len(args) > 0 || cmder.query != "") {
				return fmt.Errorf("--resume cannot be combined with new session inputs")
			}
			if err := sessioncmder.ValidateExport(cmder.output, cmder.format); err != nil {
				return err
			}

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

			// Foreground runs keep live state in process.
			v.Set("session.store", stack.StoreMemory)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), args)
		},
	}

	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Research question")
	cmd.Flags().StringSliceVarP(&cmder.topics, "topic", "t", nil, "Topic to focus on (repeatable)")
	cmd.Flags().StringVar(&cmder.resume, "resume", "", "Continue this session instead of starting a new one")
	cmd.Flags().StringVar(&cmder.checkpointID, "checkpoint", "", "Checkpoint to resume from (default: latest)")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write the finished report to this file")
	cmd.Flags().StringVar(&cmder.format, "format", "", "Report file format: markdown or html (default: from --output extension)")

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxConcurrency, &cmder.maxConcurrency)
	config.AddStringFlag(cmd, config.Flags, config.FlagTaskTimeout, &cmder.taskTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrativeProvider, &cmder.narrative)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrativeModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrativeTarget, &cmder.narrativeURL)

	return cmd
}

func (c *runCommander) run(ctx context.Context, subjects []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(os.Stderr),
	)

	var st *stack.Stack
	err := c.step("Opening storage", func() error {
		var err error
		st, err = stack.Build(ctx, c.viper, c.configDir, c.logger)
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("shutdown failed", "error", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var s *session.Session
	switch {
	case c.resume != "" && c.checkpointID == "":
		// Cancelling sigCtx pauses the session.
		err = c.step("Running session "+c.resume, func() error {
			var err error
			s, err = st.Coordinator.RunToCompletion(sigCtx, c.resume)
			return err
		})

	default:
		id := c.resume
		if id == "" {
			id, err = st.Coordinator.Start(ctx, session.Inputs{Query: c.query, Subjects: subjects, Topics: c.topics})
		} else {
			_, err = st.Coordinator.Resume(ctx, id, c.checkpointID)
		}
		if err != nil {
			return err
		}

		done := make(chan struct{})
		go func() {
			select {
			case <-sigCtx.Done():
				if _, err := st.Coordinator.Pause(context.WithoutCancel(ctx), id); err != nil {
					c.logger.Debug("pause on interrupt", "session_id", id, "error", err)
				}
			case <-done:
			}
		}()
		err = c.step("Running session "+id, func() error {
			var err error
			s, err = st.Coordinator.Wait(context.WithoutCancel(ctx), id)
			return err
		})
		close(done)
	}
	if err != nil {
		return err
	}

	sessioncmder.PrintSession(os.Stdout, s, c.output == "")

	if c.output != "" && s.Outputs.Report != nil {
		if err := sessioncmder.ExportReport(os.Stdout, s, c.output, c.format); err != nil {
			return err
		}
	}

	switch {
	case s.Paused:
		fmt.Printf("  %s Paused. Continue with: %s\n\n",
			cliui.WarnStyle.Render("●"),
			cliui.NameStyle.Render("landscape run --resume "+s.ID),
		)
	case s.Phase == session.PhaseFailed:
		return fmt.Errorf("session %s failed", s.ID)
	}
	return nil
}

// step shows a spinner for fn when stderr is a terminal.
func (c *runCommander) step(msg string, fn func() error) error {
	if c.debug || !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn()
	}
	return cliui.Step(os.Stderr, msg, fn)
}
