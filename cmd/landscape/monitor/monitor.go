// Package monitorcmder provides the monitor command, which researches the
// same subjects again on a fixed interval.
package monitorcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sessioncmder "github.com/papercomputeco/landscape/cmd/landscape/session"
	"github.com/papercomputeco/landscape/cmd/landscape/stack"
	"github.com/papercomputeco/landscape/pkg/cliui"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/evaluation"
	"github.com/papercomputeco/landscape/pkg/logger"
	"github.com/papercomputeco/landscape/pkg/narrative"
	"github.com/papercomputeco/landscape/pkg/orchestrator"
	"github.com/papercomputeco/landscape/pkg/session"
)

const monitorLongDesc string = `Monitor subjects by running a new session every interval.

Each cycle runs a full session in this process, like "landscape run", and
compares its evaluation with the previous finished cycle. A cycle that cannot
start is retried after monitor.retry_delay.

Press Ctrl-C to stop: a cycle in flight is paused at its next safe boundary
and can be continued later with "landscape run --resume".

Examples:
  landscape monitor acme globex --query "fintech payments" --interval 12h
  landscape monitor acme --interval 1h --output-dir reports --format html`

const monitorShortDesc string = "Run sessions over the same subjects on an interval"

var flagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagMaxConcurrency,
	config.FlagTaskTimeout,
	config.FlagNarrativeProvider,
	config.FlagNarrativeModel,
	config.FlagNarrativeTarget,
	config.FlagMonitorInterval,
}

type monitorCommander struct {
	configDir string
	debug     bool

	query     string
	topics    []string
	cycles    int
	outputDir string
	format    string

	interval       string
	storageDriver  string
	sqlitePath     string
	postgresDSN    string
	maxConcurrency uint
	taskTimeout    string
	narrative      string
	model          string
	narrativeURL   string

	out    io.Writer
	viper  *viper.Viper
	logger *slog.Logger
}

func NewMonitorCmd() *cobra.Command {
	cmder := &monitorCommander{}

	cmd := &cobra.Command{
		Use:   "monitor [subject...]",
		Short: monitorShortDesc,
		Long:  monitorLongDesc,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(cmder.query) == "" {
				return errors.New("a query or at least one subject is required")
			}
			if cmder.cycles < 0 {
				return errors.New("--cycles must not be negative")
			}
			if cmder.format != "" && cmder.outputDir == "" {
				return errors.New("--format requires --output-dir")
			}
			if err := sessioncmder.ValidateFormat(cmder.format); err != nil {
				return err
			}

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

			// Every cycle runs in this process.
			v.Set("session.store", stack.StoreMemory)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context(), args)
		},
	}

	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Research question")
	cmd.Flags().StringSliceVarP(&cmder.topics, "topic", "t", nil, "Topic to focus on (repeatable)")
	cmd.Flags().IntVar(&cmder.cycles, "cycles", 0, "Stop after this many cycles (0 runs until interrupted)")
	cmd.Flags().StringVarP(&cmder.outputDir, "output-dir", "o", "", "Write each finished report to this directory")
	cmd.Flags().StringVar(&cmder.format, "format", "", "Report file format: markdown or html (default: markdown)")

	config.AddStringFlag(cmd, config.Flags, config.FlagMonitorInterval, &cmder.interval)
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

func (c *monitorCommander) run(ctx context.Context, subjects []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(os.Stderr),
		logger.WithComponent("monitor"),
	)

	interval, err := config.Duration(c.viper.GetString("monitor.interval"), 0)
	if err != nil {
		return fmt.Errorf("monitor.interval: %w", err)
	}
	if interval <= 0 {
		return errors.New("monitor.interval must be positive")
	}
	retry, err := config.Duration(c.viper.GetString("monitor.retry_delay"), interval)
	if err != nil {
		return fmt.Errorf("monitor.retry_delay: %w", err)
	}

	if c.outputDir != "" {
		if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	st, err := stack.Build(ctx, c.viper, c.configDir, c.logger)
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

	inputs := session.Inputs{Query: c.query, Subjects: subjects, Topics: c.topics}
	c.logger.Info("monitoring started",
		"subjects", len(subjects),
		"interval", interval,
	)

	var previous *session.Session
	for cycle := 1; ; cycle++ {
		s, err := c.cycle(ctx, sigCtx, st.Coordinator, inputs)

		wait := interval
		switch {
		case sigCtx.Err() != nil:
			if s != nil && s.Paused {
				fmt.Fprintf(c.out, "  %s Paused. Continue with: %s\n\n",
					cliui.WarnStyle.Render("●"),
					cliui.NameStyle.Render("landscape run --resume "+s.ID),
				)
			}
			c.logger.Info("monitoring stopped", "cycles", cycle)
			return nil

		case errors.Is(err, orchestrator.ErrInvalidInput):
			return err

		case err != nil:
			c.logger.Error("monitoring cycle failed", "cycle", cycle, "error", err, "retry_in", retry)
			wait = retry

		default:
			if err := c.finish(cycle, s, previous); err != nil {
				return err
			}
			if s.Phase == session.PhaseDone {
				previous = s
			}
		}

		if c.cycles > 0 && cycle >= c.cycles {
			c.logger.Info("monitoring finished", "cycles", cycle)
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-sigCtx.Done():
			timer.Stop()
			c.logger.Info("monitoring stopped", "cycles", cycle)
			return nil
		case <-timer.C:
		}
	}
}

// cycle runs one session to its end. Cancelling sigCtx pauses it.
func (c *monitorCommander) cycle(ctx, sigCtx context.Context, coord *orchestrator.Coordinator, inputs session.Inputs) (*session.Session, error) {
	id, err := coord.Start(ctx, inputs)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			if _, err := coord.Pause(context.WithoutCancel(ctx), id); err != nil {
				c.logger.Debug("pause on interrupt", "session_id", id, "error", err)
			}
		case <-done:
		}
	}()

	return coord.Wait(context.WithoutCancel(ctx), id)
}

// finish reports a cycle's session and compares it with the previous
// finished cycle.
func (c *monitorCommander) finish(cycle int, s, previous *session.Session) error {
	sessioncmder.PrintSession(c.out, s, false)

	attrs := []any{"cycle", cycle, "session_id", s.ID, "phase", s.Phase}
	if s.Evaluation != nil {
		attrs = append(attrs, "grade", s.Evaluation.Grade)
	}
	if previous != nil && previous.Evaluation != nil && s.Evaluation != nil {
		cmp := evaluation.Compare(*previous.Evaluation, *s.Evaluation)
		attrs = append(attrs, "grade_change", cmp.GradeChange, "score_diff", cmp.ScoreDiff)
		printComparison(c.out, cmp)
	}
	c.logger.Info("monitoring cycle completed", attrs...)

	if c.outputDir == "" || s.Outputs.Report == nil {
		return nil
	}
	format := c.format
	if format == "" {
		format = narrative.FormatMarkdown
	}
	ext := ".md"
	if strings.EqualFold(format, narrative.FormatHTML) {
		ext = ".html"
	}
	return sessioncmder.ExportReport(c.out, s, filepath.Join(c.outputDir, s.ID+ext), format)
}

func printComparison(w io.Writer, cmp evaluation.Comparison) {
	fmt.Fprintf(w, "  %s  %s %s\n",
		cliui.KeyStyle.Render("Change:   "),
		cliui.ValueStyle.Render(cmp.GradeChange),
		cliui.DimStyle.Render(fmt.Sprintf("(%+.2f)", cmp.ScoreDiff)),
	)

	dims := make([]string, 0, len(cmp.Changes))
	for dim, ch := range cmp.Changes {
		if ch.Direction != evaluation.Same {
			dims = append(dims, dim)
		}
	}
	slices.Sort(dims)
	for _, dim := range dims {
		ch := cmp.Changes[dim]
		fmt.Fprintf(w, "  %s %s %s %s\n",
			cliui.DimStyle.Render("  -"),
			dim,
			string(ch.Direction),
			cliui.DimStyle.Render(fmt.Sprintf("(%+.2f)", ch.Diff)),
		)
	}
	fmt.Fprintln(w)
}
