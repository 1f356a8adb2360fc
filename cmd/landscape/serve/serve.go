// Package servecmder provides the serve command, which runs the session API
// server with an in-process coordinator.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/landscape/api"
	"github.com/papercomputeco/landscape/cmd/landscape/stack"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/logger"
)

type ServeCommander struct {
	configDir string
	debug     bool
	logFile   string
	logFormat string

	// Flag targets; the effective values are read from viper.
	listen         string
	storageDriver  string
	sqlitePath     string
	postgresDSN    string
	sessionStore   string
	redisURL       string
	maxConcurrency uint
	taskTimeout    string
	narrative      string
	model          string
	narrativeURL   string
	publisher      string
	agentID        string

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the landscape API server.

Sessions started through the API run in this process. Live session state is
kept in the configured session store and every phase boundary is
checkpointed to durable storage, so sessions survive a restart and can be
resumed from any checkpoint.

On SIGINT or SIGTERM the server stops accepting requests and pauses every
running session at its next safe boundary before exiting.

Examples:
  landscape serve
  landscape serve --listen :9090 --storage postgres --postgres postgres://localhost/landscape
  landscape serve --session-store redis --redis redis://localhost:6379/0 --publisher kafka`

const serveShortDesc string = "Run the landscape API server"

// flagKeys are the registry flags serve carries.
var flagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagSessionStore,
	config.FlagRedisURL,
	config.FlagMaxConcurrency,
	config.FlagTaskTimeout,
	config.FlagNarrativeProvider,
	config.FlagNarrativeModel,
	config.FlagNarrativeTarget,
	config.FlagPublisher,
	config.FlagAgentID,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagSessionStore, &cmder.sessionStore)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisURL, &cmder.redisURL)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxConcurrency, &cmder.maxConcurrency)
	config.AddStringFlag(cmd, config.Flags, config.FlagTaskTimeout, &cmder.taskTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrativeProvider, &cmder.narrative)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrativeModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagNarrativeTarget, &cmder.narrativeURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagAgentID, &cmder.agentID)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().StringVar(&cmder.logFormat, "log-format", string(logger.FormatPretty), "Console log format (text, json, pretty)")

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	st, err := stack.Build(cmd.Context(), c.viper, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("shutdown failed", "error", err)
		}
	}()

	server := api.NewServer(api.Config{ListenAddr: c.viper.GetString("api.listen")}, st.Coordinator, st.Bank, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		if err := server.Shutdown(); err != nil {
			c.logger.Warn("API server shutdown failed", "error", err)
		}
		return nil
	}
}

// newLogger builds the service logger. With --log-file, records go to
// stdout and, as JSON, to the file.
func (c *ServeCommander) newLogger() (*slog.Logger, func(), error) {
	format, err := logger.ParseFormat(c.logFormat)
	if err != nil {
		return nil, nil, err
	}
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(format),
		logger.WithComponent("serve"),
	)
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithComponent("serve"),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}
