// Package sessioncmder provides the commands that drive sessions on a
// running "landscape serve": start, status, pause, resume and abandon.
package sessioncmder

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/landscape/cmd/landscape/client"
	"github.com/papercomputeco/landscape/pkg/config"
	"github.com/papercomputeco/landscape/pkg/dotdir"
)

// apiCommander holds what every session command needs: the API target and
// the dot directory holding the last-session record.
type apiCommander struct {
	apiTarget string
	configDir string
	client    *client.Client
}

// register adds the shared flags and config loading to cmd.
func (c *apiCommander) register(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &c.apiTarget)

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		c.configDir, _ = cmd.Flags().GetString("config-dir")

		v, err := config.InitViper(c.configDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

		c.client, err = client.New(v.GetString("client.api_target"))
		return err
	}
}

// sessionID returns args[0], or the id of the last session started from
// this machine.
func (c *apiCommander) sessionID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	last, err := dotdir.NewManager().LoadLastSession(c.configDir)
	if err != nil {
		return "", err
	}
	if last == nil {
		return "", errors.New("no session id given and no session has been started from here")
	}
	return last.SessionID, nil
}

// remember records id as the last session.
func (c *apiCommander) remember(id string) error {
	return dotdir.NewManager().SaveLastSession(&dotdir.LastSession{
		SessionID: id,
		APITarget: c.client.Target(),
		StartedAt: time.Now().UTC(),
	}, c.configDir)
}
