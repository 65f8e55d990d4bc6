// Package apicmder provides the API server cobra command.
package apicmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KimYongKuk/commercial-analysis/api"
	"github.com/KimYongKuk/commercial-analysis/cmd/jobflex/backend"
	"github.com/KimYongKuk/commercial-analysis/pkg/config"
)

type apiCommander struct {
	debug    bool
	resolved *backend.Resolved
	logger   *slog.Logger
}

var apiFlags = slices.Concat(
	[]string{config.FlagAPIListenStandalone},
	backend.StorageFlags,
)

const apiLongDesc string = `Run the JobFlex API server for inspecting recorded conversations.

Point it at the same SQLite file or PostgreSQL database as a running
"jobflex serve proxy" to browse the turns that proxy records.`

const apiShortDesc string = "Run the JobFlex API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.resolved, err = backend.Resolve(cmd, apiFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	backend.AddFlags(cmd, apiFlags)

	return cmd
}

func (c *apiCommander) run(cmd *cobra.Command) error {
	c.logger = backend.NewServiceLogger(c.debug, "api")
	cfg := c.resolved.Config

	driver, err := backend.NewStorageDriver(cmd.Context(), cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, driver, c.logger)
	defer server.Shutdown()

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
		return nil
	}
}
