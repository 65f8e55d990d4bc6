// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KimYongKuk/commercial-analysis/api"
	"github.com/KimYongKuk/commercial-analysis/cmd/jobflex/backend"
	apicmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/serve/api"
	proxycmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/serve/proxy"
	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/proxy"
)

type serveCommander struct {
	debug    bool
	resolved *backend.Resolved
	logger   *slog.Logger
}

var serveFlags = slices.Concat(
	[]string{config.FlagProxyListen, config.FlagAPIListen},
	backend.ProxyConfigFlags,
	backend.StorageFlags,
	backend.KnowledgeFlags,
)

const serveLongDesc string = `Run JobFlex services.

Use subcommands to run individual services or all services together:
  jobflex serve          Run both chat proxy and API server together
  jobflex serve api      Run just the API server
  jobflex serve proxy    Run just the chat proxy

Both services share one turn store. Changes to the upstream section of
config.toml are applied to the running proxy without a restart.`

const serveShortDesc string = "Run JobFlex services"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.resolved, err = backend.Resolve(cmd, serveFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	backend.AddFlags(cmd, serveFlags)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.logger = backend.NewServiceLogger(c.debug, "serve")
	cfg := c.resolved.Config

	// Create shared turn store
	driver, err := backend.NewStorageDriver(ctx, cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.NewPublisher(cfg.EventStream, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	upstream, err := backend.Upstream(cfg.Proxy)
	if err != nil {
		return err
	}

	proxyConfig := proxy.Config{
		ListenAddr:  cfg.Proxy.Listen,
		Upstream:    upstream,
		DefaultUser: cfg.Proxy.User,
		Publisher:   publisher,
	}

	knowledge, err := backend.NewKnowledge(cfg, c.logger)
	if err != nil {
		return err
	}
	if knowledge != nil {
		defer knowledge.Close()
		proxyConfig.Knowledge = knowledge
	}

	p, err := proxy.New(proxyConfig, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	apiServer := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, driver, c.logger)
	defer apiServer.Shutdown()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	go func() {
		if err := backend.WatchUpstream(watchCtx, c.resolved, p, c.logger); err != nil {
			c.logger.Warn("config hot reload stopped", "error", err)
		}
	}()

	// Wait for interrupt signal or error
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
