// Package proxycmder provides the chat proxy command.
package proxycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KimYongKuk/commercial-analysis/cmd/jobflex/backend"
	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/proxy"
)

type proxyCommander struct {
	debug    bool
	resolved *backend.Resolved
	logger   *slog.Logger
}

var proxyFlags = slices.Concat(
	[]string{config.FlagProxyListenStandalone},
	backend.ProxyConfigFlags,
	backend.StorageFlags,
	backend.KnowledgeFlags,
)

const proxyLongDesc string = `Run the chat proxy.

The proxy accepts {query, conversation_id, user} on POST /api/chat, calls the
upstream chat service with the configured API key, and relays its event
stream back unchanged while recording each turn.

The upstream API key can be set with --upstream-api-key, the
JOBFLEX_PROXY_API_KEY environment variable, or "jobflex config set
proxy.api_key". Edits to config.toml take effect without a restart.

Optionally publish recorded turns to Kafka or NATS with
--event-stream-provider.

With --vector-store-provider set, POST /api/rag-chat and
/api/rag-chat-stream answer from the documents added with "jobflex docs add".`

const proxyShortDesc string = "Run the JobFlex chat proxy"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.resolved, err = backend.Resolve(cmd, proxyFlags)
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

	backend.AddFlags(cmd, proxyFlags)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
	c.logger = backend.NewServiceLogger(c.debug, "proxy")
	cfg := c.resolved.Config

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

	if upstream.APIKey == "" {
		c.logger.Warn("upstream API key is not set; chat requests will be refused until it is")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := backend.WatchUpstream(watchCtx, c.resolved, p, c.logger); err != nil {
			c.logger.Warn("config hot reload stopped", "error", err)
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
