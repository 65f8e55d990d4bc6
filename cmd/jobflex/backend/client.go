package backend

import (
	"io"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/client"
	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

// ClientFlags are the registry flags of the commands that talk to the proxy.
var ClientFlags = []string{
	config.FlagTarget,
	config.FlagPath,
	config.FlagUser,
	config.FlagAPIKey,
	config.FlagIdleTimeout,
}

// NewClient builds the chat client from the client section.
func NewClient(cfg config.ClientConfig, log *slog.Logger) (*client.Client, error) {
	idle, err := cfg.IdleTimeoutDuration()
	if err != nil {
		return nil, err
	}

	return client.New(client.Config{
		BaseURL:     cfg.Target,
		Path:        cfg.Path,
		APIKey:      cfg.APIKey,
		IdleTimeout: idle,
		Logger:      log,
	})
}

// NewCLILogger returns the human-facing logger of interactive commands.
// Only warnings and errors are shown unless debug is set.
func NewCLILogger(debug bool, w io.Writer) *slog.Logger {
	opts := []logger.Option{
		logger.WithPretty(true),
		logger.WithWriter(w),
	}
	if debug {
		opts = append(opts, logger.WithDebug(true))
	} else {
		opts = append(opts, logger.WithLevel(slog.LevelWarn))
	}
	return logger.New(opts...)
}
