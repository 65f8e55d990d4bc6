package backend

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

// Resolved is the configuration a command runs with.
type Resolved struct {
	Config *config.Config

	// Viper is kept so that hot reload can re-resolve with the same flag
	// and environment overrides.
	Viper *viper.Viper

	// Path is where config.toml lives, whether or not it exists yet.
	Path string
}

// AddFlags registers each registry flag on cmd. Values are read back
// through viper once bound, so the flag targets are discarded.
func AddFlags(cmd *cobra.Command, keys []string) {
	for _, key := range keys {
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}
}

// Resolve loads configuration for cmd with precedence
// flag > env > config file > default.
func Resolve(cmd *cobra.Command, keys []string) (*Resolved, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &Resolved{
		Config: cfg,
		Viper:  v,
		Path:   cfger.GetTarget(),
	}, nil
}

// NewServiceLogger returns the logger for long-running services: colored
// output on a terminal, JSON otherwise.
func NewServiceLogger(debug bool, prefix string) *slog.Logger {
	tty := term.IsTerminal(int(os.Stderr.Fd()))
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(tty),
		logger.WithJSON(!tty),
		logger.WithPrefix(prefix),
		logger.WithWriter(os.Stderr),
	)
}
