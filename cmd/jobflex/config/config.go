// Package configcmder provides the config command for managing persistent
// jobflex configuration stored in the .jobflex/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
)

const configLongDesc string = `Manage persistent jobflex configuration.

Configuration is stored as config.toml in the .jobflex/ directory and provides
default values for command flags. CLI flags and JOBFLEX_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.target, client.path, client.user, client.api_key, client.idle_timeout,
  proxy.listen, proxy.upstream, proxy.upstream_path, proxy.api_key,
  proxy.user, proxy.timeout,
  api.listen,
  storage.sqlite_path, storage.postgres_dsn,
  event_stream.provider, event_stream.target, event_stream.topic

Use subcommands to get, set, or list configuration values:
  jobflex config set <key> <value>    Set a configuration value
  jobflex config get <key>            Get a configuration value
  jobflex config list                 List all configuration values

Examples:
  jobflex config set proxy.upstream https://chat.example.com
  jobflex config set proxy.api_key app-xxxxxxxx
  jobflex config get client.target
  jobflex config list`

const configShortDesc string = "Manage persistent jobflex configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// mask hides all but the last four characters of a secret.
func mask(value string) string {
	const visible = 4
	r := []rune(value)
	if len(r) <= visible {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-visible) + string(r[len(r)-visible:])
}
