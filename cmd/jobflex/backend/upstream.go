package backend

import (
	"context"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/proxy"
)

// ProxyConfigFlags are the registry flags "serve" and "serve proxy" share,
// besides the listen address.
var ProxyConfigFlags = []string{
	config.FlagUpstream,
	config.FlagUpstreamPath,
	config.FlagUpstreamAPIKey,
	config.FlagUpstreamTimeout,
	config.FlagDefaultUser,
	config.FlagEventProvider,
	config.FlagEventTarget,
	config.FlagEventTopic,
}

// StorageFlags select the turn store.
var StorageFlags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
}

// Upstream maps the proxy section to the proxy's upstream settings.
func Upstream(cfg config.ProxyConfig) (proxy.Upstream, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return proxy.Upstream{}, err
	}

	return proxy.Upstream{
		URL:     cfg.Upstream,
		Path:    cfg.UpstreamPath,
		APIKey:  cfg.APIKey,
		Timeout: timeout,
	}, nil
}

// WatchUpstream re-resolves r each time config.toml changes and hands the
// new upstream settings to p. Flag and environment overrides keep their
// precedence. It blocks until ctx is done.
func WatchUpstream(ctx context.Context, r *Resolved, p *proxy.Proxy, log *slog.Logger) error {
	return config.Watch(ctx, r.Path, log, func(*config.Config) {
		if err := r.Viper.ReadInConfig(); err != nil {
			log.Warn("could not re-read config", "error", err)
			return
		}

		cfg, err := config.FromViper(r.Viper)
		if err != nil {
			log.Warn("ignoring invalid config change", "error", err)
			return
		}

		up, err := Upstream(cfg.Proxy)
		if err != nil {
			log.Warn("ignoring invalid config change", "error", err)
			return
		}

		if err := p.SetUpstream(up); err != nil {
			log.Warn("keeping previous upstream", "error", err)
		}
	})
}
