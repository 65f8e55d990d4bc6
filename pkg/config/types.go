package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent jobflex configuration stored as
// config.toml in the .jobflex/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Proxy       ProxyConfig       `toml:"proxy"`
	API         APIConfig         `toml:"api"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"event_stream"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	RAG         RAGConfig         `toml:"rag"`
}

// ClientConfig holds settings for the chat and ask commands, which talk to a
// running proxy. Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target      string `toml:"target,omitempty"`
	Path        string `toml:"path,omitempty"`
	User        string `toml:"user,omitempty"`
	APIKey      string `toml:"api_key,omitempty"`
	IdleTimeout string `toml:"idle_timeout,omitempty"`
}

// ProxyConfig holds proxy-specific settings.
type ProxyConfig struct {
	Listen       string `toml:"listen,omitempty"`
	Upstream     string `toml:"upstream,omitempty"`
	UpstreamPath string `toml:"upstream_path,omitempty"`
	APIKey       string `toml:"api_key,omitempty"`
	User         string `toml:"user,omitempty"`
	Timeout      string `toml:"timeout,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds shared storage settings used by both proxy and API.
// PostgresDSN wins over SQLitePath when both are set.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig selects where recorded turns are published.
type EventStreamConfig struct {
	// Provider is "", "kafka" or "nats".
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// VectorStoreConfig selects where knowledge document chunks are stored.
// An empty provider disables the knowledge base routes.
type VectorStoreConfig struct {
	// Provider is "", "chroma" or "sqlite-vec".
	Provider string `toml:"provider,omitempty"`

	// Target is the Chroma URL, or the database file for sqlite-vec.
	Target string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// RAGConfig points at the OpenAI compatible service that writes knowledge
// base answers.
type RAGConfig struct {
	Target string `toml:"target,omitempty"`
	APIKey string `toml:"api_key,omitempty"`
	Model  string `toml:"model,omitempty"`
	TopK   uint   `toml:"top_k,omitempty"`
}

// IdleTimeoutDuration parses IdleTimeout. An empty value yields zero.
func (c ClientConfig) IdleTimeoutDuration() (time.Duration, error) {
	return parseDuration("client.idle_timeout", c.IdleTimeout)
}

// TimeoutDuration parses Timeout. An empty value yields zero.
func (c ProxyConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("proxy.timeout", c.Timeout)
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked by "config list".
	secret bool
}

// stringKey builds a configKeyInfo for a plain string field.
func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// durationKey builds a configKeyInfo for a duration stored as a string.
func durationKey(key string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := parseDuration(key, v); err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

// uintKey builds a configKeyInfo for an unsigned integer field. Zero reads
// back as an empty string.
func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			if v == "" {
				*field(c) = 0
				return nil
			}
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// oneOfKey builds a configKeyInfo for a string restricted to allowed values.
// The empty string is always allowed.
func oneOfKey(key string, field func(c *Config) *string, allowed ...string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if v != "" && !slices.Contains(allowed, v) {
				return fmt.Errorf("invalid value for %s: %q (available: %s)", key, v, strings.Join(allowed, ", "))
			}
			*field(c) = v
			return nil
		},
	}
}

func secretKey(info configKeyInfo) configKeyInfo {
	info.secret = true
	return info
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.target":       stringKey(func(c *Config) *string { return &c.Client.Target }),
	"client.path":         stringKey(func(c *Config) *string { return &c.Client.Path }),
	"client.user":         stringKey(func(c *Config) *string { return &c.Client.User }),
	"client.api_key":      secretKey(stringKey(func(c *Config) *string { return &c.Client.APIKey })),
	"client.idle_timeout": durationKey("client.idle_timeout", func(c *Config) *string { return &c.Client.IdleTimeout }),

	"proxy.listen":        stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.upstream":      stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),
	"proxy.upstream_path": stringKey(func(c *Config) *string { return &c.Proxy.UpstreamPath }),
	"proxy.api_key":       secretKey(stringKey(func(c *Config) *string { return &c.Proxy.APIKey })),
	"proxy.user":          stringKey(func(c *Config) *string { return &c.Proxy.User }),
	"proxy.timeout":       durationKey("proxy.timeout", func(c *Config) *string { return &c.Proxy.Timeout }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": secretKey(stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN })),

	"event_stream.provider": oneOfKey("event_stream.provider", func(c *Config) *string { return &c.EventStream.Provider }, "kafka", "nats"),
	"event_stream.target":   stringKey(func(c *Config) *string { return &c.EventStream.Target }),
	"event_stream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"vector_store.provider": oneOfKey("vector_store.provider", func(c *Config) *string { return &c.VectorStore.Provider }, "chroma", "sqlite-vec"),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),

	"embedding.provider":   oneOfKey("embedding.provider", func(c *Config) *string { return &c.Embedding.Provider }, "ollama"),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),

	"rag.target":  stringKey(func(c *Config) *string { return &c.RAG.Target }),
	"rag.api_key": secretKey(stringKey(func(c *Config) *string { return &c.RAG.APIKey })),
	"rag.model":   stringKey(func(c *Config) *string { return &c.RAG.Model }),
	"rag.top_k":   uintKey("rag.top_k", func(c *Config) *uint { return &c.RAG.TopK }),
}
