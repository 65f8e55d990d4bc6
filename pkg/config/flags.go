package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "jobflex serve" and "jobflex serve proxy").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags to
// avoid typos or drift from one command to another.
const (
	FlagProxyListen     = "proxy-listen"
	FlagAPIListen       = "api-listen"
	FlagUpstream        = "upstream"
	FlagUpstreamPath    = "upstream-path"
	FlagUpstreamAPIKey  = "upstream-api-key"
	FlagUpstreamTimeout = "upstream-timeout"
	FlagDefaultUser     = "default-user"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagEventProvider   = "event-stream-provider"
	FlagEventTarget     = "event-stream-target"
	FlagEventTopic      = "event-stream-topic"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagRAGTarget       = "rag-target"
	FlagRAGAPIKey       = "rag-api-key"
	FlagRAGModel        = "rag-model"
	FlagRAGTopK         = "rag-top-k"

	FlagTarget      = "target"
	FlagPath        = "path"
	FlagUser        = "user"
	FlagAPIKey      = "api-key"
	FlagIdleTimeout = "idle-timeout"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagProxyListen:     {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for proxy to listen on"},
	FlagAPIListen:       {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	FlagUpstream:        {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Upstream chat service base URL"},
	FlagUpstreamPath:    {Name: "upstream-path", ViperKey: "proxy.upstream_path", Description: "Chat endpoint path on the upstream"},
	FlagUpstreamAPIKey:  {Name: "upstream-api-key", ViperKey: "proxy.api_key", Description: "Bearer token for the upstream"},
	FlagUpstreamTimeout: {Name: "upstream-timeout", ViperKey: "proxy.timeout", Description: "Upstream header and per-read timeout"},
	FlagDefaultUser:     {Name: "default-user", ViperKey: "proxy.user", Description: "User sent upstream when a request names none"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	FlagPostgres:        {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagEventProvider:   {Name: "event-stream-provider", ViperKey: "event_stream.provider", Description: "Publish recorded turns to kafka or nats"},
	FlagEventTarget:     {Name: "event-stream-target", ViperKey: "event_stream.target", Description: "Kafka brokers or NATS URL"},
	FlagEventTopic:      {Name: "event-stream-topic", ViperKey: "event_stream.topic", Description: "Kafka topic or NATS subject"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Knowledge base store: chroma or sqlite-vec (default: disabled)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Chroma URL or sqlite-vec database path"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama)"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding width, required by sqlite-vec"},
	FlagRAGTarget:       {Name: "rag-target", ViperKey: "rag.target", Description: "OpenAI compatible service for knowledge base answers"},
	FlagRAGAPIKey:       {Name: "rag-api-key", ViperKey: "rag.api_key", Description: "Bearer token for the answer service"},
	FlagRAGModel:        {Name: "rag-model", ViperKey: "rag.model", Description: "Chat completion model for knowledge base answers"},
	FlagRAGTopK:         {Name: "rag-top-k", ViperKey: "rag.top_k", Description: "Document chunks retrieved per question"},

	FlagTarget:      {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Chat proxy base URL"},
	FlagPath:        {Name: "path", ViperKey: "client.path", Description: "Chat endpoint path on the proxy"},
	FlagUser:        {Name: "user", ViperKey: "client.user", Description: "User identity sent with each turn (default: random)"},
	FlagAPIKey:      {Name: "api-key", ViperKey: "client.api_key", Description: "Bearer token for the proxy"},
	FlagIdleTimeout: {Name: "idle-timeout", ViperKey: "client.idle_timeout", Description: "Give up when the stream is silent this long"},

	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for proxy to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
