package config

const (
	defaultClientTarget      = "http://localhost:8000"
	defaultClientPath        = "/api/chat"
	defaultClientIdleTimeout = "60s"

	defaultProxyListen       = ":8000"
	defaultProxyUpstreamPath = "/ext/v1/chat"
	defaultProxyUser         = "user-001"
	defaultProxyTimeout      = "60s"

	defaultAPIListen = ":8081"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultRAGTarget = "https://api.openai.com"
	defaultRAGModel  = "gpt-4o-mini"
	defaultRAGTopK   = 3
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Target:      defaultClientTarget,
			Path:        defaultClientPath,
			IdleTimeout: defaultClientIdleTimeout,
		},
		Proxy: ProxyConfig{
			Listen:       defaultProxyListen,
			UpstreamPath: defaultProxyUpstreamPath,
			User:         defaultProxyUser,
			Timeout:      defaultProxyTimeout,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		RAG: RAGConfig{
			Target: defaultRAGTarget,
			Model:  defaultRAGModel,
			TopK:   defaultRAGTopK,
		},
	}
}
