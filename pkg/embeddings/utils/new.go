// Package embeddingutils builds an embeddings.Embedder from configuration.
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/embeddings"
	"github.com/KimYongKuk/commercial-analysis/pkg/embeddings/ollama"
)

// ProviderOllama is the only embedding provider so far.
const ProviderOllama = "ollama"

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Logger       *slog.Logger
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case ProviderOllama:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Logger:  o.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", o.ProviderType)
	}
}
