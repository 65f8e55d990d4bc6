package backend

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/embeddings"
	embeddingutils "github.com/KimYongKuk/commercial-analysis/pkg/embeddings/utils"
	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
	vectorutils "github.com/KimYongKuk/commercial-analysis/pkg/vector/utils"
)

// ErrNoVectorStore is returned when a command needs the knowledge base but
// vector_store.provider is unset.
var ErrNoVectorStore = errors.New("no vector store configured (set vector_store.provider)")

// VectorFlags select the document store and the embedder.
var VectorFlags = []string{
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

// KnowledgeFlags configure the proxy's knowledge base routes.
var KnowledgeFlags = append(append([]string{}, VectorFlags...),
	config.FlagRAGTarget,
	config.FlagRAGAPIKey,
	config.FlagRAGModel,
	config.FlagRAGTopK,
)

// NewVectorDriver opens the configured document store.
func NewVectorDriver(cfg *config.Config, log *slog.Logger) (vector.Driver, error) {
	if cfg.VectorStore.Provider == "" {
		return nil, ErrNoVectorStore
	}

	d, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	return d, nil
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg config.EmbeddingConfig, log *slog.Logger) (embeddings.Embedder, error) {
	e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Provider,
		TargetURL:    cfg.Target,
		Model:        cfg.Model,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return e, nil
}

// NewKnowledge builds the knowledge base chain. It returns nil, nil when no
// vector store is configured, leaving the routes disabled.
func NewKnowledge(cfg *config.Config, log *slog.Logger) (*rag.Chain, error) {
	if cfg.VectorStore.Provider == "" {
		log.Info("knowledge base disabled: no vector store configured")
		return nil, nil
	}

	gen, err := rag.NewOpenAI(rag.OpenAIConfig{
		BaseURL: cfg.RAG.Target,
		APIKey:  cfg.RAG.APIKey,
		Model:   cfg.RAG.Model,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create answer generator: %w", err)
	}

	emb, err := NewEmbedder(cfg.Embedding, log)
	if err != nil {
		return nil, err
	}

	driver, err := NewVectorDriver(cfg, log)
	if err != nil {
		emb.Close()
		return nil, err
	}

	chain, err := rag.New(rag.Config{
		Embedder:  emb,
		Driver:    driver,
		Generator: gen,
		TopK:      int(cfg.RAG.TopK),
		Logger:    log,
	})
	if err != nil {
		emb.Close()
		driver.Close()
		return nil, err
	}

	log.Info("knowledge base enabled",
		"vector_store", cfg.VectorStore.Provider,
		"embedding_model", cfg.Embedding.Model,
		"model", cfg.RAG.Model,
	)
	return chain, nil
}
