package backend

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/embeddings/ollama"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector/sqlitevec"
)

var _ = Describe("NewKnowledge", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.NewDefaultConfig()
	})

	It("stays disabled without a vector store", func() {
		chain, err := NewKnowledge(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(chain).To(BeNil())
	})

	It("builds the chain on sqlite-vec", func() {
		cfg.VectorStore = config.VectorStoreConfig{Provider: "sqlite-vec", Target: ":memory:"}
		cfg.RAG.APIKey = "sk-test"

		chain, err := NewKnowledge(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(chain).NotTo(BeNil())
		Expect(chain.Close()).To(Succeed())
	})

	It("requires an answer service key", func() {
		cfg.VectorStore = config.VectorStoreConfig{Provider: "sqlite-vec", Target: ":memory:"}

		_, err := NewKnowledge(cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("reports vector store failures", func() {
		cfg.VectorStore = config.VectorStoreConfig{Provider: "sqlite-vec", Target: ":memory:"}
		cfg.Embedding.Dimensions = 0
		cfg.RAG.APIKey = "sk-test"

		_, err := NewKnowledge(cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("failed to create vector store")))
	})
})

var _ = Describe("NewVectorDriver", func() {
	It("needs a provider", func() {
		_, err := NewVectorDriver(config.NewDefaultConfig(), logger.Nop())
		Expect(err).To(MatchError(ErrNoVectorStore))
	})

	It("opens sqlite-vec with the embedding width", func() {
		cfg := config.NewDefaultConfig()
		cfg.VectorStore = config.VectorStoreConfig{Provider: "sqlite-vec", Target: ":memory:"}

		d, err := NewVectorDriver(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		Expect(d).To(BeAssignableToTypeOf(&sqlitevec.Driver{}))
	})
})

var _ = Describe("NewEmbedder", func() {
	It("builds an ollama embedder without connecting", func() {
		e, err := NewEmbedder(config.NewDefaultConfig().Embedding, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))
	})

	It("rejects unknown providers", func() {
		_, err := NewEmbedder(config.EmbeddingConfig{Provider: "openai"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
