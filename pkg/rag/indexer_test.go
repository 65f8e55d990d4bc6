package rag_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
)

var _ = Describe("Indexer", func() {
	var (
		ctx      context.Context
		dir      string
		embedder *keywordEmbedder
		store    *memoryStore
		ix       *rag.Indexer
	)

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		embedder = &keywordEmbedder{keywords: []string{"강남", "홍대"}}
		store = newMemoryStore()
		splitter := &rag.Splitter{ChunkSize: 20, Separator: "\n\n"}
		ix = rag.NewIndexer(embedder, store, splitter, logger.Nop())
	})

	It("names chunks after their source", func() {
		Expect(rag.ChunkID("guide/gangnam.md", 2)).To(Equal("guide/gangnam.md#2"))
	})

	It("walks directories and keeps supported files only", func() {
		write("gangnam.md", "강남역 유동인구")
		write("area/hongdae.TXT", "홍대 임대료")
		write("notes.pdf", "binary")

		stats, err := ix.Index(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(Equal(rag.IndexStats{Files: 2, Chunks: 2, Added: 2}))
		Expect(store.ids()).To(Equal([]string{"area/hongdae.TXT#0", "gangnam.md#0"}))

		docs, err := store.Get(ctx, []string{"gangnam.md#0"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs[0].Source).To(Equal("gangnam.md"))
		Expect(docs[0].Content).To(Equal("강남역 유동인구"))
		Expect(docs[0].Hash).To(HaveLen(64))
		Expect(docs[0].Embedding).To(Equal([]float32{1, 0, 1}))
	})

	It("does not embed unchanged chunks again", func() {
		path := write("gangnam.md", "강남역 유동인구\n\n"+strings.Repeat("가", 15))

		_, err := ix.Index(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(embedder.calls()).To(Equal(2))

		write("gangnam.md", "강남역 유동인구\n\n"+strings.Repeat("나", 15))
		stats, err := ix.Index(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(Equal(rag.IndexStats{Files: 1, Chunks: 2, Added: 1, Skipped: 1}))
		Expect(embedder.calls()).To(Equal(3))
	})

	It("removes chunks left over from a longer version", func() {
		path := write("gangnam.md", strings.Join([]string{
			strings.Repeat("가", 15), strings.Repeat("나", 15), strings.Repeat("다", 15),
		}, "\n\n"))

		_, err := ix.Index(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.ids()).To(HaveLen(3))

		write("gangnam.md", strings.Repeat("가", 15))
		_, err = ix.Index(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.ids()).To(Equal([]string{"gangnam.md#0"}))
	})

	It("rejects a file of another type named directly", func() {
		path := write("notes.pdf", "binary")
		_, err := ix.Index(ctx, path)
		Expect(err).To(MatchError(ContainSubstring("unsupported file type")))
	})

	It("fails for a missing path", func() {
		_, err := ix.Index(ctx, filepath.Join(dir, "missing"))
		Expect(err).To(HaveOccurred())
	})

	It("reports embedding failures with the chunk", func() {
		embedder.err = errBoom
		_, err := ix.Index(ctx, write("gangnam.md", "강남"))
		Expect(err).To(MatchError(ContainSubstring("embedding gangnam.md#0")))
		Expect(err).To(MatchError(errBoom))
	})
})
