package rag_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
)

var _ = Describe("Splitter", func() {
	It("uses 500 characters with a 100 character overlap by default", func() {
		s := rag.NewSplitter()
		Expect(s.ChunkSize).To(Equal(500))
		Expect(s.ChunkOverlap).To(Equal(100))
		Expect(s.Separator).To(Equal("\n\n"))
	})

	It("returns nothing for blank text", func() {
		Expect(rag.NewSplitter().Split(" \n\n \t")).To(BeEmpty())
	})

	It("keeps short text in one trimmed chunk", func() {
		Expect(rag.NewSplitter().Split("  강남역 상권\n\n유동인구 많음\n")).
			To(Equal([]string{"강남역 상권\n\n유동인구 많음"}))
	})

	It("packs paragraphs and carries an overlap into the next chunk", func() {
		s := &rag.Splitter{ChunkSize: 20, ChunkOverlap: 5, Separator: "\n\n"}
		text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 10) + "\n\n" + strings.Repeat("c", 10)

		Expect(s.Split(text)).To(Equal([]string{
			"aaaaaaaaaa",
			"aaa\n\nbbbbbbbbbb",
			"bbb\n\ncccccccccc",
		}))
	})

	It("counts characters, not bytes", func() {
		s := &rag.Splitter{ChunkSize: 10, Separator: "\n\n"}
		Expect(s.Split("가나다라마\n\n바사아자차")).To(Equal([]string{"가나다라마", "바사아자차"}))
	})

	It("cuts a paragraph far over the size into fixed windows", func() {
		s := &rag.Splitter{ChunkSize: 10, Separator: "\n\n"}
		chunks := s.Split(strings.Repeat("x", 25))

		Expect(chunks).To(Equal([]string{
			strings.Repeat("x", 10),
			strings.Repeat("x", 10),
			strings.Repeat("x", 5),
		}))
	})
})
