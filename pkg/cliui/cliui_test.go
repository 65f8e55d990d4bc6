package cliui

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds under a second", func() {
		Expect(FormatDuration(42 * time.Millisecond)).To(Equal("42ms"))
	})

	It("uses tenths of seconds otherwise", func() {
		Expect(FormatDuration(3250 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("reports success", func() {
		var buf bytes.Buffer
		Expect(Step(&buf, "connecting", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("connecting"))
		Expect(buf.String()).To(ContainSubstring(SuccessMark))
	})

	It("returns the step's error", func() {
		var buf bytes.Buffer
		err := Step(&buf, "connecting", func() error { return errors.New("refused") })
		Expect(err).To(MatchError("refused"))
		Expect(buf.String()).To(ContainSubstring(FailMark))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the document", func() {
		out, err := RenderMarkdown("**채용** 공고")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("채용"))
		Expect(out).To(ContainSubstring("공고"))
	})
})

var _ = Describe("NewMarkdownRenderer", func() {
	It("renders with a fixed style", func() {
		r, err := NewMarkdownRenderer("notty", 40)
		Expect(err).NotTo(HaveOccurred())

		out, err := r.Render("# 요약\n\n- 공고 12건")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("요약"))
		Expect(out).To(ContainSubstring("공고 12건"))
	})
})

var _ = Describe("ReplyPrinter", func() {
	var (
		buf bytes.Buffer
		p   *ReplyPrinter
	)

	BeforeEach(func() {
		buf.Reset()
		p = NewReplyPrinter(&buf)
	})

	It("prints only the appended text", func() {
		p.Update("")
		p.Update("Hel")
		p.Update("Hello")
		p.Update("Hello")
		p.Finish()
		Expect(buf.String()).To(Equal("Hello\n"))
	})

	It("starts a replaced reply on a new line", func() {
		p.Update("draft")
		p.Update("final")
		p.Finish()
		Expect(buf.String()).To(Equal("draft\nfinal\n"))
	})

	It("prints nothing for an empty reply", func() {
		p.Finish()
		Expect(buf.String()).To(BeEmpty())
	})

	It("resets between replies", func() {
		p.Update("one")
		p.Finish()
		p.Update("one")
		p.Finish()
		Expect(buf.String()).To(Equal("one\none\n"))
	})
})
