package llm_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

var _ = Describe("ParseUpstreamError", func() {
	It("maps a known error code to its localized message", func() {
		e := llm.ParseUpstreamError(400, []byte(`{"code":"provider_quota_exceeded","message":"quota"}`))

		Expect(e.StatusCode).To(Equal(400))
		Expect(e.Code).To(Equal("provider_quota_exceeded"))
		Expect(e.Message).To(Equal("API 호출 한도를 초과했습니다."))
	})

	It("maps the missing-conversation code", func() {
		e := llm.ParseUpstreamError(404, []byte(`{"code":"Conversation does not exists"}`))
		Expect(e.Message).To(ContainSubstring("새 대화를 시작해주세요"))
	})

	It("falls back to the upstream message for unknown codes", func() {
		e := llm.ParseUpstreamError(400, []byte(`{"code":"weird","message":"something odd"}`))
		Expect(e.Message).To(Equal("something odd"))
	})

	It("uses the generic message when nothing is usable", func() {
		e := llm.ParseUpstreamError(500, []byte(`{}`))
		Expect(e.Message).To(Equal(llm.MessageUnknownError))
	})

	It("reports the HTTP status for a non-JSON body", func() {
		e := llm.ParseUpstreamError(502, []byte("<html>bad gateway</html>"))
		Expect(e.Message).To(Equal("HTTP 502 오류가 발생했습니다."))
		Expect(e.Error()).To(ContainSubstring("502"))
	})

	It("reports the HTTP status for JSON that is not an object", func() {
		for _, body := range []string{`[]`, `"busy"`, `42`} {
			e := llm.ParseUpstreamError(503, []byte(body))
			Expect(e.Message).To(Equal("HTTP 503 오류가 발생했습니다."), "body %s", body)
			Expect(e.Code).To(BeEmpty())
		}
	})
})

var _ = Describe("ErrorFrame", func() {
	It("encodes a complete error event", func() {
		frame := string(llm.ErrorFrame("요청 실패"))

		Expect(frame).To(HavePrefix("data: "))
		Expect(frame).To(HaveSuffix("\n\n"))

		var payload map[string]string
		Expect(json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(frame, "data: "))), &payload)).To(Succeed())
		Expect(payload).To(Equal(map[string]string{"event": "error", "message": "요청 실패"}))
	})

	It("round-trips through the decoder", func() {
		d := llm.NewStreamDecoder(strings.NewReader(string(llm.ErrorFrame("boom"))), nil)

		ev, err := d.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.(*llm.Failure).Message).To(HaveValue(Equal("boom")))
	})
})

var _ = Describe("ChatRequest", func() {
	It("serializes inputs as an empty object", func() {
		body, err := json.Marshal(llm.NewChatRequest("hi", "", "user-1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(MatchJSON(`{"query":"hi","conversation_id":"","user":"user-1","inputs":{}}`))
	})

	It("fills upstream defaults", func() {
		req := &llm.ChatRequest{Query: "hi"}
		up := req.Upstream("user-001")

		Expect(up.User).To(Equal("user-001"))
		Expect(up.Inputs).NotTo(BeNil())
		Expect(up.Mode).To(Equal(llm.ResponseModeStreaming))
	})

	It("keeps an explicit user", func() {
		req := llm.NewChatRequest("hi", "c-1", "alice")
		up := req.Upstream("user-001")

		Expect(up.User).To(Equal("alice"))
		Expect(up.ConversationID).To(Equal("c-1"))
	})
})
