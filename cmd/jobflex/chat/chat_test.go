package chatcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/conversation"
	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

func frame(payload string) string {
	return "data: " + payload + "\n\n"
}

// scriptedServer answers the n-th request with the n-th script entry.
type scriptedServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []llm.ChatRequest
}

func newScriptedServer(scripts ...[]string) *scriptedServer {
	s := &scriptedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		n := len(s.requests)
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		if n >= len(scripts) {
			return
		}
		for _, f := range scripts[n] {
			fmt.Fprint(w, f)
			w.(http.Flusher).Flush()
		}
	}))
	return s
}

func (s *scriptedServer) sent() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.ChatRequest(nil), s.requests...)
}

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has client flags with config defaults", func() {
		cmd := NewChatCmd()

		target := cmd.Flags().Lookup("target")
		Expect(target).NotTo(BeNil())
		Expect(target.Shorthand).To(Equal("t"))
		Expect(target.DefValue).To(Equal("http://localhost:8000"))

		for _, name := range []string{"path", "user", "api-key", "idle-timeout", "conversation-id", "plain"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("chat REPL", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "jobflex-chat-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, configDir)

		out = &bytes.Buffer{}
	})

	execute := func(input string, args ...string) error {
		cmd := NewChatCmd()
		cmd.PersistentFlags().BoolP("debug", "d", false, "")
		cmd.PersistentFlags().String("config-dir", configDir, "")
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		cmd.SetIn(strings.NewReader(input))
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("greets the user before the first prompt", func() {
		Expect(execute("", "--target", "http://127.0.0.1:1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(conversation.DefaultWelcome))
		Expect(out.String()).NotTo(ContainSubstring("conversation_id:"))
	})

	It("streams replies and carries the conversation id between turns", func() {
		srv := newScriptedServer(
			[]string{
				frame(`{"event":"message","answer":"첫 ","conversation_id":"c-1"}`),
				frame(`{"event":"message","answer":"답변","conversation_id":"c-1"}`),
			},
			[]string{
				frame(`{"event":"agent_message","answer":"두 번째","conversation_id":"c-1"}`),
			},
		)
		defer srv.Close()

		Expect(execute("first\n\nsecond\n/exit\nignored\n", "--target", srv.URL, "--user", "u-1")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("첫 답변\n"))
		Expect(out.String()).To(ContainSubstring("두 번째\n"))

		sent := srv.sent()
		Expect(sent).To(HaveLen(2))
		Expect(sent[0].Query).To(Equal("first"))
		Expect(sent[0].ConversationID).To(BeEmpty())
		Expect(sent[0].User).To(Equal("u-1"))
		Expect(sent[1].Query).To(Equal("second"))
		Expect(sent[1].ConversationID).To(Equal("c-1"))

		Expect(out.String()).To(HaveSuffix("conversation_id: c-1\n"))
	})

	It("resumes a conversation given on the command line", func() {
		srv := newScriptedServer([]string{frame(`{"event":"message","answer":"ok"}`)})
		defer srv.Close()

		Expect(execute("hello\n", "--target", srv.URL, "--conversation-id", "c-42")).To(Succeed())
		Expect(srv.sent()[0].ConversationID).To(Equal("c-42"))
		Expect(out.String()).To(ContainSubstring("conversation_id: c-42"))
	})

	It("shows the fallback text when the proxy is unreachable and keeps going", func() {
		Expect(execute("one\ntwo\n", "--target", "http://127.0.0.1:1")).To(Succeed())
		Expect(strings.Count(out.String(), conversation.DefaultFallbackText)).To(Equal(2))
	})

	It("rejects an invalid idle timeout", func() {
		Expect(execute("", "--idle-timeout", "forever")).To(HaveOccurred())
	})
})
