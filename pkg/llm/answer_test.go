package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

func mustDecode(payload string) llm.Event {
	ev, err := llm.Decode([]byte(payload))
	Expect(err).NotTo(HaveOccurred())
	return ev
}

var _ = Describe("Answer", func() {
	var answer *llm.Answer

	BeforeEach(func() {
		answer = &llm.Answer{ErrorFallback: "fallback"}
	})

	It("accumulates deltas", func() {
		answer.Apply(mustDecode(`{"event":"message","answer":"A"}`))
		answer.Apply(mustDecode(`{"event":"agent_message","answer":"B"}`))

		Expect(answer.Text).To(Equal("AB"))
		Expect(answer.Failed()).To(BeFalse())
	})

	It("treats an absent delta answer as empty", func() {
		answer.Apply(mustDecode(`{"event":"message","answer":"A"}`))
		answer.Apply(mustDecode(`{"event":"message"}`))

		Expect(answer.Text).To(Equal("A"))
	})

	It("replaces accumulated text", func() {
		answer.Apply(mustDecode(`{"event":"message","answer":"A"}`))
		answer.Apply(mustDecode(`{"event":"message_replace","answer":"Z"}`))

		Expect(answer.Text).To(Equal("Z"))
	})

	It("clears the text on a replace without an answer", func() {
		answer.Apply(mustDecode(`{"event":"message","answer":"A"}`))
		answer.Apply(mustDecode(`{"event":"message_replace"}`))

		Expect(answer.Text).To(BeEmpty())
	})

	It("ignores unrecognized events", func() {
		answer.Apply(mustDecode(`{"event":"message","answer":"A"}`))
		terminal := answer.Apply(mustDecode(`{"event":"workflow_started","answer":"nope"}`))

		Expect(terminal).To(BeFalse())
		Expect(answer.Text).To(Equal("A"))
	})

	Context("on an error event", func() {
		It("sets the error text and becomes terminal", func() {
			answer.Apply(mustDecode(`{"event":"message","answer":"partial"}`))
			terminal := answer.Apply(mustDecode(`{"event":"error","message":"boom"}`))

			Expect(terminal).To(BeTrue())
			Expect(answer.Failed()).To(BeTrue())
			Expect(answer.Text).To(Equal("boom"))
		})

		It("uses the fallback when the message is absent", func() {
			answer.Apply(mustDecode(`{"event":"error"}`))

			Expect(answer.Text).To(Equal("fallback"))
		})

		It("uses the fallback when the message is empty", func() {
			answer.Apply(mustDecode(`{"event":"message","answer":"partial"}`))
			answer.Apply(mustDecode(`{"event":"error","message":""}`))

			Expect(answer.Text).To(Equal("fallback"))
			Expect(answer.Failed()).To(BeTrue())
		})

		It("ignores every later event", func() {
			answer.Apply(mustDecode(`{"event":"error","message":"boom"}`))
			terminal := answer.Apply(mustDecode(`{"event":"message","answer":"late","conversation_id":"c-late"}`))

			Expect(terminal).To(BeTrue())
			Expect(answer.Text).To(Equal("boom"))
			Expect(answer.ConversationID).To(BeEmpty())
		})
	})

	Context("conversation id tracking", func() {
		It("adopts a non-empty id from any event kind", func() {
			answer.Apply(mustDecode(`{"event":"ping","conversation_id":"c-1"}`))
			Expect(answer.ConversationID).To(Equal("c-1"))
		})

		It("ignores empty ids", func() {
			answer.Apply(mustDecode(`{"event":"message","conversation_id":"c-1"}`))
			answer.Apply(mustDecode(`{"event":"message","conversation_id":""}`))
			Expect(answer.ConversationID).To(Equal("c-1"))
		})

		It("lets the latest id win", func() {
			answer.Apply(mustDecode(`{"event":"message","conversation_id":"c-1"}`))
			answer.Apply(mustDecode(`{"event":"message","conversation_id":"c-2"}`))
			Expect(answer.ConversationID).To(Equal("c-2"))
		})

		It("records the id carried by the error event itself", func() {
			answer.Apply(mustDecode(`{"event":"error","message":"x","conversation_id":"c-err"}`))
			Expect(answer.ConversationID).To(Equal("c-err"))
		})
	})
})
