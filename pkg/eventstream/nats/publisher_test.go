package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	natsgo "github.com/nats-io/nats.go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream"
	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

type fakeConn struct {
	msgs    []*natsgo.Msg
	err     error
	drained bool
}

func (f *fakeConn) PublishMsg(m *natsgo.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func newEvent() *eventstream.TurnRecordedEvent {
	event, err := eventstream.NewTurnRecordedEvent(
		&llm.ConversationTurn{ID: "t-1", ConversationID: "c-1", Query: "hi"},
		eventstream.EventSource{Service: "proxy"},
		time.Now(),
	)
	Expect(err).NotTo(HaveOccurred())
	return event
}

var _ = Describe("Publisher", func() {
	var (
		conn *fakeConn
		pub  *Publisher
	)

	BeforeEach(func() {
		conn = &fakeConn{}
		pub = newPublisher(conn, DefaultSubject, nil)
	})

	It("requires a url", func() {
		_, err := NewPublisher(Config{})
		Expect(err).To(HaveOccurred())
	})

	It("publishes the event on the subject", func() {
		event := newEvent()
		Expect(pub.PublishTurn(context.Background(), event)).To(Succeed())

		Expect(conn.msgs).To(HaveLen(1))
		msg := conn.msgs[0]
		Expect(msg.Subject).To(Equal(DefaultSubject))
		Expect(msg.Header.Get(natsgo.MsgIdHdr)).To(Equal(event.EventID))

		var decoded map[string]any
		Expect(json.Unmarshal(msg.Data, &decoded)).To(Succeed())
		Expect(decoded["event_type"]).To(Equal(eventstream.EventTypeTurnRecorded))
	})

	It("does not publish once the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(pub.PublishTurn(ctx, newEvent())).To(MatchError(context.Canceled))
		Expect(conn.msgs).To(BeEmpty())
	})

	It("wraps connection errors", func() {
		conn.err = errors.New("connection closed")
		Expect(pub.PublishTurn(context.Background(), newEvent())).To(MatchError(ContainSubstring("connection closed")))
	})

	It("drains on close", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(conn.drained).To(BeTrue())
	})

	Context("against a live server", func() {
		It("delivers events to subscribers", func() {
			url := os.Getenv("JOBFLEX_TEST_NATS_URL")
			if url == "" {
				Skip("JOBFLEX_TEST_NATS_URL not set, skipping NATS integration test")
			}

			live, err := NewPublisher(Config{URL: url, Subject: "jobflex.test.turns"})
			Expect(err).NotTo(HaveOccurred())
			defer live.Close()

			sub, err := natsgo.Connect(url)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Close()

			received := make(chan *natsgo.Msg, 1)
			_, err = sub.ChanSubscribe("jobflex.test.turns", received)
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Flush()).To(Succeed())

			Expect(live.PublishTurn(context.Background(), newEvent())).To(Succeed())
			Eventually(received, 5*time.Second).Should(Receive())
		})
	})
})
