package eventstream_test

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream"
	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
)

var _ = Describe("Event", func() {
	var turn *llm.ConversationTurn

	BeforeEach(func() {
		turn = &llm.ConversationTurn{
			ID:             "t-1",
			ConversationID: "c-1",
			User:           "user-001",
			Query:          "강남역 카페 상권은?",
			Answer:         "유동인구가 많습니다.",
			Status:         llm.TurnCompleted,
			StartedAt:      time.Unix(1735689600, 0).UTC(),
			Duration:       2 * time.Second,
		}
	})

	It("builds a v1 turn recorded event", func() {
		now := time.Unix(1735689602, 0)
		event, err := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{Service: "proxy", Upstream: "https://api.miso.gs"}, now)
		Expect(err).NotTo(HaveOccurred())

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnRecorded))
		Expect(uuid.Validate(event.EventID)).To(Succeed())
		Expect(event.EmittedAt).To(BeTemporally("==", now))
		Expect(event.Turn).To(Equal(*turn))
	})

	It("assigns a distinct id to every event", func() {
		a, _ := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{}, time.Now())
		b, _ := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{}, time.Now())
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("rejects a nil turn", func() {
		_, err := eventstream.NewTurnRecordedEvent(nil, eventstream.EventSource{}, time.Now())
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("keys events by conversation, falling back to the turn id", func() {
		event, _ := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{}, time.Now())
		Expect(event.Key()).To(Equal("c-1"))

		turn.ConversationID = ""
		event, _ = eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{}, time.Now())
		Expect(event.Key()).To(Equal("t-1"))
	})

	It("marshals with the expected top-level keys", func() {
		event, _ := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{Service: "proxy"}, time.Now())

		payload, err := eventstream.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("turn"))

		turnJSON, ok := got["turn"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(turnJSON["conversation_id"]).To(Equal("c-1"))
		Expect(turnJSON["duration_ns"]).To(BeNumerically("==", 2*time.Second))
	})

	It("refuses to marshal a nil event", func() {
		_, err := eventstream.Marshal(nil)
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeTurnRecorded).To(Equal("jobflex.turn.recorded"))
	})

	It("provides ErrNilTurnEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilTurnEvent).To(MatchError("nil turn event"))
	})
})
