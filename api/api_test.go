package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/inmemory"
	testutils "github.com/KimYongKuk/commercial-analysis/pkg/utils/test"
)

// brokenDriver fails every read.
type brokenDriver struct {
	storage.Driver
}

func (brokenDriver) Get(context.Context, string) (*llm.ConversationTurn, error) {
	return nil, errors.New("disk on fire")
}

func (brokenDriver) ListByConversation(context.Context, string) ([]*llm.ConversationTurn, error) {
	return nil, errors.New("disk on fire")
}

func (brokenDriver) Conversations(context.Context) ([]storage.ConversationSummary, error) {
	return nil, errors.New("disk on fire")
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	get := func(path string) (int, []byte) {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, body
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		server = NewServer(Config{ListenAddr: ":0"}, driver, logger.Nop())

		for _, turn := range []*llm.ConversationTurn{
			testutils.NewTestTurn("t-1", "c-1", "first", 0),
			testutils.NewTestTurn("t-2", "c-1", "second", time.Minute),
			testutils.NewTestTurn("t-3", "c-2", "other", 2*time.Minute),
		} {
			_, err := driver.Put(ctx, turn)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	AfterEach(func() {
		server.Shutdown()
	})

	It("answers ping", func() {
		status, body := get("/ping")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`"pong"`))
	})

	It("reports totals", func() {
		status, body := get("/stats")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"conversation_count":2,"turn_count":3}`))
	})

	Describe("GET /conversations", func() {
		It("lists conversations, most recent first", func() {
			status, body := get("/conversations")
			Expect(status).To(Equal(http.StatusOK))

			var out struct {
				Count         int                           `json:"count"`
				Conversations []storage.ConversationSummary `json:"conversations"`
			}
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Count).To(Equal(2))
			Expect(out.Conversations[0].ID).To(Equal("c-2"))
			Expect(out.Conversations[1].ID).To(Equal("c-1"))
			Expect(out.Conversations[1].TurnCount).To(Equal(2))
			Expect(out.Conversations[1].FirstQuery).To(Equal("first"))
		})
	})

	Describe("GET /conversations/:id", func() {
		It("returns the turns in order", func() {
			status, body := get("/conversations/c-1")
			Expect(status).To(Equal(http.StatusOK))

			var out ConversationResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ConversationID).To(Equal("c-1"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Turns[0].ID).To(Equal("t-1"))
			Expect(out.Turns[1].ID).To(Equal("t-2"))
		})

		It("returns 404 for an unknown conversation", func() {
			status, body := get("/conversations/missing")
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"error":"conversation not found"}`))
		})
	})

	Describe("GET /turns/:id", func() {
		It("returns the turn", func() {
			status, body := get("/turns/t-3")
			Expect(status).To(Equal(http.StatusOK))

			var turn llm.ConversationTurn
			Expect(json.Unmarshal(body, &turn)).To(Succeed())
			Expect(turn.Query).To(Equal("other"))
			Expect(turn.ConversationID).To(Equal("c-2"))
		})

		It("returns 404 for an unknown turn", func() {
			status, _ := get("/turns/nope")
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Context("when the store fails", func() {
		BeforeEach(func() {
			server = NewServer(Config{}, brokenDriver{}, logger.Nop())
		})

		It("returns 500s", func() {
			for _, path := range []string{"/stats", "/conversations", "/conversations/c-1", "/turns/t-1"} {
				status, body := get(path)
				Expect(status).To(Equal(http.StatusInternalServerError), path)
				Expect(body).NotTo(ContainSubstring("disk on fire"))
			}
		})
	})

	Describe("Handler", func() {
		It("serves the same routes over net/http", func() {
			ts := httptest.NewServer(server.Handler())
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/turns/t-1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var turn llm.ConversationTurn
			Expect(json.NewDecoder(resp.Body).Decode(&turn)).To(Succeed())
			Expect(turn.ID).To(Equal("t-1"))
		})
	})
})
