package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
)

// DescribeDriver registers the behavior every storage.Driver must have.
// newDriver is called before each test and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	Describe("storage.Driver behavior", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		Describe("Put", func() {
			It("stores a new turn", func() {
				inserted, err := driver.Put(ctx, NewTestTurn("t-1", "c-1", "hello", 0))
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeTrue())
			})

			It("is a no-op for an existing id", func() {
				_, err := driver.Put(ctx, NewTestTurn("t-1", "c-1", "hello", 0))
				Expect(err).NotTo(HaveOccurred())

				inserted, err := driver.Put(ctx, NewTestTurn("t-1", "c-1", "changed", 0))
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeFalse())

				got, err := driver.Get(ctx, "t-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Query).To(Equal("hello"))
			})

			It("rejects a nil turn", func() {
				_, err := driver.Put(ctx, nil)
				Expect(err).To(HaveOccurred())
			})

			It("rejects a turn without an id", func() {
				_, err := driver.Put(ctx, NewTestTurn("", "c-1", "hello", 0))
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("Get", func() {
			It("round-trips every field", func() {
				turn := NewTestTurn("t-1", "c-1", "상권 분석", 0)
				turn.Error = "quota exceeded"
				turn.Status = llm.TurnFailed
				_, err := driver.Put(ctx, turn)
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.Get(ctx, "t-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("t-1"))
				Expect(got.ConversationID).To(Equal("c-1"))
				Expect(got.User).To(Equal(turn.User))
				Expect(got.Query).To(Equal("상권 분석"))
				Expect(got.Answer).To(Equal(turn.Answer))
				Expect(got.Error).To(Equal("quota exceeded"))
				Expect(got.Status).To(Equal(llm.TurnFailed))
				Expect(got.StartedAt).To(BeTemporally("==", turn.StartedAt))
				Expect(got.Duration).To(Equal(turn.Duration))
			})

			It("returns NotFoundError for an unknown id", func() {
				_, err := driver.Get(ctx, "missing")

				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
				Expect(notFound.ID).To(Equal("missing"))
			})
		})

		Describe("ListByConversation", func() {
			It("returns the conversation's turns oldest first", func() {
				for _, turn := range []*llm.ConversationTurn{
					NewTestTurn("t-3", "c-1", "third", 3*time.Minute),
					NewTestTurn("t-1", "c-1", "first", time.Minute),
					NewTestTurn("t-x", "c-2", "other", 2*time.Minute),
					NewTestTurn("t-2", "c-1", "second", 2*time.Minute),
				} {
					_, err := driver.Put(ctx, turn)
					Expect(err).NotTo(HaveOccurred())
				}

				turns, err := driver.ListByConversation(ctx, "c-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(3))
				Expect(turns[0].Query).To(Equal("first"))
				Expect(turns[1].Query).To(Equal("second"))
				Expect(turns[2].Query).To(Equal("third"))
			})

			It("returns nothing for an unknown conversation", func() {
				turns, err := driver.ListByConversation(ctx, "nope")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(BeEmpty())
			})
		})

		Describe("Conversations", func() {
			It("summarizes conversations, most recently active first", func() {
				for _, turn := range []*llm.ConversationTurn{
					NewTestTurn("t-1", "c-old", "old first", time.Minute),
					NewTestTurn("t-2", "c-new", "new first", 2*time.Minute),
					NewTestTurn("t-3", "c-new", "new second", 5*time.Minute),
					NewTestTurn("t-4", "", "no conversation", 9*time.Minute),
				} {
					_, err := driver.Put(ctx, turn)
					Expect(err).NotTo(HaveOccurred())
				}

				summaries, err := driver.Conversations(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(summaries).To(HaveLen(2))

				Expect(summaries[0].ID).To(Equal("c-new"))
				Expect(summaries[0].TurnCount).To(Equal(2))
				Expect(summaries[0].FirstQuery).To(Equal("new first"))
				Expect(summaries[0].User).To(Equal("user-test"))
				Expect(summaries[0].StartedAt).To(BeTemporally("==", BaseTime.Add(2*time.Minute)))
				Expect(summaries[0].UpdatedAt).To(BeTemporally("==", BaseTime.Add(5*time.Minute)))

				Expect(summaries[1].ID).To(Equal("c-old"))
				Expect(summaries[1].TurnCount).To(Equal(1))
			})

			It("is empty for an empty store", func() {
				summaries, err := driver.Conversations(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(summaries).To(BeEmpty())
			})
		})
	})
}
