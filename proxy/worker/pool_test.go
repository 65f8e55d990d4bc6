package worker

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/inmemory"
	testutils "github.com/KimYongKuk/commercial-analysis/pkg/utils/test"
)

// newTestPool creates a worker pool backed by an in-memory driver and a
// recording publisher. Callers should "wp.Close()" to drain enqueued jobs
// before asserting storage state.
func newTestPool() (*Pool, *inmemory.Driver, *testutils.MockPublisher) {
	driver := inmemory.NewDriver()
	publisher := testutils.NewMockPublisher()

	wp, err := NewPool(&Config{
		Driver:    driver,
		Publisher: publisher,
		Source:    testSource,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver, publisher
}

var testSource = eventSource("proxy-test")

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		driver    *inmemory.Driver
		publisher *testutils.MockPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		wp, driver, publisher = newTestPool()
		ctx = context.Background()
	})

	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})

		It("applies defaults", func() {
			p, err := NewPool(&Config{Driver: inmemory.NewDriver()})
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			Expect(p.config.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(p.config.QueueSize).To(Equal(defaultJobQueueSize))
			Expect(p.config.Publisher).NotTo(BeNil())
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			ok := wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "hello", 0)})
			Expect(ok).To(BeTrue())
			wp.Close()
		})

		It("rejects a job without a turn", func() {
			Expect(wp.Enqueue(Job{})).To(BeFalse())
			wp.Close()
		})

		It("drops jobs after close", func() {
			wp.Close()
			Expect(wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "hello", 0)})).To(BeFalse())
		})

		It("drops jobs when the queue is full", func() {
			blocking := &blockingDriver{Driver: inmemory.NewDriver(), release: make(chan struct{})}
			p, err := NewPool(&Config{Driver: blocking, NumWorkers: 1, QueueSize: 1})
			Expect(err).NotTo(HaveOccurred())

			// The first job occupies the worker, the second fills the queue.
			Expect(p.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "a", 0)})).To(BeTrue())
			Eventually(blocking.started).Should(BeTrue())
			Expect(p.Enqueue(Job{Turn: testutils.NewTestTurn("t-2", "c-1", "b", 0)})).To(BeTrue())
			Expect(p.Enqueue(Job{Turn: testutils.NewTestTurn("t-3", "c-1", "c", 0)})).To(BeFalse())

			close(blocking.release)
			p.Close()
		})

		It("is safe to close twice", func() {
			wp.Close()
			Expect(wp.Close).NotTo(Panic())
		})
	})

	Describe("processing", func() {
		Context("after a single turn", func() {
			BeforeEach(func() {
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "강남역 카페 상권은?", 0)})

				// Drain the worker pool to ensure storage completes before assertions
				wp.Close()
			})

			It("persists the turn", func() {
				turn, err := driver.Get(ctx, "t-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turn.Query).To(Equal("강남역 카페 상권은?"))
			})

			It("publishes one event for the turn", func() {
				events := publisher.Events()
				Expect(events).To(HaveLen(1))
				Expect(events[0].Turn.ID).To(Equal("t-1"))
				Expect(events[0].Source).To(Equal(testSource))
			})
		})

		Context("with a multi-turn conversation", func() {
			BeforeEach(func() {
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "first", 0)})
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-2", "c-1", "second", time.Minute)})
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-3", "c-1", "third", 2*time.Minute)})
				wp.Close()
			})

			It("stores every turn in order", func() {
				turns, err := driver.ListByConversation(ctx, "c-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(3))
				Expect(turns[0].Query).To(Equal("first"))
				Expect(turns[2].Query).To(Equal("third"))
			})

			It("publishes one event per turn", func() {
				Expect(publisher.Events()).To(HaveLen(3))
			})
		})

		Context("with a duplicate turn", func() {
			It("stores and publishes it once", func() {
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "same", 0)})
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "same", 0)})
				wp.Close()

				Expect(driver.Count()).To(Equal(1))
				Expect(publisher.Events()).To(HaveLen(1))
			})
		})

		Context("when publishing fails", func() {
			It("still persists the turn", func() {
				publisher.Fail = true
				wp.Enqueue(Job{Turn: testutils.NewTestTurn("t-1", "c-1", "hello", 0)})
				wp.Close()

				_, err := driver.Get(ctx, "t-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(publisher.Events()).To(BeEmpty())
			})
		})
	})
})
