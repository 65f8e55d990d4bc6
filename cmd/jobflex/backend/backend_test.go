package backend

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream/kafka"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream/nop"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/inmemory"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/sqlite"
)

var _ = Describe("NewStorageDriver", func() {
	ctx := context.Background()

	It("defaults to in-memory storage", func() {
		driver, err := NewStorageDriver(ctx, config.StorageConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens SQLite when a path is set", func() {
		dir, err := os.MkdirTemp("", "backend-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		driver, err := NewStorageDriver(ctx, config.StorageConfig{
			SQLitePath: filepath.Join(dir, "jobflex.db"),
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
	})

	It("wraps SQLite failures", func() {
		_, err := NewStorageDriver(ctx, config.StorageConfig{
			SQLitePath: "/nonexistent/dir/jobflex.db",
		}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("failed to create SQLite driver")))
	})
})

var _ = Describe("NewPublisher", func() {
	It("drops events when no provider is configured", func() {
		p, err := NewPublisher(config.EventStreamConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher without connecting", func() {
		p, err := NewPublisher(config.EventStreamConfig{
			Provider: "kafka",
			Target:   "localhost:9092",
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
	})

	It("requires kafka brokers", func() {
		_, err := NewPublisher(config.EventStreamConfig{Provider: "kafka"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("requires a nats url", func() {
		_, err := NewPublisher(config.EventStreamConfig{Provider: "nats"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := NewPublisher(config.EventStreamConfig{Provider: "rabbitmq"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unknown event stream provider")))
	})
})
