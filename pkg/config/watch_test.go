package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

var _ = Describe("Watch", func() {
	var (
		tmpDir string
		path   string
		cancel context.CancelFunc
		done   chan error

		mu      sync.Mutex
		reloads []*config.Config
	)

	latest := func() *config.Config {
		mu.Lock()
		defer mu.Unlock()
		if len(reloads) == 0 {
			return nil
		}
		return reloads[len(reloads)-1]
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "watch-test-*")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(tmpDir, "config.toml")
		Expect(os.WriteFile(path, []byte("[proxy]\nupstream = \"http://a\"\n"), 0o600)).To(Succeed())

		mu.Lock()
		reloads = nil
		mu.Unlock()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() {
			done <- config.Watch(ctx, path, logger.Nop(), func(cfg *config.Config) {
				mu.Lock()
				reloads = append(reloads, cfg)
				mu.Unlock()
			})
		}()

		// Let the watcher register before the test edits the file.
		Consistently(done, "100ms").ShouldNot(Receive())
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
		os.RemoveAll(tmpDir)
	})

	It("reloads after the file is rewritten", func() {
		Expect(os.WriteFile(path, []byte("[proxy]\nupstream = \"http://b\"\napi_key = \"k\"\n"), 0o600)).To(Succeed())

		Eventually(latest).ShouldNot(BeNil())
		cfg := latest()
		Expect(cfg.Proxy.Upstream).To(Equal("http://b"))
		Expect(cfg.Proxy.APIKey).To(Equal("k"))
		Expect(cfg.Proxy.Listen).To(Equal(":8000"))
	})

	It("follows a file replaced by rename", func() {
		tmp := filepath.Join(tmpDir, "config.toml.tmp")
		Expect(os.WriteFile(tmp, []byte("[proxy]\nupstream = \"http://c\"\n"), 0o600)).To(Succeed())
		Expect(os.Rename(tmp, path)).To(Succeed())

		Eventually(latest).ShouldNot(BeNil())
		Expect(latest().Proxy.Upstream).To(Equal("http://c"))
	})

	It("skips a file that does not parse", func() {
		Expect(os.WriteFile(path, []byte("not toml [[["), 0o600)).To(Succeed())
		Consistently(latest, "400ms").Should(BeNil())
	})

	It("ignores other files in the directory", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "other.toml"), []byte("x = 1"), 0o600)).To(Succeed())
		Consistently(latest, "400ms").Should(BeNil())
	})
})
