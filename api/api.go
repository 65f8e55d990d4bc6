package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
)

// Server is the API server for querying recorded conversations.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with other components
// (e.g., the proxy when both run in one process).
func NewServer(config Config, driver storage.Driver, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger.OrNop(log),
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Get("/conversations", s.handleListConversations)
	app.Get("/conversations/:id", s.handleGetConversation)
	app.Get("/turns/:id", s.handleGetTurn)

	return s
}

// Handler exposes the API as a net/http handler for embedding in other
// servers.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
