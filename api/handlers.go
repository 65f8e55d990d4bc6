package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/KimYongKuk/commercial-analysis/pkg/llm"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationResponse contains the turns of one conversation.
type ConversationResponse struct {
	// ConversationID is the backend correlation token.
	ConversationID string `json:"conversation_id"`
	// Turns in chronological order (oldest first)
	Turns []*llm.ConversationTurn `json:"turns"`
	Count int                     `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns totals across all recorded conversations.
func (s *Server) handleStats(c *fiber.Ctx) error {
	summaries, err := s.driver.Conversations(c.Context())
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list conversations"})
	}

	turns := 0
	for _, summary := range summaries {
		turns += summary.TurnCount
	}

	return c.JSON(map[string]any{
		"conversation_count": len(summaries),
		"turn_count":         turns,
	})
}

// handleListConversations returns a summary of every conversation, most
// recently active first.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	summaries, err := s.driver.Conversations(c.Context())
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list conversations"})
	}

	return c.JSON(map[string]any{
		"count":         len(summaries),
		"conversations": summaries,
	})
}

// handleGetConversation returns every turn of one conversation.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	turns, err := s.driver.ListByConversation(c.Context(), id)
	if err != nil {
		s.logger.Error("failed to list turns",
			"conversation_id", id,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list turns"})
	}
	if len(turns) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
	}

	return c.JSON(ConversationResponse{
		ConversationID: id,
		Turns:          turns,
		Count:          len(turns),
	})
}

// handleGetTurn returns a single turn by its ID.
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	turn, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "turn not found"})
		}
		s.logger.Error("failed to get turn",
			"id", id,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get turn"})
	}

	return c.JSON(turn)
}
