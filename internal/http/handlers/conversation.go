package handlers

import (
	"net/http"
	"strconv"

	"supportdesk/internal/services"
	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ConversationHandler exposes the conversation listing surfaces to the
// inspection console
type ConversationHandler struct {
	listing *services.ListingService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(listing *services.ListingService) *ConversationHandler {
	return &ConversationHandler{listing: listing}
}

func requestedPage(c echo.Context) int {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// ListActive lists open conversations
func (h *ConversationHandler) ListActive(c echo.Context) error {
	result, err := h.listing.ListActiveConversations(requestedPage(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListJoined lists the open conversations the calling agent holds
func (h *ConversationHandler) ListJoined(c echo.Context) error {
	agentID, ok := c.Get("user_id").(uuid.UUID)
	if !ok {
		return httpError(c, models.ErrNotRegistered)
	}
	result, err := h.listing.ListConversationsClaimedBy(agentID, requestedPage(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListClosed lists closed conversations
func (h *ConversationHandler) ListClosed(c echo.Context) error {
	result, err := h.listing.ListClosedConversations(requestedPage(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Transcript lists a conversation transcript page
func (h *ConversationHandler) Transcript(c echo.Context) error {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpError(c, models.ErrValidation)
	}
	result, err := h.listing.ListTranscript(conversationID, requestedPage(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
