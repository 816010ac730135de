package handlers

import (
	"net/http"

	"supportdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// OnboardingHandler exposes the admin onboarding surfaces: token minting,
// token listing, the agent allow-list and the agent listing
type OnboardingHandler struct {
	onboarding *services.OnboardingService
	listing    *services.ListingService
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(onboarding *services.OnboardingService, listing *services.ListingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, listing: listing}
}

// GenerateToken mints a new one-time onboarding token
func (h *OnboardingHandler) GenerateToken(c echo.Context) error {
	token, err := h.onboarding.GenerateToken()
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, token)
}

// ListTokens lists tokens still waiting to be redeemed
func (h *OnboardingHandler) ListTokens(c echo.Context) error {
	result, err := h.listing.ListTokens(requestedPage(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// AddFutureAgentRequest represents an allow-list addition
type AddFutureAgentRequest struct {
	Username string `json:"username" validate:"required"`
}

// AddFutureAgent pre-approves a username for the agent role
func (h *OnboardingHandler) AddFutureAgent(c echo.Context) error {
	var req AddFutureAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	entry, err := h.onboarding.AddFutureAgent(req.Username)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// ListAgents lists users holding the agent role
func (h *OnboardingHandler) ListAgents(c echo.Context) error {
	result, err := h.listing.ListAgents(requestedPage(c))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
