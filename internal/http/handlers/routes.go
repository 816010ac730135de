package handlers

import (
	"supportdesk/internal/app"
	"supportdesk/internal/http/middleware"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	hub := NewConsoleHub()

	// Transport webhook, the router entry point
	eventHandler := NewEventHandler(
		services.UserRepo,
		services.Authorizer,
		services.ConversationService,
		services.OnboardingService,
		services.ListingService,
		services.SessionService,
		services.RelayPublisher,
		hub,
		services.Shutdown,
	)
	api.POST("/events", eventHandler.Handle)

	// Console auth (no authentication required)
	authHandler := NewAuthHandler(services.AuthService)
	api.POST("/auth/login", authHandler.Login)

	// Console websocket (authenticates via query parameter)
	wsHandler := NewWebSocketHandler(hub, services.AuthService)
	api.GET("/ws", wsHandler.HandleWebSocket)

	// Protected inspection surfaces
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(services.AuthService))

	conversationHandler := NewConversationHandler(services.ListingService)
	agentScope := protected.Group("/conversations")
	agentScope.Use(middleware.RequireAgent(services.RoleGate))
	agentScope.GET("/active", conversationHandler.ListActive)
	agentScope.GET("/joined", conversationHandler.ListJoined)
	agentScope.GET("/closed", conversationHandler.ListClosed)
	agentScope.GET("/:id/transcript", conversationHandler.Transcript)

	onboardingHandler := NewOnboardingHandler(services.OnboardingService, services.ListingService)
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/tokens", onboardingHandler.GenerateToken)
	admin.GET("/tokens", onboardingHandler.ListTokens)
	admin.POST("/agents", onboardingHandler.AddFutureAgent)
	admin.GET("/agents", onboardingHandler.ListAgents)
}
