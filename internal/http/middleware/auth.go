package middleware

import (
	"net/http"
	"strings"

	"supportdesk/internal/auth"
	"supportdesk/pkg/models"

	"github.com/labstack/echo/v4"
)

// JWTAuth middleware validates console access tokens
func JWTAuth(authService *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set("claims", claims)
			c.Set("user_id", claims.UserID)
			c.Set("is_agent", claims.IsAgent)
			c.Set("is_admin", claims.IsAdmin)

			return next(c)
		}
	}
}

// RequireAdmin middleware ensures the caller holds the admin role
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isAdmin, ok := c.Get("is_admin").(bool); !ok || !isAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireAgent middleware gates agent surfaces according to the configured
// role policy
func RequireAgent(policy models.RoleGatePolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			isAgent, _ := c.Get("is_agent").(bool)
			isAdmin, _ := c.Get("is_admin").(bool)

			allowed := isAgent || isAdmin
			if policy == models.RoleGateRequireBoth {
				allowed = isAgent && isAdmin
			}
			if !allowed {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
