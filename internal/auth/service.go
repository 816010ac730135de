package auth

import (
	"errors"
	"os"
	"time"

	"supportdesk/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository interface for user data access
type UserRepository interface {
	GetByExternalID(externalID string) (*models.User, error)
	GetByID(id uuid.UUID) (*models.User, error)
}

// Service issues and validates access tokens for the inspection console
type Service struct {
	userRepo        UserRepository
	bootstrapBcrypt string
}

// NewService creates a new auth service. bootstrapBcrypt is the bcrypt hash
// of the admin bootstrap secret.
func NewService(userRepo UserRepository, bootstrapBcrypt string) *Service {
	return &Service{
		userRepo:        userRepo,
		bootstrapBcrypt: bootstrapBcrypt,
	}
}

// LoginRequest represents console login request data
type LoginRequest struct {
	ExternalID string `json:"external_id" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
}

// LoginResponse represents console login response data
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        models.User `json:"user"`
	ExpiresIn   int64       `json:"expires_in"`
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	IsAgent bool      `json:"is_agent"`
	IsAdmin bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// Login authenticates an admin against the bootstrap secret and returns an
// access token for the inspection console
func (s *Service) Login(req LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByExternalID(req.ExternalID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsAdmin {
		return nil, errors.New("invalid credentials")
	}
	if s.bootstrapBcrypt == "" ||
		bcrypt.CompareHashAndPassword([]byte(s.bootstrapBcrypt), []byte(req.Secret)) != nil {
		return nil, errors.New("invalid credentials")
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	accessDuration, err := time.ParseDuration(getEnvOrDefault("JWT_ACCESS_DURATION", "15m"))
	if err != nil {
		accessDuration = 15 * time.Minute
	}

	return &LoginResponse{
		AccessToken: accessToken,
		User:        *user,
		ExpiresIn:   int64(accessDuration.Seconds()),
	}, nil
}

// ValidateToken validates and parses a JWT token
func (s *Service) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (s *Service) generateAccessToken(user *models.User) (string, error) {
	duration, err := time.ParseDuration(getEnvOrDefault("JWT_ACCESS_DURATION", "15m"))
	if err != nil {
		duration = 15 * time.Minute
	}

	claims := TokenClaims{
		UserID:  user.ID,
		IsAgent: user.IsAgent,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "supportdesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
