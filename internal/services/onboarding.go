package services

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenSecretLength = 48
	minUsernameLength = 5
)

// TokenStore is the one-time token persistence onboarding needs
type TokenStore interface {
	Create(token *models.Token) error
	GetBySecret(secret string) (*models.Token, error)
	RedeemForUser(tokenID, userID uuid.UUID) error
}

// FutureAgentStore is the allow-list persistence onboarding needs
type FutureAgentStore interface {
	Create(entry *models.FutureAgent) error
	GetByUsername(username string) (*models.FutureAgent, error)
	RedeemForUser(entryID, userID uuid.UUID) error
}

// RoleStore grants roles during onboarding
type RoleStore interface {
	GrantAdmin(userID uuid.UUID) error
}

// OnboardingService grants the agent role through one-time tokens and the
// username allow-list, and the admin role through the bootstrap secret.
type OnboardingService struct {
	tokens          TokenStore
	futureAgents    FutureAgentStore
	users           RoleStore
	bootstrapBcrypt string
}

// NewOnboardingService creates a new onboarding service. bootstrapBcrypt is
// the bcrypt hash of the admin bootstrap secret, empty to disable bootstrap.
func NewOnboardingService(tokens TokenStore, futureAgents FutureAgentStore, users RoleStore, bootstrapBcrypt string) *OnboardingService {
	return &OnboardingService{
		tokens:          tokens,
		futureAgents:    futureAgents,
		users:           users,
		bootstrapBcrypt: bootstrapBcrypt,
	}
}

// GenerateToken mints a new one-time onboarding token for an admin
func (s *OnboardingService) GenerateToken() (*models.Token, error) {
	buf := make([]byte, tokenSecretLength/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	token := &models.Token{
		ID:     uuid.New(),
		Secret: hex.EncodeToString(buf),
	}
	if err := s.tokens.Create(token); err != nil {
		return nil, err
	}
	log.Info().Str("token_id", token.ID.String()).Msg("onboarding token created")
	return token, nil
}

// RedeemToken grants the agent role to user for a valid unactivated secret.
// Activation and grant commit together; under a two-user race on the same
// secret exactly one redemption succeeds.
func (s *OnboardingService) RedeemToken(user *models.User, secret string) error {
	if user == nil {
		return models.ErrNotRegistered
	}
	if secret == "" {
		return models.ErrValidation
	}
	token, err := s.tokens.GetBySecret(secret)
	if err != nil {
		return err
	}
	if token == nil {
		return models.ErrTokenInvalid
	}
	if token.IsActivated {
		return models.ErrTokenAlreadyActivated
	}
	if err := s.tokens.RedeemForUser(token.ID, user.ID); err != nil {
		return err
	}
	user.IsAgent = true
	log.Info().Str("user_id", user.ID.String()).Msg("agent role granted via token")
	return nil
}

// RedeemByAllowlist grants the agent role when the user's username has a
// pending allow-list entry. Double redemption from the same username grants
// exactly once; the loser of the race still ends up an agent, so the
// conflict is reported as success.
func (s *OnboardingService) RedeemByAllowlist(user *models.User) error {
	if user == nil {
		return models.ErrNotRegistered
	}
	if user.Username == "" {
		return models.ErrNotAllowlisted
	}
	entry, err := s.futureAgents.GetByUsername(user.Username)
	if err != nil {
		return err
	}
	if entry == nil || entry.IsAdded {
		return models.ErrNotAllowlisted
	}
	if err := s.futureAgents.RedeemForUser(entry.ID, user.ID); err != nil {
		if err == models.ErrConcurrentModification {
			return models.ErrNotAllowlisted
		}
		return err
	}
	user.IsAgent = true
	log.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("agent role granted via allow-list")
	return nil
}

// AddFutureAgent pre-approves a username for the agent role. The handle must
// be non-empty, free of whitespace and at least five characters; a leading @
// is stripped.
func (s *OnboardingService) AddFutureAgent(username string) (*models.FutureAgent, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if len(username) < minUsernameLength || strings.ContainsAny(username, " \t\n") {
		return nil, models.ErrValidation
	}
	existing, err := s.futureAgents.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrAlreadyPending
	}
	entry := &models.FutureAgent{
		ID:       uuid.New(),
		Username: username,
	}
	if err := s.futureAgents.Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RedeemBootstrapSecret grants admin and agent roles when the supplied
// secret matches the configured bootstrap hash. Disabled when no hash is
// configured.
func (s *OnboardingService) RedeemBootstrapSecret(user *models.User, secret string) (bool, error) {
	if user == nil || s.bootstrapBcrypt == "" {
		return false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(s.bootstrapBcrypt), []byte(secret)) != nil {
		return false, nil
	}
	if err := s.users.GrantAdmin(user.ID); err != nil {
		return false, err
	}
	user.IsAgent = true
	user.IsAdmin = true
	log.Info().Str("user_id", user.ID.String()).Msg("admin role granted via bootstrap secret")
	return true, nil
}
