package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Prompt values mark which free-text reply a session is waiting for
const (
	PromptNone     = ""
	PromptToken    = "token"
	PromptUsername = "username"
)

const sessionTTL = 24 * time.Hour

// Session is the per-actor routing context. Every field is a hint: the
// router re-validates against the store before acting on any of it.
type Session struct {
	PendingPrompt  string         `json:"pending_prompt,omitempty"`
	ConversationID *uuid.UUID     `json:"conversation_id,omitempty"`
	Pages          map[string]int `json:"pages,omitempty"`
}

// Page returns the remembered page for a listing surface, defaulting to 1
func (s *Session) Page(surface string) int {
	if s.Pages == nil {
		return 1
	}
	if p, ok := s.Pages[surface]; ok && p >= 1 {
		return p
	}
	return 1
}

// SetPage remembers the page for a listing surface
func (s *Session) SetPage(surface string, page int) {
	if s.Pages == nil {
		s.Pages = map[string]int{}
	}
	s.Pages[surface] = page
}

// SessionService keeps per-actor sessions in Redis, keyed by the actor's
// external id
type SessionService struct {
	client *redis.Client
}

// NewSessionService creates a new session service
func NewSessionService(client *redis.Client) *SessionService {
	return &SessionService{client: client}
}

func sessionKey(externalID string) string {
	return "session:" + externalID
}

// Get loads the session for an actor, returning a fresh empty session when
// none is stored or no session backend is configured
func (s *SessionService) Get(ctx context.Context, externalID string) (*Session, error) {
	if s.client == nil {
		return &Session{}, nil
	}
	raw, err := s.client.Get(ctx, sessionKey(externalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Session{}, nil
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		// A corrupt hint is discarded, not surfaced
		return &Session{}, nil
	}
	return &session, nil
}

// Save stores the session for an actor
func (s *SessionService) Save(ctx context.Context, externalID string, session *Session) error {
	if s.client == nil {
		return nil
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(externalID), raw, sessionTTL).Err()
}

// Clear drops the session for an actor
func (s *SessionService) Clear(ctx context.Context, externalID string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, sessionKey(externalID)).Err()
}
