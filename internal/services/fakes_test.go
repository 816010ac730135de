package services

import (
	"sync"
	"time"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
)

// In-memory stores backing the service tests. They mirror the guarded-update
// semantics of the real repositories: compare-and-set claims, single-use
// token redemption and closed-conversation append rejection.

type memConversationStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	items map[uuid.UUID]*models.Conversation
	names map[uuid.UUID]string
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{
		items: make(map[uuid.UUID]*models.Conversation),
		names: make(map[uuid.UUID]string),
	}
}

func (s *memConversationStore) Create(conversation *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conversation.ID == uuid.Nil {
		conversation.ID = uuid.New()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().Add(time.Duration(len(s.order)) * time.Millisecond)
	}
	stored := *conversation
	s.items[conversation.ID] = &stored
	s.order = append(s.order, conversation.ID)
	return nil
}

func (s *memConversationStore) GetByID(id uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (s *memConversationStore) Claim(conversationID uuid.UUID, expectedAgentID *uuid.UUID, agentID uuid.UUID, agentChannel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[conversationID]
	if !ok || stored.IsClosed {
		return models.ErrConcurrentModification
	}
	if expectedAgentID == nil {
		if stored.AgentID != nil {
			return models.ErrConcurrentModification
		}
	} else if stored.AgentID == nil || *stored.AgentID != *expectedAgentID {
		return models.ErrConcurrentModification
	}
	stored.AgentID = &agentID
	stored.AgentChannel = agentChannel
	if stored.AgentJoinedAt == nil {
		now := time.Now()
		stored.AgentJoinedAt = &now
	}
	return nil
}

func (s *memConversationStore) ClaimOverwrite(conversationID uuid.UUID, agentID uuid.UUID, agentChannel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[conversationID]
	if !ok {
		return models.ErrNotFound
	}
	stored.AgentID = &agentID
	stored.AgentChannel = agentChannel
	if stored.AgentJoinedAt == nil {
		now := time.Now()
		stored.AgentJoinedAt = &now
	}
	stored.IsClosed = false
	return nil
}

func (s *memConversationStore) Close(conversationID uuid.UUID, requireClaimed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[conversationID]
	if !ok {
		return models.ErrNotFound
	}
	if requireClaimed && stored.AgentID == nil {
		return models.ErrNotClaimed
	}
	stored.IsClosed = true
	return nil
}

func (s *memConversationStore) list(match func(*models.Conversation) bool, limit, offset int) []models.ConversationSummary {
	var all []models.ConversationSummary
	for _, id := range s.order {
		stored := s.items[id]
		if !match(stored) {
			continue
		}
		all = append(all, models.ConversationSummary{
			Conversation: *stored,
			CustomerName: s.names[stored.CustomerID],
		})
	}
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (s *memConversationStore) count(match func(*models.Conversation) bool) int64 {
	var n int64
	for _, stored := range s.items {
		if match(stored) {
			n++
		}
	}
	return n
}

func (s *memConversationStore) CountActive() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(func(c *models.Conversation) bool { return !c.IsClosed }), nil
}

func (s *memConversationStore) ListActive(limit, offset int) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(c *models.Conversation) bool { return !c.IsClosed }, limit, offset), nil
}

func (s *memConversationStore) CountClaimedBy(agentID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(func(c *models.Conversation) bool {
		return !c.IsClosed && c.AgentID != nil && *c.AgentID == agentID
	}), nil
}

func (s *memConversationStore) ListClaimedBy(agentID uuid.UUID, limit, offset int) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(c *models.Conversation) bool {
		return !c.IsClosed && c.AgentID != nil && *c.AgentID == agentID
	}, limit, offset), nil
}

func (s *memConversationStore) CountClosed() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(func(c *models.Conversation) bool { return c.IsClosed }), nil
}

func (s *memConversationStore) ListClosed(limit, offset int) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(c *models.Conversation) bool { return c.IsClosed }, limit, offset), nil
}

type memMessageStore struct {
	mu            sync.Mutex
	conversations *memConversationStore
	items         []models.Message
}

func newMemMessageStore(conversations *memConversationStore) *memMessageStore {
	return &memMessageStore{conversations: conversations}
}

func (s *memMessageStore) Append(message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations != nil {
		stored, ok := s.conversations.items[message.ConversationID]
		if !ok {
			return models.ErrNotFound
		}
		if stored.IsClosed {
			return models.ErrConversationClosed
		}
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().Add(time.Duration(len(s.items)) * time.Millisecond)
	}
	s.items = append(s.items, *message)
	return nil
}

func (s *memMessageStore) CountByConversation(conversationID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.items {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (s *memMessageStore) ListByConversation(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Message
	for _, m := range s.items {
		if m.ConversationID == conversationID {
			all = append(all, m)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type memUserStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	items map[uuid.UUID]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{items: make(map[uuid.UUID]*models.User)}
}

func (s *memUserStore) add(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *user
	s.items[user.ID] = &stored
	s.order = append(s.order, user.ID)
}

func (s *memUserStore) SetLastConversation(userID, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[userID]
	if !ok {
		return models.ErrNotFound
	}
	id := conversationID
	stored.LastConversationID = &id
	return nil
}

func (s *memUserStore) GrantAdmin(userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[userID]
	if !ok {
		return models.ErrNotFound
	}
	stored.IsAgent = true
	stored.IsAdmin = true
	return nil
}

func (s *memUserStore) CountAgents() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, stored := range s.items {
		if stored.IsAgent {
			n++
		}
	}
	return n, nil
}

func (s *memUserStore) ListAgents(limit, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.User
	for _, id := range s.order {
		if s.items[id].IsAgent {
			all = append(all, *s.items[id])
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type memTokenStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	items map[uuid.UUID]*models.Token
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{items: make(map[uuid.UUID]*models.Token)}
}

func (s *memTokenStore) Create(token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	stored := *token
	s.items[token.ID] = &stored
	s.order = append(s.order, token.ID)
	return nil
}

func (s *memTokenStore) GetBySecret(secret string) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.items {
		if stored.Secret == secret {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memTokenStore) RedeemForUser(tokenID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[tokenID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.IsActivated {
		return models.ErrTokenAlreadyActivated
	}
	stored.IsActivated = true
	return nil
}

func (s *memTokenStore) CountUnactivated() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, stored := range s.items {
		if !stored.IsActivated {
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) ListUnactivated(limit, offset int) ([]models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Token
	for _, id := range s.order {
		if !s.items[id].IsActivated {
			all = append(all, *s.items[id])
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type memFutureAgentStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.FutureAgent
}

func newMemFutureAgentStore() *memFutureAgentStore {
	return &memFutureAgentStore{items: make(map[uuid.UUID]*models.FutureAgent)}
}

func (s *memFutureAgentStore) Create(entry *models.FutureAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	stored := *entry
	s.items[entry.ID] = &stored
	return nil
}

func (s *memFutureAgentStore) GetByUsername(username string) (*models.FutureAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.items {
		if stored.Username == username {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memFutureAgentStore) RedeemForUser(entryID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[entryID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.IsAdded {
		return models.ErrConcurrentModification
	}
	stored.IsAdded = true
	return nil
}
