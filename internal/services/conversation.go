package services

import (
	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConversationStore is the conversation persistence the state machine needs
type ConversationStore interface {
	Create(conversation *models.Conversation) error
	GetByID(id uuid.UUID) (*models.Conversation, error)
	Claim(conversationID uuid.UUID, expectedAgentID *uuid.UUID, agentID uuid.UUID, agentChannel string) error
	ClaimOverwrite(conversationID uuid.UUID, agentID uuid.UUID, agentChannel string) error
	Close(conversationID uuid.UUID, requireClaimed bool) error
}

// MessageStore is the transcript persistence the state machine needs
type MessageStore interface {
	Append(message *models.Message) error
}

// LastConversationStore records the per-customer last-conversation hint
type LastConversationStore interface {
	SetLastConversation(userID, conversationID uuid.UUID) error
}

// RelaySignal tells the transport layer a message must be forwarded to one
// side of a conversation. Forwarding itself happens outside the core.
type RelaySignal struct {
	Target           models.RelayTarget `json:"target"`
	Channel          string             `json:"channel"`
	ConversationID   uuid.UUID          `json:"conversation_id"`
	AuthorName       string             `json:"author_name"`
	AuthorExternalID string             `json:"author_external_id"`
	Body             string             `json:"body"`
}

// ClaimResult reports the conversation after a claim and whether this claim
// was the first agent attachment, which the router uses to notify the
// customer exactly once.
type ClaimResult struct {
	Conversation *models.Conversation
	FirstJoin    bool
}

// ConversationService drives the conversation lifecycle:
// unclaimed -> claimed -> closed.
type ConversationService struct {
	conversations       ConversationStore
	messages            MessageStore
	users               LastConversationStore
	claimPolicy         models.ClaimPolicy
	allowCloseUnclaimed bool
}

// NewConversationService creates a new conversation service
func NewConversationService(conversations ConversationStore, messages MessageStore, users LastConversationStore, claimPolicy models.ClaimPolicy, allowCloseUnclaimed bool) *ConversationService {
	if claimPolicy == "" {
		claimPolicy = models.ClaimFirstWins
	}
	return &ConversationService{
		conversations:       conversations,
		messages:            messages,
		users:               users,
		claimPolicy:         claimPolicy,
		allowCloseUnclaimed: allowCloseUnclaimed,
	}
}

// Get fetches a conversation, (nil, nil) when absent. Routers use it to
// re-validate session hints before acting on them.
func (s *ConversationService) Get(conversationID uuid.UUID) (*models.Conversation, error) {
	return s.conversations.GetByID(conversationID)
}

// Start opens a new unclaimed conversation for a customer. Concurrent starts
// from the same customer are not merged, each produces its own conversation.
func (s *ConversationService) Start(customer *models.User, customerChannel string) (*models.Conversation, error) {
	if customer == nil || customerChannel == "" {
		return nil, models.ErrValidation
	}
	conversation := &models.Conversation{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		CustomerChannel: customerChannel,
	}
	if err := s.conversations.Create(conversation); err != nil {
		return nil, err
	}
	log.Info().
		Str("conversation_id", conversation.ID.String()).
		Str("customer", customer.ExternalID).
		Msg("conversation started")
	return conversation, nil
}

// AppendCustomerMessage appends a customer message and, when an agent holds
// the conversation, returns the relay-signal targeting the agent channel.
func (s *ConversationService) AppendCustomerMessage(conversationID uuid.UUID, author *models.User, body string) (*models.Message, *RelaySignal, error) {
	if author == nil || body == "" {
		return nil, nil, models.ErrValidation
	}
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conversation == nil {
		return nil, nil, models.ErrNotFound
	}
	if conversation.IsClosed {
		return nil, nil, models.ErrConversationClosed
	}

	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		AuthorID:       author.ID,
		Body:           body,
	}
	if err := s.messages.Append(message); err != nil {
		return nil, nil, err
	}

	// Hint only, never authoritative; losing it costs nothing
	if err := s.users.SetLastConversation(author.ID, conversation.ID); err != nil {
		log.Warn().Err(err).Str("user_id", author.ID.String()).Msg("failed to record last conversation")
	}

	var signal *RelaySignal
	if conversation.AgentChannel != "" {
		signal = &RelaySignal{
			Target:           models.RelayToAgent,
			Channel:          conversation.AgentChannel,
			ConversationID:   conversation.ID,
			AuthorName:       author.DisplayName,
			AuthorExternalID: author.ExternalID,
			Body:             body,
		}
	}
	return message, signal, nil
}

// Claim attaches an agent to a conversation. Under the default
// first-claimer-wins policy a conversation held by a different agent is a
// conflict; the legacy last-claimer-wins policy silently displaces the
// holder. Re-claiming by the holding agent refreshes the channel and leaves
// the join timestamp untouched.
func (s *ConversationService) Claim(conversationID uuid.UUID, agent *models.User, agentChannel string) (*ClaimResult, error) {
	if agent == nil || agentChannel == "" {
		return nil, models.ErrValidation
	}
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, models.ErrNotFound
	}
	firstJoin := conversation.AgentID == nil

	if s.claimPolicy == models.ClaimLastWins {
		if err := s.conversations.ClaimOverwrite(conversationID, agent.ID, agentChannel); err != nil {
			return nil, err
		}
		return s.claimResult(conversationID, firstJoin)
	}

	if conversation.IsClosed {
		return nil, models.ErrConversationClosed
	}
	var expected *uuid.UUID
	if conversation.AgentID != nil {
		if *conversation.AgentID != agent.ID {
			return nil, models.ErrConcurrentModification
		}
		expected = conversation.AgentID
	}
	if err := s.conversations.Claim(conversationID, expected, agent.ID, agentChannel); err != nil {
		// The compare-and-set lost; re-read so a close racing the claim
		// reports as closed, not as a conflict.
		fresh, readErr := s.conversations.GetByID(conversationID)
		if readErr == nil && fresh != nil && fresh.IsClosed {
			return nil, models.ErrConversationClosed
		}
		log.Info().
			Str("conversation_id", conversationID.String()).
			Str("agent", agent.ExternalID).
			Msg("claim lost to concurrent agent")
		return nil, err
	}
	return s.claimResult(conversationID, firstJoin)
}

func (s *ConversationService) claimResult(conversationID uuid.UUID, firstJoin bool) (*ClaimResult, error) {
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, models.ErrNotFound
	}
	return &ClaimResult{Conversation: conversation, FirstJoin: firstJoin}, nil
}

// AppendAgentMessage appends an agent message and returns the relay-signal
// targeting the customer channel.
func (s *ConversationService) AppendAgentMessage(conversationID uuid.UUID, author *models.User, body string) (*models.Message, *RelaySignal, error) {
	if author == nil || body == "" {
		return nil, nil, models.ErrValidation
	}
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conversation == nil {
		return nil, nil, models.ErrNotFound
	}
	if conversation.IsClosed {
		return nil, nil, models.ErrConversationClosed
	}

	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		AuthorID:       author.ID,
		Body:           body,
	}
	if err := s.messages.Append(message); err != nil {
		return nil, nil, err
	}

	signal := &RelaySignal{
		Target:           models.RelayToCustomer,
		Channel:          conversation.CustomerChannel,
		ConversationID:   conversation.ID,
		AuthorName:       author.DisplayName,
		AuthorExternalID: author.ExternalID,
		Body:             body,
	}
	return message, signal, nil
}

// Close marks a conversation closed. Closing is terminal: later appends fail
// with ErrConversationClosed and the customer starts a new conversation.
func (s *ConversationService) Close(conversationID uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, models.ErrNotFound
	}
	if !s.allowCloseUnclaimed && conversation.AgentID == nil {
		return nil, models.ErrNotClaimed
	}
	if err := s.conversations.Close(conversationID, !s.allowCloseUnclaimed); err != nil {
		return nil, err
	}
	conversation, err = s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, models.ErrNotFound
	}
	log.Info().Str("conversation_id", conversationID.String()).Msg("conversation closed")
	return conversation, nil
}
