package services

import (
	"supportdesk/pkg/models"
	"supportdesk/pkg/pagination"

	"github.com/google/uuid"
)

// ConversationListStore is the filtered conversation queries listing needs
type ConversationListStore interface {
	CountActive() (int64, error)
	ListActive(limit, offset int) ([]models.ConversationSummary, error)
	CountClaimedBy(agentID uuid.UUID) (int64, error)
	ListClaimedBy(agentID uuid.UUID, limit, offset int) ([]models.ConversationSummary, error)
	CountClosed() (int64, error)
	ListClosed(limit, offset int) ([]models.ConversationSummary, error)
}

// TranscriptStore is the ordered message queries listing needs
type TranscriptStore interface {
	CountByConversation(conversationID uuid.UUID) (int64, error)
	ListByConversation(conversationID uuid.UUID, limit, offset int) ([]models.Message, error)
}

// TokenListStore is the token queries listing needs
type TokenListStore interface {
	CountUnactivated() (int64, error)
	ListUnactivated(limit, offset int) ([]models.Token, error)
}

// AgentListStore is the agent queries listing needs
type AgentListStore interface {
	CountAgents() (int64, error)
	ListAgents(limit, offset int) ([]models.User, error)
}

// ListingService computes every paginated listing surface with the shared
// windowing arithmetic, so repeated requests for the same page are stable.
type ListingService struct {
	conversations ConversationListStore
	messages      TranscriptStore
	tokens        TokenListStore
	agents        AgentListStore
	pageSize      int
}

// NewListingService creates a new listing service
func NewListingService(conversations ConversationListStore, messages TranscriptStore, tokens TokenListStore, agents AgentListStore, pageSize int) *ListingService {
	if pageSize < 1 {
		pageSize = pagination.DefaultPageSize
	}
	return &ListingService{
		conversations: conversations,
		messages:      messages,
		tokens:        tokens,
		agents:        agents,
		pageSize:      pageSize,
	}
}

func paginate[T any](total int64, pageSize, requestedPage int, list func(limit, offset int) ([]T, error)) (models.PaginationResult[T], error) {
	page, totalPages := pagination.Paginate(total, pageSize, requestedPage)
	result := models.PaginationResult[T]{
		Data:       []T{},
		Total:      total,
		Page:       page,
		PerPage:    pageSize,
		TotalPages: totalPages,
	}
	if total == 0 {
		return result, nil
	}
	offset, limit := pagination.Window(page, pageSize)
	items, err := list(limit, offset)
	if err != nil {
		return models.PaginationResult[T]{}, err
	}
	result.Data = items
	return result, nil
}

// ListActiveConversations lists open conversations, oldest first
func (s *ListingService) ListActiveConversations(requestedPage int) (models.PaginationResult[models.ConversationSummary], error) {
	total, err := s.conversations.CountActive()
	if err != nil {
		return models.PaginationResult[models.ConversationSummary]{}, err
	}
	return paginate(total, s.pageSize, requestedPage, s.conversations.ListActive)
}

// ListConversationsClaimedBy lists the open conversations an agent holds
func (s *ListingService) ListConversationsClaimedBy(agentID uuid.UUID, requestedPage int) (models.PaginationResult[models.ConversationSummary], error) {
	total, err := s.conversations.CountClaimedBy(agentID)
	if err != nil {
		return models.PaginationResult[models.ConversationSummary]{}, err
	}
	return paginate(total, s.pageSize, requestedPage, func(limit, offset int) ([]models.ConversationSummary, error) {
		return s.conversations.ListClaimedBy(agentID, limit, offset)
	})
}

// ListClosedConversations lists closed conversations, oldest first
func (s *ListingService) ListClosedConversations(requestedPage int) (models.PaginationResult[models.ConversationSummary], error) {
	total, err := s.conversations.CountClosed()
	if err != nil {
		return models.PaginationResult[models.ConversationSummary]{}, err
	}
	return paginate(total, s.pageSize, requestedPage, s.conversations.ListClosed)
}

// ListTokens lists unredeemed onboarding tokens
func (s *ListingService) ListTokens(requestedPage int) (models.PaginationResult[models.Token], error) {
	total, err := s.tokens.CountUnactivated()
	if err != nil {
		return models.PaginationResult[models.Token]{}, err
	}
	return paginate(total, s.pageSize, requestedPage, s.tokens.ListUnactivated)
}

// ListAgents lists users holding the agent role
func (s *ListingService) ListAgents(requestedPage int) (models.PaginationResult[models.User], error) {
	total, err := s.agents.CountAgents()
	if err != nil {
		return models.PaginationResult[models.User]{}, err
	}
	return paginate(total, s.pageSize, requestedPage, s.agents.ListAgents)
}

// ListTranscript lists a conversation transcript in chronological order
func (s *ListingService) ListTranscript(conversationID uuid.UUID, requestedPage int) (models.PaginationResult[models.Message], error) {
	total, err := s.messages.CountByConversation(conversationID)
	if err != nil {
		return models.PaginationResult[models.Message]{}, err
	}
	return paginate(total, s.pageSize, requestedPage, func(limit, offset int) ([]models.Message, error) {
		return s.messages.ListByConversation(conversationID, limit, offset)
	})
}
