package repo

import (
	"errors"
	"time"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository handles conversation data access
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation
func (r *ConversationRepository) Create(conversation *models.Conversation) error {
	return storeErr(r.db.Create(conversation).Error)
}

// GetByID gets a conversation by ID. Returns (nil, nil) when absent.
func (r *ConversationRepository) GetByID(id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.Preload("Customer").Preload("Agent").
		Where("id = ?", id).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return &conversation, nil
}

// Claim attaches an agent with a compare-and-set on the current agent.
// expectedAgentID nil means the conversation must still be unclaimed. The
// join timestamp is stamped only when previously unset, so a re-claim by the
// holding agent refreshes the channel without touching it. A lost race
// surfaces as ErrConcurrentModification; the caller re-reads to tell a
// conflict from a closed or missing conversation.
func (r *ConversationRepository) Claim(conversationID uuid.UUID, expectedAgentID *uuid.UUID, agentID uuid.UUID, agentChannel string) error {
	query := r.db.Model(&models.Conversation{}).
		Where("id = ? AND is_closed = ?", conversationID, false)
	if expectedAgentID == nil {
		query = query.Where("agent_id IS NULL")
	} else {
		query = query.Where("agent_id = ?", *expectedAgentID)
	}

	res := query.Updates(map[string]interface{}{
		"agent_id":        agentID,
		"agent_channel":   agentChannel,
		"agent_joined_at": gorm.Expr("COALESCE(agent_joined_at, ?)", time.Now()),
	})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrConcurrentModification
	}
	return nil
}

// ClaimOverwrite attaches an agent unconditionally, displacing any current
// holder and reopening a closed conversation. This is the legacy
// last-claimer-wins behavior kept behind the claim policy.
func (r *ConversationRepository) ClaimOverwrite(conversationID uuid.UUID, agentID uuid.UUID, agentChannel string) error {
	res := r.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"agent_id":        agentID,
			"agent_channel":   agentChannel,
			"agent_joined_at": gorm.Expr("COALESCE(agent_joined_at, ?)", time.Now()),
			"is_closed":       false,
		})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Close marks a conversation closed. With requireClaimed the update only
// matches conversations an agent holds, so closing an unclaimed one reports
// ErrNotClaimed. Closing an already-closed conversation is a no-op.
func (r *ConversationRepository) Close(conversationID uuid.UUID, requireClaimed bool) error {
	query := r.db.Model(&models.Conversation{}).Where("id = ?", conversationID)
	if requireClaimed {
		query = query.Where("agent_id IS NOT NULL")
	}
	res := query.Update("is_closed", true)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := r.GetByID(conversationID)
		if err != nil {
			return err
		}
		if existing == nil {
			return models.ErrNotFound
		}
		if existing.AgentID == nil && requireClaimed {
			return models.ErrNotClaimed
		}
	}
	return nil
}

// CountActive counts conversations not yet closed
func (r *ConversationRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Conversation{}).Where("is_closed = ?", false).Count(&count).Error
	return count, storeErr(err)
}

// ListActive lists open conversations ordered by creation time
func (r *ConversationRepository) ListActive(limit, offset int) ([]models.ConversationSummary, error) {
	return r.listSummaries("c.is_closed = false", nil, limit, offset)
}

// CountClaimedBy counts open conversations held by an agent
func (r *ConversationRepository) CountClaimedBy(agentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Conversation{}).
		Where("is_closed = ? AND agent_id = ?", false, agentID).
		Count(&count).Error
	return count, storeErr(err)
}

// ListClaimedBy lists open conversations held by an agent
func (r *ConversationRepository) ListClaimedBy(agentID uuid.UUID, limit, offset int) ([]models.ConversationSummary, error) {
	return r.listSummaries("c.is_closed = false AND c.agent_id = ?", []interface{}{agentID}, limit, offset)
}

// CountClosed counts closed conversations
func (r *ConversationRepository) CountClosed() (int64, error) {
	var count int64
	err := r.db.Model(&models.Conversation{}).Where("is_closed = ?", true).Count(&count).Error
	return count, storeErr(err)
}

// ListClosed lists closed conversations ordered by creation time
func (r *ConversationRepository) ListClosed(limit, offset int) ([]models.ConversationSummary, error) {
	return r.listSummaries("c.is_closed = true", nil, limit, offset)
}

func (r *ConversationRepository) listSummaries(condition string, args []interface{}, limit, offset int) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	query := "SELECT c.*, u.display_name AS customer_name, " +
		"COALESCE((SELECT m.body FROM messages m WHERE m.conversation_id = c.id ORDER BY m.created_at ASC, m.id ASC LIMIT 1), '') AS preview " +
		"FROM conversations c JOIN users u ON u.id = c.customer_id " +
		"WHERE " + condition + " ORDER BY c.created_at ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	err := r.db.Raw(query, args...).Scan(&summaries).Error
	return summaries, storeErr(err)
}

// MessageRepository handles message data access
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a message under a row lock on its conversation. The lock
// serializes appends per conversation so stored order matches the order the
// state machine accepted them, and the closed check inside the same
// transaction keeps a close from racing an append.
func (r *MessageRepository) Append(message *models.Message) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", message.ConversationID).
			First(&conversation).Error; err != nil {
			return err
		}
		if conversation.IsClosed {
			return models.ErrConversationClosed
		}
		return tx.Create(message).Error
	})
	if errors.Is(err, models.ErrConversationClosed) {
		return err
	}
	return storeErr(err)
}

// CountByConversation counts messages in a conversation
func (r *MessageRepository) CountByConversation(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, storeErr(err)
}

// ListByConversation lists transcript messages in chronological order with
// id as tiebreak, so page boundaries never duplicate or skip a message
func (r *MessageRepository) ListByConversation(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Author").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, storeErr(err)
}
