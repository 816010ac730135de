package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents anyone who ever contacted the system. Created on first
// interaction; role flags are granted later, rows are never deleted.
type User struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID         string     `gorm:"size:64;not null;uniqueIndex" json:"external_id"`
	DisplayName        string     `gorm:"size:255;not null" json:"display_name"`
	Username           string     `gorm:"size:64;index" json:"username,omitempty"`
	Language           string     `gorm:"size:12" json:"language"`
	IsAgent            bool       `gorm:"default:false" json:"is_agent"`
	IsAdmin            bool       `gorm:"default:false" json:"is_admin"`
	LastConversationID *uuid.UUID `gorm:"type:uuid;constraint:OnDelete:SET NULL" json:"last_conversation_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook to generate UUID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Token is a one-time agent-onboarding credential. At most one user gains
// the agent role per token.
type Token struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Secret      string    `gorm:"size:48;not null;uniqueIndex" json:"secret"`
	IsActivated bool      `gorm:"default:false" json:"is_activated"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for Token
func (Token) TableName() string {
	return "tokens"
}

// BeforeCreate hook to generate UUID if not set
func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// FutureAgent is an allow-list entry pre-approving a username for the agent
// role before that user ever contacts the system.
type FutureAgent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	IsAdded   bool      `gorm:"default:false" json:"is_added"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for FutureAgent
func (FutureAgent) TableName() string {
	return "future_agents"
}

// BeforeCreate hook to generate UUID if not set
func (f *FutureAgent) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Conversation brokers one customer/agent exchange. The customer is set at
// creation and never reassigned; the agent is set by a claim. Once closed a
// conversation stays closed, the customer starts a new one.
type Conversation struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"customer_id"`
	CustomerChannel string     `gorm:"size:255;not null" json:"customer_channel"`
	AgentID         *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:RESTRICT" json:"agent_id,omitempty"`
	AgentChannel    string     `gorm:"size:255" json:"agent_channel,omitempty"`
	AgentJoinedAt   *time.Time `json:"agent_joined_at,omitempty"`
	IsClosed        bool       `gorm:"default:false;index" json:"is_closed"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relations
	Customer *User     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Agent    *User     `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate hook to generate UUID if not set
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// State reports which lifecycle state the conversation is in
func (c *Conversation) State() ConversationState {
	switch {
	case c.IsClosed:
		return ConversationClosed
	case c.AgentID != nil:
		return ConversationClaimed
	default:
		return ConversationUnclaimed
	}
}

// ConversationState is the lifecycle state of a conversation
type ConversationState string

const (
	ConversationUnclaimed ConversationState = "unclaimed"
	ConversationClaimed   ConversationState = "claimed"
	ConversationClosed    ConversationState = "closed"
)

// Message is one immutable entry in a conversation transcript. Ordering key
// is created_at with id as tiebreak.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"conversation_id"`
	AuthorID       uuid.UUID `gorm:"type:uuid;not null;constraint:OnDelete:RESTRICT" json:"author_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time `json:"created_at"`

	// Relations
	Author       *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate hook to generate UUID if not set
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ConversationSummary is a conversation row enriched with the listing
// preview fields
type ConversationSummary struct {
	Conversation
	CustomerName string `json:"customer_name"`
	Preview      string `json:"preview"`
}
