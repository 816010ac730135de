package repo

import (
	"errors"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository handles user data access
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByExternalID gets a user by the chat-platform identifier. Returns
// (nil, nil) when no such user exists.
func (r *UserRepository) GetByExternalID(externalID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return &user, nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &user, nil
}

// GetByUsername gets a user by username. Returns (nil, nil) when absent.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	return storeErr(r.db.Create(user).Error)
}

// Update updates a user
func (r *UserRepository) Update(user *models.User) error {
	return storeErr(r.db.Save(user).Error)
}

// SetLastConversation updates the last-conversation hint for a customer
func (r *UserRepository) SetLastConversation(userID, conversationID uuid.UUID) error {
	return storeErr(r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_conversation_id", conversationID).Error)
}

// GrantAgent sets the agent flag on a user
func (r *UserRepository) GrantAgent(userID uuid.UUID) error {
	return storeErr(r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_agent", true).Error)
}

// GrantAdmin sets both role flags on a user
func (r *UserRepository) GrantAdmin(userID uuid.UUID) error {
	return storeErr(r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"is_agent": true, "is_admin": true}).Error)
}

// CountAgents counts users holding the agent role
func (r *UserRepository) CountAgents() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("is_agent = ?", true).Count(&count).Error
	return count, storeErr(err)
}

// ListAgents lists agents ordered by id for a stable paginated listing
func (r *UserRepository) ListAgents(limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("is_agent = ?", true).
		Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	return users, storeErr(err)
}
