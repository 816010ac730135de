package repo

import (
	"errors"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FutureAgentRepository handles allow-list data access
type FutureAgentRepository struct {
	db *gorm.DB
}

// NewFutureAgentRepository creates a new future agent repository
func NewFutureAgentRepository(db *gorm.DB) *FutureAgentRepository {
	return &FutureAgentRepository{db: db}
}

// Create creates a new allow-list entry
func (r *FutureAgentRepository) Create(entry *models.FutureAgent) error {
	return storeErr(r.db.Create(entry).Error)
}

// GetByUsername gets an entry by username. Returns (nil, nil) when absent.
func (r *FutureAgentRepository) GetByUsername(username string) (*models.FutureAgent, error) {
	var entry models.FutureAgent
	err := r.db.Where("username = ?", username).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return &entry, nil
}

// RedeemForUser flips the entry to added and grants the agent role in one
// transaction. The guarded UPDATE keeps redemption idempotent when the same
// username interacts twice concurrently: only one grant commits.
func (r *FutureAgentRepository) RedeemForUser(entryID, userID uuid.UUID) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FutureAgent{}).
			Where("id = ? AND is_added = ?", entryID, false).
			Update("is_added", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrConcurrentModification
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("is_agent", true).Error
	})
	if errors.Is(err, models.ErrConcurrentModification) {
		return err
	}
	return storeErr(err)
}
