package repo

import (
	"errors"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository handles one-time onboarding token data access
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create creates a new token
func (r *TokenRepository) Create(token *models.Token) error {
	return storeErr(r.db.Create(token).Error)
}

// GetBySecret gets a token by its secret. Returns (nil, nil) when the secret
// matches no token.
func (r *TokenRepository) GetBySecret(secret string) (*models.Token, error) {
	var token models.Token
	err := r.db.Where("secret = ?", secret).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return &token, nil
}

// RedeemForUser activates the token and grants the agent role to the user in
// one transaction. The guarded UPDATE makes redemption single-use: when two
// users race on the same secret exactly one activation commits and the other
// caller gets ErrTokenAlreadyActivated.
func (r *TokenRepository) RedeemForUser(tokenID, userID uuid.UUID) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Token{}).
			Where("id = ? AND is_activated = ?", tokenID, false).
			Update("is_activated", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrTokenAlreadyActivated
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("is_agent", true).Error
	})
	if errors.Is(err, models.ErrTokenAlreadyActivated) {
		return err
	}
	return storeErr(err)
}

// CountUnactivated counts tokens still waiting to be redeemed
func (r *TokenRepository) CountUnactivated() (int64, error) {
	var count int64
	err := r.db.Model(&models.Token{}).Where("is_activated = ?", false).Count(&count).Error
	return count, storeErr(err)
}

// ListUnactivated lists unredeemed tokens ordered by id for a stable
// paginated listing
func (r *TokenRepository) ListUnactivated(limit, offset int) ([]models.Token, error) {
	var tokens []models.Token
	err := r.db.Where("is_activated = ?", false).
		Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&tokens).Error
	return tokens, storeErr(err)
}
