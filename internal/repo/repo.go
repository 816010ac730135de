package repo

import (
	"errors"
	"fmt"

	"supportdesk/pkg/models"

	"gorm.io/gorm"
)

// storeErr maps a gorm error onto the business taxonomy: missing rows stay
// distinguishable from infrastructure failures so callers can retry the
// latter.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}
