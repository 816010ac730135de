package models

// PaginationResult represents paginated results
type PaginationResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// GetAllModels returns every model registered for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&User{},
		&Token{},
		&FutureAgent{},
		&Conversation{},
		&Message{},
	}
}
