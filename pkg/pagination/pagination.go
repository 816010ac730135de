// Package pagination implements the windowing arithmetic shared by every
// paginated listing surface.
package pagination

// DefaultPageSize is the page size used by listing surfaces unless a caller
// overrides it.
const DefaultPageSize = 5

// Paginate clamps requestedPage into the valid page range for totalCount
// items at pageSize items per page. TotalPages is never below 1, even for an
// empty result set; callers special-case the empty message themselves.
// Requesting past either end sticks to the boundary, there is no wraparound.
func Paginate(totalCount int64, pageSize, requestedPage int) (page, totalPages int) {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages = int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	page = requestedPage
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages
}

// Window converts a clamped page into the offset/limit pair for slicing the
// ordered result set.
func Window(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return (page - 1) * pageSize, pageSize
}
