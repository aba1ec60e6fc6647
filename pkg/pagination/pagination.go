package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1

	maxSearchLen = 100
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
	Search string
}

// Parse reads page, limit and search from the query string, clamping out-of-range values
func Parse(c *gin.Context) Params {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	search := strings.TrimSpace(c.Query("search"))
	if len(search) > maxSearchLen {
		search = search[:maxSearchLen]
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
		Search: search,
	}
}

// TotalPages is the number of pages needed to show total rows
func (p Params) TotalPages(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total + int64(p.Limit) - 1) / int64(p.Limit)
}

// Body builds the list payload shared by every paginated endpoint, with items under key.
func (p Params) Body(key string, items interface{}, total int64) gin.H {
	return gin.H{
		key:           items,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
		"total_pages": p.TotalPages(total),
	}
}
