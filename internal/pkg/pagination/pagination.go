package pagination

import (
	"strconv"

	"github.com/docverse/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPage = 1
	// DefaultSize suits the document and message lists this API serves.
	DefaultSize = 20
	MaxSize     = 50
)

// Query holds validated pagination parameters.
type Query struct {
	Page int
	Size int
}

// Offset is the row offset of the query's first item.
func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// FromContext reads page and size from the request query, substituting
// defaults for missing or unparsable values and clamping size to MaxSize.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.Query("page"), DefaultPage)
	if page < 1 {
		page = DefaultPage
	}

	size := parseIntOr(c.Query("size"), DefaultSize)
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	return Query{Page: page, Size: size}
}

// Paginate runs the query with limit/offset applied and returns the page
// metadata. An empty result set skips the data query entirely.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	pag := response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		Size:        q.Size,
	}
	if total == 0 {
		*dest = []T{}
		return pag, nil
	}

	if err := db.Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	pag.TotalPage = int((total + int64(q.Size) - 1) / int64(q.Size))
	pag.HasNextPage = q.Page < pag.TotalPage
	return pag, nil
}

func parseIntOr(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
