// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the number of rows returned per page by list endpoints.
const PageSize = 50

// MaxPage bounds the page parameter so the skip stays reasonable.
const MaxPage = 1000

// LimitPlusOne returns PageSize+1 for look-ahead paging: fetch one extra
// row to learn whether another page exists.
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParsePage reads the 1-based "page" query parameter.
// Missing, malformed or out-of-range values yield 1.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxPage {
		return 1
	}
	return n
}

// Offset returns the number of rows to skip to reach page.
func Offset(page int) int64 {
	if page < 1 {
		page = 1
	}
	return int64(page-1) * PageSize
}

// TrimPage cuts a look-ahead fetch back to PageSize and reports whether
// the extra row was present.
func TrimPage[T any](rows *[]T) (hasMore bool) {
	if len(*rows) > PageSize {
		*rows = (*rows)[:PageSize]
		return true
	}
	return false
}

// TotalPages returns how many pages total rows span. An empty list is one page.
func TotalPages(total int64) int {
	if total <= 0 {
		return 1
	}
	return int((total + PageSize - 1) / PageSize)
}
