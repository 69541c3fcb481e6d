// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 200

// Page is an offset window over a list. Start is the human-friendly
// 1-based index of the first row.
type Page struct {
	Start int
	Size  int
}

// Default returns the first page at PageSize.
func Default() Page { return Page{Start: 1, Size: PageSize} }

// Normalize clamps Start to ≥1 and Size to [1, MaxPageSize], using
// PageSize when Size is unset.
func (p Page) Normalize() Page {
	if p.Start < 1 {
		p.Start = 1
	}
	if p.Size <= 0 {
		p.Size = PageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Skip is the number of rows before the page.
func (p Page) Skip() int64 { return int64(p.Normalize().Start - 1) }

// LimitPlusOne returns Size+1 for look-ahead pagination
// (fetch one extra document to detect hasNext).
func (p Page) LimitPlusOne() int64 { return int64(p.Normalize().Size + 1) }

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	return parsePositive(query.Get(r, "start"), 1)
}

// ParsePage reads "start" and "limit" from the query string.
func ParsePage(r *http.Request) Page {
	return Page{
		Start: ParseStart(r),
		Size:  parsePositive(query.Get(r, "limit"), PageSize),
	}.Normalize()
}

func parsePositive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Trim cuts a look-ahead fetch of size+1 rows down to size and reports
// whether another page exists.
func Trim[T any](rows *[]T, size int) (hasNext bool) {
	if len(*rows) > size {
		*rows = (*rows)[:size]
		return true
	}
	return false
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int  `json:"start"`      // 1-based start index (0 if no results)
	End       int  `json:"end"`        // 1-based end index (0 if no results)
	PrevStart int  `json:"prev_start"` // start value for previous page link
	NextStart int  `json:"next_start"` // start value for next page link
	HasPrev   bool `json:"has_prev"`
	HasNext   bool `json:"has_next"`
}

// ComputeRange calculates display range values for page p with shown rows.
func ComputeRange(p Page, shown int, hasNext bool) Range {
	p = p.Normalize()
	prevStart := p.Start - p.Size
	if prevStart < 1 {
		prevStart = 1
	}
	if shown == 0 {
		return Range{PrevStart: prevStart, NextStart: p.Start, HasPrev: p.Start > 1}
	}
	return Range{
		Start:     p.Start,
		End:       p.Start + shown - 1,
		PrevStart: prevStart,
		NextStart: p.Start + shown,
		HasPrev:   p.Start > 1,
		HasNext:   hasNext,
	}
}
