package stats

import "fmt"

// Pagination bounds shared by every ranked listing.
const (
	MinLimit = 1
	MaxLimit = 200
)

// PageParams is an offset/limit window over an ordered result set.
type PageParams struct {
	Offset int
	Limit  int
}

// Validate rejects out-of-range windows before any query executes.
func (p PageParams) Validate() error {
	if p.Offset < 0 {
		return &RangeError{Param: "offset", Reason: "must be >= 0"}
	}
	if p.Limit < MinLimit || p.Limit > MaxLimit {
		return &RangeError{Param: "limit", Reason: fmt.Sprintf("must be between %d and %d", MinLimit, MaxLimit)}
	}
	return nil
}

// Page is a window over an ordered result set. Total counts the full set
// before windowing; because each ranking is produced by a single query and
// windowed in-process, Total and Items can never disagree under concurrent
// writes.
type Page[T any] struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Items  []T `json:"items"`
}

// NewPage windows the full ordered set rows by p. Items is always non-nil;
// a window starting at or past the end yields an empty slice, not an error.
func NewPage[T any](rows []T, p PageParams) Page[T] {
	page := Page[T]{
		Total:  len(rows),
		Offset: p.Offset,
		Limit:  p.Limit,
		Items:  []T{},
	}
	if p.Offset >= len(rows) {
		return page
	}
	end := p.Offset + p.Limit
	if end > len(rows) {
		end = len(rows)
	}
	page.Items = append(page.Items, rows[p.Offset:end]...)
	return page
}
