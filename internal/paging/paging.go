package paging

import "encoding/json"

const (
	DefaultPage     = 1
	DefaultPageSize = 15
	MaxPageSize     = 1000
)

// PagedResult is the pagination envelope shared by every query surface.
// TotalPages/HasPrevious/HasNext are derived, not stored.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

func (p PagedResult[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

func (p PagedResult[T]) HasPrevious() bool {
	return p.Page > 1
}

func (p PagedResult[T]) HasNext() bool {
	return p.Page < p.TotalPages()
}

func (p PagedResult[T]) MarshalJSON() ([]byte, error) {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return json.Marshal(struct {
		Items       []T  `json:"items"`
		TotalCount  int  `json:"totalCount"`
		Page        int  `json:"page"`
		PageSize    int  `json:"pageSize"`
		TotalPages  int  `json:"totalPages"`
		HasPrevious bool `json:"hasPrevious"`
		HasNext     bool `json:"hasNext"`
	}{items, p.TotalCount, p.Page, p.PageSize, p.TotalPages(), p.HasPrevious(), p.HasNext()})
}

// ClampPage forces the 1-based page number to at least 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampPageSize forces the page size into [1, MaxPageSize].
func ClampPageSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// Slice applies offset pagination over an already-ordered list. Page and size
// are assumed clamped.
func Slice[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
