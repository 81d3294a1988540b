package paging

import (
	"encoding/json"
	"testing"
)

func TestClamps(t *testing.T) {
	if got := ClampPage(0); got != 1 {
		t.Fatalf("expected page clamp to 1, got %d", got)
	}
	if got := ClampPage(-5); got != 1 {
		t.Fatalf("expected page clamp to 1, got %d", got)
	}
	if got := ClampPageSize(0); got != 1 {
		t.Fatalf("expected size clamp to 1, got %d", got)
	}
	if got := ClampPageSize(5000); got != MaxPageSize {
		t.Fatalf("expected size clamp to %d, got %d", MaxPageSize, got)
	}
	if got := ClampPageSize(15); got != 15 {
		t.Fatalf("expected size unchanged, got %d", got)
	}
}

func TestTotalPagesDerivation(t *testing.T) {
	p := PagedResult[int]{TotalCount: 4, Page: 1, PageSize: 2}
	if p.TotalPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", p.TotalPages())
	}
	if p.HasPrevious() {
		t.Fatalf("page 1 has no previous page")
	}
	if !p.HasNext() {
		t.Fatalf("expected a next page")
	}
	zero := PagedResult[int]{TotalCount: 4, Page: 1, PageSize: 0}
	if zero.TotalPages() != 0 {
		t.Fatalf("expected 0 pages for zero page size, got %d", zero.TotalPages())
	}
}

func TestSliceCoversAllRowsExactlyOnce(t *testing.T) {
	items := []int{9, 8, 7, 6, 5, 4, 3}
	size := 3
	var joined []int
	for page := 1; ; page++ {
		chunk := Slice(items, page, size)
		if len(chunk) == 0 {
			break
		}
		joined = append(joined, chunk...)
	}
	if len(joined) != len(items) {
		t.Fatalf("expected %d rows across pages, got %d", len(items), len(joined))
	}
	for i := range items {
		if joined[i] != items[i] {
			t.Fatalf("row %d mismatch: %d != %d", i, joined[i], items[i])
		}
	}
}

func TestMarshalIncludesDerivedFields(t *testing.T) {
	p := PagedResult[string]{Items: nil, TotalCount: 0, Page: 1, PageSize: 15}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if items, ok := decoded["items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", decoded["items"])
	}
	if decoded["totalPages"].(float64) != 0 {
		t.Fatalf("expected totalPages 0, got %v", decoded["totalPages"])
	}
	if decoded["hasNext"].(bool) || decoded["hasPrevious"].(bool) {
		t.Fatalf("expected no next/previous on empty result")
	}
}
