package paging

import (
	"net/http/httptest"
	"testing"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero value", Page{}, Page{Start: 1, Size: PageSize}},
		{"negative start", Page{Start: -4, Size: 10}, Page{Start: 1, Size: 10}},
		{"too large", Page{Start: 3, Size: 10_000}, Page{Start: 3, Size: MaxPageSize}},
		{"unchanged", Page{Start: 51, Size: 50}, Page{Start: 51, Size: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPage_SkipAndLimit(t *testing.T) {
	p := Page{Start: 51, Size: 50}
	if p.Skip() != 50 {
		t.Errorf("Skip() = %d, want 50", p.Skip())
	}
	if p.LimitPlusOne() != 51 {
		t.Errorf("LimitPlusOne() = %d, want 51", p.LimitPlusOne())
	}
	if Default().Skip() != 0 || Default().LimitPlusOne() != PageSize+1 {
		t.Error("Default() mismatch")
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		url  string
		want Page
	}{
		{"/api/admin/trips", Page{Start: 1, Size: PageSize}},
		{"/api/admin/trips?start=101", Page{Start: 101, Size: PageSize}},
		{"/api/admin/trips?start=abc&limit=-1", Page{Start: 1, Size: PageSize}},
		{"/api/admin/trips?start=0&limit=20", Page{Start: 1, Size: 20}},
		{"/api/admin/trips?limit=5000", Page{Start: 1, Size: MaxPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ParsePage(httptest.NewRequest("GET", tt.url, nil)); got != tt.want {
				t.Errorf("ParsePage = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTrim(t *testing.T) {
	rows := make([]int, PageSize+1)
	if !Trim(&rows, PageSize) || len(rows) != PageSize {
		t.Errorf("expected trim to PageSize with next, got len=%d", len(rows))
	}

	rows = []int{1, 2, 3}
	if Trim(&rows, PageSize) || len(rows) != 3 {
		t.Error("short page should be untouched with no next")
	}

	var empty []int
	if Trim(&empty, PageSize) {
		t.Error("empty page has no next")
	}
}

func TestComputeRange(t *testing.T) {
	tests := []struct {
		name    string
		page    Page
		shown   int
		hasNext bool
		want    Range
	}{
		{"first page", Page{Start: 1, Size: 50}, 50, true, Range{Start: 1, End: 50, PrevStart: 1, NextStart: 51, HasNext: true}},
		{"second page", Page{Start: 51, Size: 50}, 10, false, Range{Start: 51, End: 60, PrevStart: 1, NextStart: 61, HasPrev: true}},
		{"third page", Page{Start: 101, Size: 50}, 50, true, Range{Start: 101, End: 150, PrevStart: 51, NextStart: 151, HasPrev: true, HasNext: true}},
		{"empty", Page{Start: 1, Size: 50}, 0, false, Range{PrevStart: 1, NextStart: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeRange(tt.page, tt.shown, tt.hasNext); got != tt.want {
				t.Errorf("ComputeRange = %+v, want %+v", got, tt.want)
			}
		})
	}
}
