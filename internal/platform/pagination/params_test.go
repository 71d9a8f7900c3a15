package pagination

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestParsePageDefaults(t *testing.T) {
	page, err := ParsePage(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Number != 1 || page.Limit != DefaultLimit || page.Offset() != 0 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantNumber int
		wantLimit  int
		wantOffset int
		wantErr    error
	}{
		{name: "explicit", query: "page=3&limit=20", wantNumber: 3, wantLimit: 20, wantOffset: 40},
		{name: "clamped", query: "limit=500", wantNumber: 1, wantLimit: DefaultMaxLimit},
		{name: "zero page", query: "page=0", wantErr: ErrInvalidPage},
		{name: "text limit", query: "limit=ten", wantErr: ErrInvalidLimit},
		{name: "negative limit", query: "limit=-1", wantErr: ErrInvalidLimit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tc.query)
			page, err := ParsePage(values, Options{})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.Number != tc.wantNumber || page.Limit != tc.wantLimit || page.Offset() != tc.wantOffset {
				t.Fatalf("unexpected page %+v offset %d", page, page.Offset())
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	page := Page{Number: 1, Limit: 10}
	cases := map[int]int{0: 0, 1: 1, 10: 1, 11: 2, 95: 10}
	for total, want := range cases {
		if got := page.TotalPages(total); got != want {
			t.Fatalf("total %d: expected %d pages, got %d", total, want, got)
		}
	}
}

func TestParseDateRange(t *testing.T) {
	values := url.Values{"startDate": {"2024-03-01"}, "endDate": {"2024-03-31"}}
	r, err := ParseDateRange(values, "startDate", "endDate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", r.From)
	}
	wantTo := time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC)
	if !r.To.Equal(wantTo) {
		t.Fatalf("expected inclusive end %v, got %v", wantTo, r.To)
	}
}

func TestParseDateRangeRFC3339AndErrors(t *testing.T) {
	values := url.Values{"endDate": {"2024-03-31T10:00:00+09:00"}}
	r, err := ParseDateRange(values, "startDate", "endDate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.From != nil || !r.To.Equal(time.Date(2024, 3, 31, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %+v", r)
	}

	bad := []url.Values{
		{"startDate": {"31/03/2024"}},
		{"startDate": {"2024-04-02"}, "endDate": {"2024-04-01"}},
	}
	for _, v := range bad {
		if _, err := ParseDateRange(v, "startDate", "endDate"); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %v, got %v", v, err)
		}
	}
}
