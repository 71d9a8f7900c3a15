// Package pagination parses offset paging and date-range query parameters.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 10
	// DefaultMaxLimit caps limit to prevent unbounded queries.
	DefaultMaxLimit = 100
)

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
	ErrInvalidDate  = errors.New("pagination: invalid date")
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// Options control how ParsePage behaves for a given handler.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// ParsePage reads "page" and "limit". Missing values take the defaults; limit above the
// maximum is clamped, non-numeric or non-positive values are rejected.
func ParsePage(values url.Values, opts Options) (Page, error) {
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	page := Page{Number: 1, Limit: defaultLimit}
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, fmt.Errorf("%w: %q", ErrInvalidPage, raw)
		}
		page.Number = n
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
		}
		page.Limit = min(n, maxLimit)
	}
	return page, nil
}

// Offset returns the number of items preceding the page.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// TotalPages returns how many pages of p.Limit cover total items.
func (p Page) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// DateRange is an optional inclusive creation-time window.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// ParseDateRange reads fromKey and toKey as YYYY-MM-DD or RFC3339. A date-only upper bound
// covers the whole day.
func ParseDateRange(values url.Values, fromKey, toKey string) (DateRange, error) {
	var out DateRange
	if raw := strings.TrimSpace(values.Get(fromKey)); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: %s", ErrInvalidDate, fromKey)
		}
		out.From = &from
	}
	if raw := strings.TrimSpace(values.Get(toKey)); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: %s", ErrInvalidDate, toKey)
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		out.To = &to
	}
	if out.From != nil && out.To != nil && out.To.Before(*out.From) {
		return DateRange{}, fmt.Errorf("%w: %s before %s", ErrInvalidDate, toKey, fromKey)
	}
	return out, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
