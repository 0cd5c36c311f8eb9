package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Offset int
}

// Page describes the slice of rows a list response covers.
type Page struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Normalize clamps both limit and offset.
func (p Params) Normalize() Params {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: NormalizeLimit(p.Limit), Offset: offset}
}

// Trim drops the buffered row, if any, and reports the page metadata.
func Trim[T any](rows []T, params Params) ([]T, Page) {
	params = params.Normalize()
	page := Page{Limit: params.Limit, Offset: params.Offset}
	if len(rows) > params.Limit {
		next := params.Offset + params.Limit
		page.NextOffset = &next
		rows = rows[:params.Limit]
	}
	return rows, page
}

// ParseParams reads limit and offset query values.
func ParseParams(limit, offset string) (Params, error) {
	var params Params
	if v := strings.TrimSpace(limit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Params{}, fmt.Errorf("invalid limit %q", limit)
		}
		params.Limit = n
	}
	if v := strings.TrimSpace(offset); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Params{}, fmt.Errorf("invalid offset %q", offset)
		}
		params.Offset = n
	}
	return params.Normalize(), nil
}
