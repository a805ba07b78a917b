// Package pagination reads page, limit and sort from a query string and
// cuts in-memory row lists accordingly. Tabs are read whole from the
// workbook, so paging happens after the fetch.
package pagination

import (
	"net/url"
	"strconv"
)

// Params are the pagination settings of one request.
type Params struct {
	Page   int    // Current page number (1-based)
	Limit  int    // Rows per page
	Offset int    // Index of the first row of the page
	Sort   string // "oldest" (sheet order) or "newest"
}

const (
	// MaxLimit caps the rows returned per page.
	MaxLimit = 200
	// MaxPage caps the page number so offsets stay far from overflow.
	MaxPage = 1_000_000
	// DefaultPage is used when page is missing or invalid.
	DefaultPage = 1
	// DefaultLimit is used when limit is missing or invalid.
	DefaultLimit = 50
	// DefaultSort keeps the order rows were appended in.
	DefaultSort = "oldest"
)

func calculateOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * limit
}

func isValidSort(sort string) bool {
	switch sort {
	case "newest", "oldest":
		return true
	default:
		return false
	}
}

// Option adjusts the defaults before the query is read.
type Option func(*Params)

// WithDefaultLimit overrides DefaultLimit when limit is positive.
func WithDefaultLimit(limit int) Option {
	return func(p *Params) {
		if limit > 0 {
			p.Limit = limit
		}
	}
}

// WithDefaultSort overrides DefaultSort when sort is valid.
func WithDefaultSort(sort string) Option {
	if !isValidSort(sort) {
		return func(p *Params) {}
	}
	return func(p *Params) {
		p.Sort = sort
	}
}

// FromQuery extracts pagination parameters from q. Invalid values fall
// back to the defaults and limit is capped at MaxLimit.
func FromQuery(q url.Values, opts ...Option) Params {
	params := Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}
	for _, opt := range opts {
		opt(&params)
	}

	if pageStr := q.Get("page"); pageStr != "" {
		if val, err := strconv.Atoi(pageStr); err == nil && val > 0 {
			params.Page = min(val, MaxPage)
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if val, err := strconv.Atoi(limitStr); err == nil && val > 0 {
			params.Limit = val
		}
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	params.Offset = calculateOffset(params.Page, params.Limit)

	if sortStr := q.Get("sort"); isValidSort(sortStr) {
		params.Sort = sortStr
	}
	return params
}

// Window returns the page of items described by p and whether more items
// follow it. "newest" pages from the end of the list backwards.
func Window[T any](items []T, p Params) ([]T, bool) {
	ordered := items
	if p.Sort == "newest" {
		ordered = make([]T, len(items))
		for i, item := range items {
			ordered[len(items)-1-i] = item
		}
	}
	if p.Offset < 0 || p.Limit <= 0 || p.Offset >= len(ordered) {
		return []T{}, false
	}
	end := len(ordered)
	if p.Limit < end-p.Offset {
		end = p.Offset + p.Limit
	}
	return ordered[p.Offset:end], HasNext(p.Offset, p.Limit, len(ordered))
}

// HasNext reports whether rows remain after the current page.
func HasNext(offset, limit, count int) bool {
	return limit < count-offset
}
