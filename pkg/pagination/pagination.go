package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// Params holds page-based pagination parameters.
type Params struct {
	Page    int
	PerPage int
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	return Normalize(page, perPage)
}

// Normalize clamps page to >= 1 and perPage to [1, MaxPerPage].
func Normalize(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// Offset returns the zero-based index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Query renders the params as URL query values.
func (p Params) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))
	return q
}

// Page is the paginated envelope of list endpoints.
type Page[T any] struct {
	CurrentPage int `json:"current_page"`
	Data        []T `json:"data"`
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// NewPage builds the envelope for one page of items out of total.
func NewPage[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	last := 1
	if total > 0 {
		last = (total + p.PerPage - 1) / p.PerPage
	}
	page := &Page[T]{
		CurrentPage: p.Page,
		Data:        items,
		Total:       total,
		PerPage:     p.PerPage,
		LastPage:    last,
	}
	if len(items) > 0 {
		page.From = p.Offset() + 1
		page.To = p.Offset() + len(items)
	}
	return page
}

// Slice returns the window of items selected by p, for in-memory stores.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// HasNext returns true if there are more pages after the current one.
func (pg *Page[T]) HasNext() bool {
	return pg.CurrentPage < pg.LastPage
}

// HasPrevious returns true if there are pages before the current one.
func (pg *Page[T]) HasPrevious() bool {
	return pg.CurrentPage > 1
}
