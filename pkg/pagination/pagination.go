// Package pagination reads list parameters from a request and wraps a page of
// results with navigation links that keep the search query.
package pagination

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is one page request. Query is the free-text filter (?q=).
type Params struct {
	Limit  int
	Offset int
	Query  string
}

// FromContext reads limit, offset and q. Invalid numbers fall back to the
// defaults and limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	p := Params{
		Limit:  DefaultLimit,
		Offset: 0,
		Query:  strings.TrimSpace(c.QueryParam("q")),
	}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

func (p Params) url(basePath string, offset int) string {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("offset", strconv.Itoa(offset))
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	return basePath + "?" + v.Encode()
}

// Link is a navigation link to a sibling page.
type Link struct {
	Relation string `json:"rel"`
	URL      string `json:"href"`
}

// Response is the list envelope.
type Response struct {
	Data    any    `json:"data"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"has_more"`
	Links   []Link `json:"links,omitempty"`

	params Params
}

func NewResponse(data any, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+p.Limit < total,
		params:  p,
	}
}

// WithLinks adds self, then next and previous when those pages exist.
func (r *Response) WithLinks(basePath string) *Response {
	r.Links = []Link{{Relation: "self", URL: r.params.url(basePath, r.Offset)}}
	if r.HasMore {
		r.Links = append(r.Links, Link{Relation: "next", URL: r.params.url(basePath, r.Offset+r.Limit)})
	}
	if r.Offset > 0 {
		r.Links = append(r.Links, Link{Relation: "previous", URL: r.params.url(basePath, max(r.Offset-r.Limit, 0))})
	}
	return r
}
