package session

import "strings"

// DefaultPageSize is the number of lines shown before a "--More--"
// pause, matching a standard 24-row terminal minus the status line.
const DefaultPageSize = 23

// Pager splits a response body into screen-sized pages, entirely from
// a local buffer (spec.md §9's resolved open question: pagination
// never re-queries the owning module for the next page, it just walks
// further into the body the dispatcher already returned).
type Pager struct {
	lines    []string
	pos      int
	pageSize int
}

// NewPager splits body into lines and prepares to page it pageSize
// lines at a time.
func NewPager(body string, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{lines: strings.Split(body, "\n"), pageSize: pageSize}
}

// Next returns the next page of lines and whether more remains after
// it (the caller prints "--More--" when more is true).
func (p *Pager) Next() (page []string, more bool) {
	if p.pos >= len(p.lines) {
		return nil, false
	}
	end := p.pos + p.pageSize
	if end > len(p.lines) {
		end = len(p.lines)
	}
	page = p.lines[p.pos:end]
	p.pos = end
	return page, p.pos < len(p.lines)
}

// Done reports whether every line has been paged out.
func (p *Pager) Done() bool { return p.pos >= len(p.lines) }
