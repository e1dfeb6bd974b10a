// Package pager holds list pagination state and tells a fetcher when the
// requested page changes. It never fetches anything itself.
package pager

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// DefaultPageSizes is the allowed page size set when none is configured.
var DefaultPageSizes = []int{10, 20, 50, 100}

// ErrPageSize is returned when a page size outside the allowed set is
// requested.
var ErrPageSize = errors.New("pager: page size not allowed")

// Query is the pagination state handed to fetchers. TotalPages is only
// meaningful when TotalsKnown is set; otherwise HasMore drives Next.
type Query struct {
	PageIndex   int
	PageSize    int
	TotalPages  int
	TotalsKnown bool
	HasMore     bool
}

// Option customises a Pager.
type Option func(*Pager)

// WithPageSizes replaces the allowed page size set.
func WithPageSizes(sizes ...int) Option {
	return func(p *Pager) {
		if len(sizes) > 0 {
			p.sizes = append([]int(nil), sizes...)
		}
	}
}

// WithPageSize sets the initial page size. It must be one of the allowed
// sizes.
func WithPageSize(size int) Option {
	return func(p *Pager) {
		p.query.PageSize = size
	}
}

// WithLogger attaches a logger for page transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pager is safe for concurrent use. Listeners run outside the lock, in the
// goroutine that caused the change.
type Pager struct {
	mu        sync.Mutex
	query     Query
	sizes     []int
	listeners map[int]func(Query)
	nextID    int
	logger    *zap.Logger
}

// New returns a pager at page 0.
func New(options ...Option) (*Pager, error) {
	p := &Pager{
		sizes:     append([]int(nil), DefaultPageSizes...),
		listeners: make(map[int]func(Query)),
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(p)
		}
	}
	for _, size := range p.sizes {
		if size <= 0 {
			return nil, fmt.Errorf("pager: invalid page size %d", size)
		}
	}
	if p.query.PageSize == 0 {
		p.query.PageSize = p.sizes[0]
	}
	if !slices.Contains(p.sizes, p.query.PageSize) {
		return nil, fmt.Errorf("%w: %d", ErrPageSize, p.query.PageSize)
	}
	return p, nil
}

// Query returns the current state.
func (p *Pager) Query() Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

// PageSizes lists the allowed sizes.
func (p *Pager) PageSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.sizes...)
}

// Params exposes the current page as pageIndex/pageSize query parameters.
func (p *Pager) Params() url.Values {
	q := p.Query()
	return url.Values{
		"pageIndex": []string{strconv.Itoa(q.PageIndex)},
		"pageSize":  []string{strconv.Itoa(q.PageSize)},
	}
}

// Subscribe registers fn for change events and returns its cancel func.
func (p *Pager) Subscribe(fn func(Query)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SetPage moves to page n, clamped to the known bounds. It reports whether
// the page changed; an unchanged page emits nothing.
func (p *Pager) SetPage(n int) bool {
	p.mu.Lock()
	target := p.clamp(n)
	if target == p.query.PageIndex {
		p.mu.Unlock()
		return false
	}
	p.query.PageIndex = target
	return p.commit("page")
}

// SetPageSize switches to size and rewinds to page 0. Sizes outside the
// allowed set are rejected without touching the state.
func (p *Pager) SetPageSize(size int) error {
	p.mu.Lock()
	if !slices.Contains(p.sizes, size) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrPageSize, size)
	}
	if size == p.query.PageSize && p.query.PageIndex == 0 {
		p.mu.Unlock()
		return nil
	}
	p.query.PageSize = size
	p.query.PageIndex = 0
	p.commit("size")
	return nil
}

// Next advances one page. With known totals it stops at the last page;
// without them it advances only while the data source reported more rows.
func (p *Pager) Next() bool {
	p.mu.Lock()
	if !p.query.TotalsKnown {
		if !p.query.HasMore {
			p.mu.Unlock()
			return false
		}
		p.query.PageIndex++
		p.query.HasMore = false
		return p.commit("next")
	}
	target := p.clamp(p.query.PageIndex + 1)
	if target == p.query.PageIndex {
		p.mu.Unlock()
		return false
	}
	p.query.PageIndex = target
	return p.commit("next")
}

// Prev goes back one page; it is a no-op on page 0.
func (p *Pager) Prev() bool {
	p.mu.Lock()
	if p.query.PageIndex == 0 {
		p.mu.Unlock()
		return false
	}
	p.query.PageIndex--
	return p.commit("prev")
}

// SetTotalPages records the page count reported by the data source. When
// the current page falls outside the new bounds it is clamped and an event
// is emitted so the fetcher loads the clamped page.
func (p *Pager) SetTotalPages(total int) {
	if total < 0 {
		total = 0
	}
	p.mu.Lock()
	p.query.TotalsKnown = true
	p.query.TotalPages = total
	p.query.HasMore = p.query.PageIndex+1 < total
	target := p.clamp(p.query.PageIndex)
	if target == p.query.PageIndex {
		p.mu.Unlock()
		return
	}
	p.query.PageIndex = target
	p.commit("clamp")
}

// SetHasMore records the has-more flag for sources that do not report
// totals. It never emits an event.
func (p *Pager) SetHasMore(more bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query.TotalsKnown = false
	p.query.TotalPages = 0
	p.query.HasMore = more
}

// Reset returns to page 0 and forgets totals, emitting an event when the
// page moved.
func (p *Pager) Reset() {
	p.mu.Lock()
	moved := p.query.PageIndex != 0
	p.query.PageIndex = 0
	p.query.TotalPages = 0
	p.query.TotalsKnown = false
	p.query.HasMore = false
	if !moved {
		p.mu.Unlock()
		return
	}
	p.commit("reset")
}

// clamp must be called with mu held.
func (p *Pager) clamp(n int) int {
	if n < 0 {
		n = 0
	}
	if p.query.TotalsKnown {
		last := p.query.TotalPages - 1
		if last < 0 {
			last = 0
		}
		if n > last {
			n = last
		}
	}
	return n
}

// commit releases mu and notifies listeners with the new state. It must be
// called with mu held.
func (p *Pager) commit(reason string) bool {
	q := p.query
	listeners := make([]func(Query), 0, len(p.listeners))
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, p.listeners[id])
	}
	p.mu.Unlock()

	p.logger.Debug("pager changed",
		zap.String("reason", reason),
		zap.Int("page_index", q.PageIndex),
		zap.Int("page_size", q.PageSize),
	)
	for _, fn := range listeners {
		fn(q)
	}
	return true
}
