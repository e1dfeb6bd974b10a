// Package listing binds a pager to a data source: every page change triggers
// a fetch, the current rows are kept for display and the totals reported by
// the source are fed back into the pager.
package listing

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/pager"
)

// Page is one page of rows as returned by a data source. Sources that know
// the page count set TotalsKnown and TotalPages, the others set HasMore.
type Page[T any] struct {
	Items       []T
	TotalPages  int
	TotalsKnown bool
	HasMore     bool
}

// Fetcher loads the page described by q.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, q pager.Query) (Page[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context, q pager.Query) (Page[T], error)

func (f FetcherFunc[T]) Fetch(ctx context.Context, q pager.Query) (Page[T], error) {
	return f(ctx, q)
}

// State is a snapshot of the list.
type State[T any] struct {
	Items   []T
	Loading bool
	Err     error
	Query   pager.Query
}

// Option customises a List.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger attaches a logger for fetch failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// List is safe for concurrent use. Responses for superseded requests are
// dropped so a slow earlier fetch never overwrites a newer page.
type List[T any] struct {
	pager   *pager.Pager
	fetcher Fetcher[T]
	logger  *zap.Logger

	mu        sync.Mutex
	items     []T
	loading   bool
	err       error
	seq       uint64
	listeners map[int]func(State[T])
	nextID    int
	unsub     func()
}

// New wires fetcher to p. Call Start to begin following pager events.
func New[T any](p *pager.Pager, fetcher Fetcher[T], opts ...Option) *List[T] {
	cfg := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &List[T]{
		pager:     p,
		fetcher:   fetcher,
		logger:    cfg.logger,
		listeners: make(map[int]func(State[T])),
	}
}

// Start subscribes to the pager and loads the current page. Page changes
// fetch with ctx until Close is called.
func (l *List[T]) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.unsub == nil {
		l.unsub = l.pager.Subscribe(func(pager.Query) {
			_ = l.Load(ctx)
		})
	}
	l.mu.Unlock()
	return l.Load(ctx)
}

// Close stops following the pager.
func (l *List[T]) Close() {
	l.mu.Lock()
	unsub := l.unsub
	l.unsub = nil
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Refresh reloads the current page, e.g. after a form saved a row.
func (l *List[T]) Refresh(ctx context.Context) error {
	return l.Load(ctx)
}

// Load fetches the pager's current page and stores the result.
func (l *List[T]) Load(ctx context.Context) error {
	q := l.pager.Query()

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.loading = true
	l.mu.Unlock()
	l.emit()

	page, err := l.fetcher.Fetch(ctx, q)

	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		return err
	}
	l.loading = false
	if err != nil {
		l.err = fmt.Errorf("listing: fetch page %d: %w", q.PageIndex, err)
		l.mu.Unlock()
		l.logger.Warn("list fetch failed", zap.Int("page_index", q.PageIndex), zap.Error(err))
		l.emit()
		return l.Err()
	}
	l.err = nil
	l.items = append([]T(nil), page.Items...)
	l.mu.Unlock()
	l.emit()

	if page.TotalsKnown {
		l.pager.SetTotalPages(page.TotalPages)
	} else {
		l.pager.SetHasMore(page.HasMore)
	}
	return nil
}

// Items returns the rows of the last successful fetch.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.items...)
}

// Err returns the last fetch error, if any.
func (l *List[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Snapshot returns the current state.
func (l *List[T]) Snapshot() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Subscribe registers fn for state changes.
func (l *List[T]) Subscribe(fn func(State[T])) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *List[T]) snapshotLocked() State[T] {
	return State[T]{
		Items:   append([]T(nil), l.items...),
		Loading: l.loading,
		Err:     l.err,
		Query:   l.pager.Query(),
	}
}

func (l *List[T]) emit() {
	l.mu.Lock()
	state := l.snapshotLocked()
	listeners := make([]func(State[T]), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}
