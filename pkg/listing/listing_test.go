package listing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/pkg/pager"
)

type fakeSource struct {
	mu      sync.Mutex
	rows    []string
	calls   []pager.Query
	failing bool
}

func (f *fakeSource) Fetch(_ context.Context, q pager.Query) (Page[string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.failing {
		return Page[string]{}, errors.New("backend down")
	}
	start := q.PageIndex * q.PageSize
	if start > len(f.rows) {
		start = len(f.rows)
	}
	end := start + q.PageSize
	if end > len(f.rows) {
		end = len(f.rows)
	}
	total := (len(f.rows) + q.PageSize - 1) / q.PageSize
	return Page[string]{Items: f.rows[start:end], TotalPages: total, TotalsKnown: true}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func rows(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestListFollowsPager(t *testing.T) {
	p, err := pager.New(pager.WithPageSizes(2, 4), pager.WithPageSize(2))
	if err != nil {
		t.Fatalf("pager: %v", err)
	}
	src := &fakeSource{rows: rows(5)}
	list := New[string](p, src)
	defer list.Close()

	if err := list.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, list.Items()); diff != "" {
		t.Fatalf("page 0 mismatch (-want +got):\n%s", diff)
	}
	if got := p.Query().TotalPages; got != 3 {
		t.Fatalf("expected totals fed back to pager, got %d", got)
	}

	p.Next()
	if diff := cmp.Diff([]string{"c", "d"}, list.Items()); diff != "" {
		t.Fatalf("page 1 mismatch (-want +got):\n%s", diff)
	}

	p.SetPage(1)
	if got := src.callCount(); got != 2 {
		t.Fatalf("expected no duplicate fetch for same page, got %d calls", got)
	}

	if err := p.SetPageSize(4); err != nil {
		t.Fatalf("set size: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, list.Items()); diff != "" {
		t.Fatalf("resized page mismatch (-want +got):\n%s", diff)
	}
}

func TestListRefreshAndErrors(t *testing.T) {
	p, err := pager.New()
	if err != nil {
		t.Fatalf("pager: %v", err)
	}
	src := &fakeSource{rows: rows(3)}
	list := New[string](p, src)

	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	src.mu.Lock()
	src.failing = true
	src.mu.Unlock()

	if err := list.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	state := list.Snapshot()
	if state.Err == nil || state.Loading {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(state.Items) != 3 {
		t.Fatalf("expected previous rows to survive a failed refresh, got %v", state.Items)
	}
}

func TestListClampedTotalsRefetch(t *testing.T) {
	p, err := pager.New(pager.WithPageSizes(2), pager.WithPageSize(2))
	if err != nil {
		t.Fatalf("pager: %v", err)
	}
	p.SetTotalPages(10)
	p.SetPage(5)

	src := &fakeSource{rows: rows(3)}
	list := New[string](p, src)
	defer list.Close()
	if err := list.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := p.Query().PageIndex; got != 1 {
		t.Fatalf("expected pager clamped to last page, got %d", got)
	}
	if diff := cmp.Diff([]string{"c"}, list.Items()); diff != "" {
		t.Fatalf("clamped page mismatch (-want +got):\n%s", diff)
	}
}

func TestListSubscribe(t *testing.T) {
	p, err := pager.New()
	if err != nil {
		t.Fatalf("pager: %v", err)
	}
	list := New[string](p, FetcherFunc[string](func(context.Context, pager.Query) (Page[string], error) {
		return Page[string]{Items: []string{"x"}, HasMore: true}, nil
	}))

	var states []State[string]
	cancel := list.Subscribe(func(s State[string]) { states = append(states, s) })
	defer cancel()

	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(states) != 2 || !states[0].Loading || states[1].Loading {
		t.Fatalf("expected loading then loaded, got %+v", states)
	}
	if !p.Query().HasMore {
		t.Fatalf("expected has-more fed back to the pager")
	}
}
