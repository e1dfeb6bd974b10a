package pager

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	events []Query
}

func (r *recorder) listen(q Query) { r.events = append(r.events, q) }

func newPager(t *testing.T, options ...Option) (*Pager, *recorder) {
	t.Helper()
	p, err := New(options...)
	if err != nil {
		t.Fatalf("new pager: %v", err)
	}
	rec := &recorder{}
	p.Subscribe(rec.listen)
	return p, rec
}

func TestNewRejectsUnlistedDefault(t *testing.T) {
	if _, err := New(WithPageSize(15)); !errors.Is(err, ErrPageSize) {
		t.Fatalf("expected ErrPageSize, got %v", err)
	}
	p, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := p.Query().PageSize; got != 10 {
		t.Fatalf("expected default size 10, got %d", got)
	}
}

func TestSetPageSizeAlwaysResetsToFirstPage(t *testing.T) {
	for _, start := range []int{0, 1, 4, 9} {
		p, rec := newPager(t)
		p.SetTotalPages(10)
		p.SetPage(start)
		rec.events = nil

		if err := p.SetPageSize(50); err != nil {
			t.Fatalf("set page size: %v", err)
		}
		q := p.Query()
		if q.PageIndex != 0 || q.PageSize != 50 {
			t.Fatalf("start %d: expected page 0 size 50, got %+v", start, q)
		}
		if len(rec.events) != 1 {
			t.Fatalf("start %d: expected one event, got %d", start, len(rec.events))
		}
	}
}

func TestSetPageSizeSameSizeFromLaterPageRewinds(t *testing.T) {
	p, rec := newPager(t)
	p.SetTotalPages(5)
	p.SetPage(3)
	rec.events = nil

	if err := p.SetPageSize(10); err != nil {
		t.Fatalf("set page size: %v", err)
	}
	if p.Query().PageIndex != 0 || len(rec.events) != 1 {
		t.Fatalf("expected rewind with one event, got %+v events=%d", p.Query(), len(rec.events))
	}

	if err := p.SetPageSize(10); err != nil {
		t.Fatalf("set page size: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected no event when nothing changed, got %d", len(rec.events))
	}
}

func TestSetPageSizeRejectsUnlistedSize(t *testing.T) {
	p, rec := newPager(t)
	p.SetTotalPages(5)
	p.SetPage(2)
	rec.events = nil
	before := p.Query()

	if err := p.SetPageSize(33); !errors.Is(err, ErrPageSize) {
		t.Fatalf("expected ErrPageSize, got %v", err)
	}
	if diff := cmp.Diff(before, p.Query()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %d", len(rec.events))
	}
}

func TestSetPageCurrentIndexDoesNotNotify(t *testing.T) {
	p, rec := newPager(t)
	p.SetTotalPages(4)

	if !p.SetPage(2) {
		t.Fatalf("expected page change")
	}
	if p.SetPage(2) {
		t.Fatalf("expected no change on same page")
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(rec.events))
	}
}

func TestSetPageClampsToKnownBounds(t *testing.T) {
	p, rec := newPager(t)
	p.SetTotalPages(3)

	p.SetPage(99)
	if got := p.Query().PageIndex; got != 2 {
		t.Fatalf("expected clamp to 2, got %d", got)
	}
	p.SetPage(-4)
	if got := p.Query().PageIndex; got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
}

func TestSetTotalPagesClampsCurrentPage(t *testing.T) {
	p, rec := newPager(t)
	p.SetTotalPages(10)
	p.SetPage(8)
	rec.events = nil

	p.SetTotalPages(4)
	if got := p.Query().PageIndex; got != 3 {
		t.Fatalf("expected clamp to 3, got %d", got)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected clamp event, got %d", len(rec.events))
	}

	p.SetTotalPages(6)
	if len(rec.events) != 1 {
		t.Fatalf("expected no event when page stays in range")
	}
}

func TestNextPrevWithKnownTotals(t *testing.T) {
	p, _ := newPager(t)
	p.SetTotalPages(2)

	if !p.Next() {
		t.Fatalf("expected to advance")
	}
	if p.Next() {
		t.Fatalf("expected to stop at the last page")
	}
	if !p.Prev() || p.Prev() {
		t.Fatalf("expected one step back then stop at page 0")
	}
}

func TestNextUsesHasMoreWithoutTotals(t *testing.T) {
	p, rec := newPager(t)

	if p.Next() {
		t.Fatalf("expected no advance without has-more")
	}
	p.SetHasMore(true)
	if !p.Next() {
		t.Fatalf("expected advance with has-more")
	}
	if p.Next() {
		t.Fatalf("expected has-more to be consumed until the source reports again")
	}
	if got := p.Query().PageIndex; got != 1 {
		t.Fatalf("expected page 1, got %d", got)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
}

func TestParamsAndCancel(t *testing.T) {
	p, rec := newPager(t, WithPageSizes(25, 50), WithPageSize(50))
	want := url.Values{"pageIndex": {"0"}, "pageSize": {"50"}}
	if diff := cmp.Diff(want, p.Params()); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}

	var extra int
	cancel := p.Subscribe(func(Query) { extra++ })
	p.SetHasMore(true)
	p.Next()
	cancel()
	cancel()
	p.Prev()

	if extra != 1 {
		t.Fatalf("expected cancelled listener to see one event, got %d", extra)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events for the permanent listener, got %d", len(rec.events))
	}
}
