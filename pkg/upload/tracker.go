package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the lifecycle of one tracked upload.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether s is final.
func (s Status) Terminal() bool {
	return s != StatusUploading
}

// State is the observable state of one file in the working set.
type State struct {
	ID       string
	File     string
	Progress int
	Status   Status
	URL      string
	Err      error
}

// Uploader performs a single upload. *Client implements it.
type Uploader interface {
	Upload(ctx context.Context, destination string, file File, fieldName string, options ...UploadOption) Result
}

// FailedError lists the files whose uploads failed.
type FailedError struct {
	Files []string
}

func (e *FailedError) Error() string {
	return "upload failed: " + strings.Join(e.Files, ", ")
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger attaches a logger.
func WithTrackerLogger(logger *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

type entry struct {
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	preview Preview
}

// Tracker is the working set of uploads attached to one form. Uploads run
// concurrently; progress ticks are applied idempotently (repeated or lower
// ticks are ignored and terminal states never change again).
type Tracker struct {
	uploader    Uploader
	destination string
	fieldName   string
	logger      *zap.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	order     []string
	listeners map[int]func(State)
	nextID    int
	closed    bool
	wg        sync.WaitGroup
}

// NewTracker returns a Tracker that uploads to destination under fieldName.
func NewTracker(uploader Uploader, destination, fieldName string, options ...TrackerOption) *Tracker {
	t := &Tracker{
		uploader:    uploader,
		destination: destination,
		fieldName:   fieldName,
		logger:      zap.NewNop(),
		entries:     make(map[string]*entry),
		listeners:   make(map[int]func(State)),
	}
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// ErrTrackerClosed is returned by Add after Close.
var ErrTrackerClosed = errors.New("upload: tracker closed")

// Add starts uploading file and returns its id.
func (t *Tracker) Add(ctx context.Context, file File) (string, error) {
	id := uuid.NewString()
	uctx, cancel := context.WithCancel(ctx)
	e := &entry{
		state:   State{ID: id, File: file.Name, Status: StatusUploading},
		cancel:  cancel,
		done:    make(chan struct{}),
		preview: file.Preview,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		if file.Preview != nil {
			file.Preview.Release()
		}
		return "", ErrTrackerClosed
	}
	t.entries[id] = e
	t.order = append(t.order, id)
	t.wg.Add(1)
	state := e.state
	t.mu.Unlock()
	t.emit(state)

	go func() {
		defer t.wg.Done()
		defer close(e.done)
		defer cancel()
		result := t.uploader.Upload(uctx, t.destination, file, t.fieldName, WithProgress(func(p Progress) {
			t.Progress(id, p.Percent())
		}))
		t.finish(id, result)
	}()
	return id, nil
}

// Progress records pct for id. Ticks that do not move the progress forward,
// and ticks for finished or unknown entries, are ignored.
func (t *Tracker) Progress(id string, pct int) {
	if pct > 100 {
		pct = 100
	}
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.state.Status.Terminal() || pct <= e.state.Progress {
		t.mu.Unlock()
		return
	}
	e.state.Progress = pct
	state := e.state
	t.mu.Unlock()
	t.emit(state)
}

func (t *Tracker) finish(id string, result Result) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	if result.Success {
		e.state.Status = StatusSuccess
		e.state.Progress = 100
		e.state.URL = result.URL
	} else {
		e.state.Status = StatusError
		e.state.Err = fmt.Errorf("%s: %s", e.state.File, result.Message)
	}
	state := e.state
	t.mu.Unlock()

	if state.Status == StatusError {
		t.logger.Warn("upload failed", zap.String("id", id), zap.String("file", state.File), zap.Error(state.Err))
	}
	t.emit(state)
}

// Remove drops id from the working set, cancelling the request when it is
// still in flight and releasing the file's preview. It reports whether the
// id was present.
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.entries, id)
	for i, candidate := range t.order {
		if candidate == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if !e.state.Status.Terminal() {
		e.state.Status = StatusCanceled
	}
	state := e.state
	t.mu.Unlock()

	e.cancel()
	if e.preview != nil {
		e.preview.Release()
	}
	t.emit(state)
	return true
}

// Wait blocks until every entry present at call time is terminal, or ctx is
// done.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	pending := make([]chan struct{}, 0, len(t.entries))
	for _, id := range t.order {
		pending = append(pending, t.entries[id].done)
	}
	t.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, done := range pending {
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// States returns every entry in the order files were added.
func (t *Tracker) States() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]State, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id].state)
	}
	return out
}

// State returns the entry for id.
func (t *Tracker) State(id string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Pending counts entries still uploading.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if !e.state.Status.Terminal() {
			n++
		}
	}
	return n
}

// Failed returns the entries that ended in error.
func (t *Tracker) Failed() []State {
	var out []State
	for _, s := range t.States() {
		if s.Status == StatusError {
			out = append(out, s)
		}
	}
	return out
}

// URLs returns the URLs of successful uploads in add order.
func (t *Tracker) URLs() []string {
	var out []string
	for _, s := range t.States() {
		if s.Status == StatusSuccess && s.URL != "" {
			out = append(out, s.URL)
		}
	}
	return out
}

// Err summarises failed uploads as a *FailedError, or nil.
func (t *Tracker) Err() error {
	failed := t.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	for i, s := range failed {
		names[i] = s.File
	}
	return &FailedError{Files: names}
}

// Subscribe registers fn for state changes of any entry.
func (t *Tracker) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Close cancels every in-flight upload, releases all previews and waits for
// the upload goroutines to exit. Further Adds fail.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	entries := make([]*entry, 0, len(t.entries))
	for _, id := range t.order {
		entries = append(entries, t.entries[id])
	}
	t.entries = make(map[string]*entry)
	t.order = nil
	t.listeners = make(map[int]func(State))
	t.mu.Unlock()

	for _, e := range entries {
		e.cancel()
		if e.preview != nil {
			e.preview.Release()
		}
	}
	t.wg.Wait()
}

func (t *Tracker) emit(state State) {
	t.mu.Lock()
	listeners := make([]func(State), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}
