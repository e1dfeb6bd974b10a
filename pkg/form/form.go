// Package form drives one form instance: it validates values against a
// compiled schema, waits for pending uploads, submits through a Submitter
// and maps backend errors back onto declared fields.
package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/fieldpath"
	"github.com/goliatone/go-formkit/pkg/notify"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/upload"
)

// Status is the submission lifecycle of a form.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

var (
	// ErrSubmitInProgress rejects Submit and Retry while a submission runs.
	ErrSubmitInProgress = errors.New("form: submit already in progress")
	// ErrNotRetryable is returned by Retry outside the error status.
	ErrNotRetryable = errors.New("form: nothing to retry")
	// ErrInvalid is returned by Submit when validation failed; the issues
	// are in State.Errors.
	ErrInvalid = errors.New("form: validation failed")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("form: controller closed")
)

// State is a snapshot of the form.
type State struct {
	Values    map[string]any
	Errors    map[string]string
	FormError string
	Status    Status
}

// Submitter sends validated values to the backend.
type Submitter interface {
	Submit(ctx context.Context, values map[string]any) error
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, values map[string]any) error

func (f SubmitFunc) Submit(ctx context.Context, values map[string]any) error {
	return f(ctx, values)
}

// Refresher reloads whatever shows the persisted data, usually a list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Option customises a Controller.
type Option func(*Controller)

// WithValues pre-populates the form, e.g. for editing a record.
func WithValues(values map[string]any) Option {
	return func(c *Controller) {
		c.initial = fieldpath.Clone(values)
	}
}

// WithTracker attaches the upload working set Submit waits on.
func WithTracker(tracker *upload.Tracker) Option {
	return func(c *Controller) {
		c.tracker = tracker
	}
}

// WithUploadField writes the URLs of successful uploads to path before
// submitting.
func WithUploadField(path string) Option {
	return func(c *Controller) {
		c.uploadField = path
	}
}

// WithRefresher is refreshed after a successful submission.
func WithRefresher(r Refresher) Option {
	return func(c *Controller) {
		c.refresher = r
	}
}

// WithOnSuccess runs fn after a successful submission and refresh.
func WithOnSuccess(fn func(ctx context.Context, state State)) Option {
	return func(c *Controller) {
		c.onSuccess = fn
	}
}

// WithNotifier receives top-level notices for failed submissions.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithSanitizer replaces the strict markup sanitizer. A nil sanitizer
// disables sanitizing.
func WithSanitizer(s Sanitizer) Option {
	return func(c *Controller) {
		c.sanitizer = s
	}
}

// WithRawFields exempts paths, such as passwords, from sanitizing.
func WithRawFields(paths ...string) Option {
	return func(c *Controller) {
		for _, p := range paths {
			c.raw[p] = true
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns the state of one form instance.
type Controller struct {
	schema    *schema.Schema
	submitter Submitter

	tracker     *upload.Tracker
	uploadField string
	refresher   Refresher
	onSuccess   func(ctx context.Context, state State)
	notifier    notify.Notifier
	sanitizer   Sanitizer
	raw         map[string]bool
	logger      *zap.Logger

	mu        sync.Mutex
	initial   map[string]any
	values    map[string]any
	errors    map[string]string
	formError string
	status    Status
	closed    bool
	listeners map[int]func(State)
	nextID    int
}

// New builds a controller for s. Values start empty unless WithValues is
// given.
func New(s *schema.Schema, submitter Submitter, options ...Option) *Controller {
	c := &Controller{
		schema:    s,
		submitter: submitter,
		notifier:  notify.Nop,
		sanitizer: StrictSanitizer(),
		raw:       make(map[string]bool),
		logger:    zap.NewNop(),
		initial:   map[string]any{},
		status:    StatusIdle,
		listeners: make(map[int]func(State)),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	c.values = fieldpath.Clone(c.initial)
	return c
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Get reads the value at path.
func (c *Controller) Get(path string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fieldpath.Get(c.values, path)
}

// Set writes value at path and clears that path's error. A form in the
// error status goes back to idle.
func (c *Controller) Set(path string, value any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := fieldpath.Set(c.values, path, value); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("form: set %s: %w", path, err)
	}
	delete(c.errors, path)
	if c.status == StatusError {
		c.status = StatusIdle
	}
	c.commitLocked()
	return nil
}

// Submit validates the values and, when valid, submits them. It returns
// ErrInvalid for validation failures, the upload or submitter failure when
// the submission failed, and ErrSubmitInProgress when called re-entrantly.
// The outcome is always reflected in the state as well.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.beginLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.status = StatusValidating
	values := fieldpath.Clone(c.values)
	c.commitLocked()

	result := c.schema.Validate(values)

	c.mu.Lock()
	if !result.Valid {
		c.errors = result.ByPath()
		c.formError = ""
		c.status = StatusIdle
		c.commitLocked()
		c.logger.Debug("form invalid", zap.String("form", c.schema.ID()), zap.Int("issues", len(result.Issues)))
		return ErrInvalid
	}
	c.errors = nil
	c.formError = ""
	c.status = StatusSubmitting
	c.commitLocked()

	return c.submit(ctx, result.Values)
}

// Retry resubmits the current values after a failed submission without
// validating again.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if err := c.beginLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.status != StatusError {
		c.mu.Unlock()
		return ErrNotRetryable
	}
	c.errors = nil
	c.formError = ""
	c.status = StatusSubmitting
	values := fieldpath.Clone(c.values)
	c.commitLocked()

	return c.submit(ctx, values)
}

func (c *Controller) beginLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.status == StatusValidating || c.status == StatusSubmitting {
		return ErrSubmitInProgress
	}
	return nil
}

func (c *Controller) submit(ctx context.Context, values map[string]any) error {
	if c.tracker != nil {
		if err := c.tracker.Wait(ctx); err != nil {
			return c.fail(ctx, fmt.Errorf("form: waiting for uploads: %w", err), nil)
		}
		if err := c.tracker.Err(); err != nil {
			return c.fail(ctx, err, nil)
		}
		if c.uploadField != "" {
			urls := make([]any, 0)
			for _, u := range c.tracker.URLs() {
				urls = append(urls, u)
			}
			if err := fieldpath.Set(values, c.uploadField, urls); err != nil {
				return c.fail(ctx, fmt.Errorf("form: upload field: %w", err), nil)
			}
			c.mu.Lock()
			_ = fieldpath.Set(c.values, c.uploadField, append([]any(nil), urls...))
			c.mu.Unlock()
		}
	}

	if c.sanitizer != nil {
		sanitizeValues(values, c.sanitizer, c.raw, "")
	}

	if err := c.submitter.Submit(ctx, values); err != nil {
		var fe FieldErrorer
		var fields map[string][]string
		if errors.As(err, &fe) {
			fields = fe.FieldErrors()
		}
		return c.fail(ctx, fmt.Errorf("form: submit: %w", err), fields)
	}

	c.mu.Lock()
	c.status = StatusSuccess
	state := c.commitLocked()
	c.logger.Info("form submitted", zap.String("form", c.schema.ID()))

	if c.refresher != nil {
		if err := c.refresher.Refresh(ctx); err != nil {
			c.logger.Warn("refresh after submit failed", zap.Error(err))
		}
	}
	if c.onSuccess != nil {
		c.onSuccess(ctx, state)
	}
	return nil
}

// fail moves the form to the error status. Field messages land on declared
// paths; everything else joins the form-level message.
func (c *Controller) fail(ctx context.Context, err error, fields map[string][]string) error {
	mapping := MapFieldErrors(c.schema.Declares, fields)
	message := userMessage(err)
	if len(mapping.Form) > 0 {
		message = strings.Join(append([]string{message}, mapping.Form...), "; ")
	}

	c.mu.Lock()
	c.errors = mapping.Fields
	c.formError = message
	c.status = StatusError
	c.commitLocked()

	c.logger.Warn("form submit failed", zap.String("form", c.schema.ID()), zap.Error(err))
	c.notifier.Notify(ctx, notify.Notice{Level: notify.LevelError, Title: c.title(), Body: message})
	return err
}

func (c *Controller) title() string {
	if t := c.schema.Title(); t != "" {
		return t
	}
	return c.schema.ID()
}

func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}

// Reset restores the initial values and clears errors. It is refused while
// a submission is in flight.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if err := c.beginLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.values = fieldpath.Clone(c.initial)
	c.errors = nil
	c.formError = ""
	c.status = StatusIdle
	c.commitLocked()
	return nil
}

// Close drops subscribers and releases the attached upload tracker.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.listeners = make(map[int]func(State))
	tracker := c.tracker
	c.mu.Unlock()
	if tracker != nil {
		tracker.Close()
	}
}

// Subscribe registers fn for every state change.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// commitLocked releases the lock and notifies listeners with the new state.
func (c *Controller) commitLocked() State {
	state := c.snapshotLocked()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
	return state
}

func (c *Controller) snapshotLocked() State {
	state := State{
		Values:    fieldpath.Clone(c.values),
		FormError: c.formError,
		Status:    c.status,
	}
	if len(c.errors) > 0 {
		state.Errors = make(map[string]string, len(c.errors))
		for k, v := range c.errors {
			state.Errors[k] = v
		}
	}
	return state
}
