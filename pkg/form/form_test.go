package form_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/internal/testserver"
	"github.com/goliatone/go-formkit/pkg/api"
	"github.com/goliatone/go-formkit/pkg/form"
	"github.com/goliatone/go-formkit/pkg/notify"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/upload"
)

func poolSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustCompile(schema.Definition{
		ID:    "pool",
		Title: "Reward pool",
		Fields: []schema.FieldDefinition{
			{Name: "name", Type: schema.FieldTypeString, Rules: []schema.Rule{{Kind: schema.RuleRequired}}},
			{Name: "note", Type: schema.FieldTypeString},
			{Name: "secret", Type: schema.FieldTypeString},
			{Name: "images", Type: schema.FieldTypeArray},
			{
				Name: "rewards",
				Type: schema.FieldTypeArray,
				Items: &schema.Definition{
					ID: "reward",
					Fields: []schema.FieldDefinition{
						{Name: "amount", Type: schema.FieldTypeInteger, Rules: []schema.Rule{
							{Kind: schema.RuleRequired},
							{Kind: schema.RuleInteger},
						}},
					},
				},
			},
		},
	})
}

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []map[string]any
	errs  []error
}

func (r *recordingSubmitter) Submit(_ context.Context, values map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, values)
	if len(r.errs) == 0 {
		return nil
	}
	err := r.errs[0]
	r.errs = r.errs[1:]
	return err
}

func (r *recordingSubmitter) Calls() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.calls...)
}

type countingRefresher struct {
	mu    sync.Mutex
	count int
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return nil
}

func (c *countingRefresher) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestSubmitInvalidCollectsEveryFieldAndSkipsNetwork(t *testing.T) {
	sub := &recordingSubmitter{}
	c := form.New(poolSchema(t), sub, form.WithValues(map[string]any{
		"rewards": []any{
			map[string]any{"amount": "x"},
			map[string]any{},
		},
	}))

	err := c.Submit(context.Background())
	if !errors.Is(err, form.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	state := c.Snapshot()
	if state.Status != form.StatusIdle {
		t.Fatalf("status = %s, want idle", state.Status)
	}
	gotPaths := make([]string, 0, len(state.Errors))
	for p := range state.Errors {
		gotPaths = append(gotPaths, p)
	}
	want := map[string]bool{"name": true, "rewards.0.amount": true, "rewards.1.amount": true}
	if len(gotPaths) != len(want) {
		t.Fatalf("errors = %v", state.Errors)
	}
	for _, p := range gotPaths {
		if !want[p] {
			t.Fatalf("unexpected error path %q in %v", p, state.Errors)
		}
	}
	if len(sub.Calls()) != 0 {
		t.Fatalf("submitter must not be called for invalid input")
	}
}

func TestSubmitSuccessRefreshesAndCoerces(t *testing.T) {
	sub := &recordingSubmitter{}
	refresher := &countingRefresher{}
	var succeeded form.State
	c := form.New(poolSchema(t), sub,
		form.WithValues(map[string]any{"name": "Daily", "rewards": []any{map[string]any{"amount": "3"}}}),
		form.WithRefresher(refresher),
		form.WithOnSuccess(func(_ context.Context, s form.State) { succeeded = s }),
	)

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := c.Snapshot().Status; got != form.StatusSuccess {
		t.Fatalf("status = %s", got)
	}
	if refresher.Count() != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.Count())
	}
	if succeeded.Status != form.StatusSuccess {
		t.Fatalf("on success saw %s", succeeded.Status)
	}
	calls := sub.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	want := map[string]any{"name": "Daily", "rewards": []any{map[string]any{"amount": int64(3)}}}
	if diff := cmp.Diff(want, calls[0]); diff != "" {
		t.Fatalf("submitted values mismatch (-want +got):\n%s", diff)
	}
}

func TestServerFieldErrorsMapOntoDeclaredPaths(t *testing.T) {
	recorder := &notify.Recorder{}
	sub := &recordingSubmitter{errs: []error{&api.Error{
		Method:     "POST",
		URL:        "/pools",
		StatusCode: 422,
		Message:    "record already exists",
		Fields: map[string][]string{
			"name":                   {"is already taken"},
			"/body/rewards/0/amount": {"too large"},
			"unknownField":           {"not allowed"},
		},
	}}}
	values := map[string]any{"name": "Daily", "rewards": []any{map[string]any{"amount": 1}}}
	c := form.New(poolSchema(t), sub, form.WithValues(values), form.WithNotifier(recorder))

	err := c.Submit(context.Background())
	if api.StatusCode(err) != 422 {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	state := c.Snapshot()
	if state.Status != form.StatusError {
		t.Fatalf("status = %s", state.Status)
	}
	wantErrors := map[string]string{"name": "is already taken", "rewards.0.amount": "too large"}
	if diff := cmp.Diff(wantErrors, state.Errors); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	if state.FormError != "record already exists; not allowed" {
		t.Fatalf("form error = %q", state.FormError)
	}
	if diff := cmp.Diff(values, state.Values); diff != "" {
		t.Fatalf("values must be preserved (-want +got):\n%s", diff)
	}
	notices := recorder.Notices()
	if len(notices) != 1 || notices[0].Level != notify.LevelError || notices[0].Title != "Reward pool" {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestSetClearsOnlyThatPathAndLeavesError(t *testing.T) {
	sub := &recordingSubmitter{errs: []error{&api.Error{
		StatusCode: 400,
		Message:    "bad",
		Fields:     map[string][]string{"name": {"taken"}, "note": {"too rude"}},
	}}}
	c := form.New(poolSchema(t), sub, form.WithValues(map[string]any{"name": "Daily"}))
	_ = c.Submit(context.Background())

	if err := c.Set("name", "Weekly"); err != nil {
		t.Fatalf("set: %v", err)
	}
	state := c.Snapshot()
	if state.Status != form.StatusIdle {
		t.Fatalf("status = %s, want idle", state.Status)
	}
	if diff := cmp.Diff(map[string]string{"note": "too rude"}, state.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRetryOnlyFromError(t *testing.T) {
	sub := &recordingSubmitter{errs: []error{errors.New("connection reset")}}
	c := form.New(poolSchema(t), sub, form.WithValues(map[string]any{"name": "Daily"}))

	if err := c.Retry(context.Background()); !errors.Is(err, form.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable, got %v", err)
	}
	if err := c.Submit(context.Background()); err == nil {
		t.Fatalf("expected first submit to fail")
	}
	if got := c.Snapshot().FormError; got != "form: submit: connection reset" {
		t.Fatalf("form error = %q", got)
	}
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	state := c.Snapshot()
	if state.Status != form.StatusSuccess || state.FormError != "" {
		t.Fatalf("unexpected state after retry %+v", state)
	}
	if len(sub.Calls()) != 2 {
		t.Fatalf("calls = %d", len(sub.Calls()))
	}
}

func TestSubmitRejectsReentry(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	sub := form.SubmitFunc(func(ctx context.Context, _ map[string]any) error {
		close(entered)
		<-release
		return nil
	})
	c := form.New(poolSchema(t), sub, form.WithValues(map[string]any{"name": "Daily"}))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-entered

	if err := c.Submit(context.Background()); !errors.Is(err, form.ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}
	if err := c.Retry(context.Background()); !errors.Is(err, form.ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress from retry, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

func TestResetRefusedWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	var mu sync.Mutex
	active, peak := 0, 0
	sub := form.SubmitFunc(func(ctx context.Context, _ map[string]any) error {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		entered <- struct{}{}
		<-release
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	c := form.New(poolSchema(t), sub, form.WithValues(map[string]any{"name": "Daily"}))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-entered

	if err := c.Reset(); !errors.Is(err, form.ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress from reset, got %v", err)
	}
	if got := c.Snapshot().Status; got != form.StatusSubmitting {
		t.Fatalf("expected submitting after refused reset, got %v", got)
	}
	if err := c.Submit(context.Background()); !errors.Is(err, form.ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if peak != 1 {
		t.Fatalf("expected one submission at a time, saw %d", peak)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("reset after submit: %v", err)
	}
	if got := c.Snapshot().Status; got != form.StatusIdle {
		t.Fatalf("expected idle after reset, got %v", got)
	}
}

func TestSanitizesStringsExceptRawFields(t *testing.T) {
	sub := &recordingSubmitter{}
	c := form.New(poolSchema(t), sub,
		form.WithValues(map[string]any{
			"name":   "<b>Sword</b> & shield",
			"note":   "<script>alert(1)</script>plain",
			"secret": "p<a>ss&word",
		}),
		form.WithRawFields("secret"),
	)
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got := sub.Calls()[0]
	want := map[string]any{"name": "Sword & shield", "note": "plain", "secret": "p<a>ss&word"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sanitized values mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusTransitionsAreObservable(t *testing.T) {
	c := form.New(poolSchema(t), &recordingSubmitter{}, form.WithValues(map[string]any{"name": "Daily"}))
	var mu sync.Mutex
	var seen []form.Status
	cancel := c.Subscribe(func(s form.State) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})
	defer cancel()

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []form.Status{form.StatusValidating, form.StatusSubmitting, form.StatusSuccess, form.StatusIdle}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestClosedControllerRejectsWork(t *testing.T) {
	c := form.New(poolSchema(t), &recordingSubmitter{})
	c.Close()
	c.Close()
	if err := c.Submit(context.Background()); !errors.Is(err, form.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.Set("name", "x"); !errors.Is(err, form.ErrClosed) {
		t.Fatalf("expected ErrClosed from Set, got %v", err)
	}
}

func newUploadTracker(t *testing.T, srv *testserver.Server) *upload.Tracker {
	t.Helper()
	token, err := api.New(srv.APIURL()).Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	client := upload.NewClient(srv.APIURL(), upload.WithToken(func(context.Context) (string, error) {
		return token, nil
	}))
	return upload.NewTracker(client, "upload", upload.DefaultFieldName)
}

func addFile(t *testing.T, tracker *upload.Tracker, name, body string) {
	t.Helper()
	_, err := tracker.Add(context.Background(), upload.File{
		Name:        name,
		Size:        int64(len(body)),
		ContentType: "image/png",
		Reader:      strings.NewReader(body),
	})
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
}

func TestFailedUploadBlocksSubmitAndKeepsSuccessfulURLs(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	tracker := newUploadTracker(t, srv)
	defer tracker.Close()

	addFile(t, tracker, "a.png", "first")
	addFile(t, tracker, "reject-b.png", "second")

	sub := &recordingSubmitter{}
	c := form.New(poolSchema(t), sub,
		form.WithValues(map[string]any{"name": "Daily"}),
		form.WithTracker(tracker),
		form.WithUploadField("images"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Submit(ctx)

	var failed *upload.FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedError, got %v", err)
	}
	if diff := cmp.Diff([]string{"reject-b.png"}, failed.Files); diff != "" {
		t.Fatalf("failed files mismatch (-want +got):\n%s", diff)
	}
	state := c.Snapshot()
	if state.Status != form.StatusError {
		t.Fatalf("status = %s", state.Status)
	}
	if state.FormError != "upload failed: reject-b.png" {
		t.Fatalf("form error should name only the failed file: %q", state.FormError)
	}
	if len(sub.Calls()) != 0 {
		t.Fatalf("submit must be blocked by the failed upload")
	}
	urls := tracker.URLs()
	if len(urls) != 1 || !strings.HasSuffix(urls[0], "/files/a.png") {
		t.Fatalf("successful upload url not retained: %v", urls)
	}
}

func TestUploadURLsAreSubmitted(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	tracker := newUploadTracker(t, srv)

	addFile(t, tracker, "a.png", "first")
	addFile(t, tracker, "b.png", "second")

	sub := &recordingSubmitter{}
	c := form.New(poolSchema(t), sub,
		form.WithValues(map[string]any{"name": "Daily"}),
		form.WithTracker(tracker),
		form.WithUploadField("images"),
	)
	defer c.Close()

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := []any{srv.URL + "/files/a.png", srv.URL + "/files/b.png"}
	if diff := cmp.Diff(want, sub.Calls()[0]["images"]); diff != "" {
		t.Fatalf("submitted images mismatch (-want +got):\n%s", diff)
	}
	if got, _ := c.Get("images"); cmp.Diff(want, got) != "" {
		t.Fatalf("form values should keep upload urls, got %v", got)
	}
	if data, ok := srv.Uploaded("b.png"); !ok || string(data) != "second" {
		t.Fatalf("server did not receive b.png")
	}
}
