package session_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-formkit/internal/testserver"
	"github.com/goliatone/go-formkit/pkg/api"
	"github.com/goliatone/go-formkit/pkg/session"
)

func TestGormStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "session.sqlite")

	store, err := session.OpenGormStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, session.Record{Username: "admin", Token: "t1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, session.Record{Username: "admin", Token: "t2"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := session.OpenGormStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	record, ok, err := reopened.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("expected record, got ok=%v err=%v", ok, err)
	}
	if record.Token != "t2" || record.Username != "admin" {
		t.Fatalf("unexpected record %+v", record)
	}
	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := reopened.Load(ctx); ok {
		t.Fatalf("expected store cleared")
	}
}

func TestOpenRestoresPersistedToken(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	if err := store.Save(ctx, session.Record{Username: "admin", Token: "persisted"}); err != nil {
		t.Fatal(err)
	}
	s, err := session.Open(ctx, store)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !s.Authenticated() || s.Username() != "admin" {
		t.Fatalf("expected restored session")
	}
	token, _ := s.Token(ctx)
	if token != "persisted" {
		t.Fatalf("token = %q", token)
	}
}

func TestLoginLogoutAgainstBackend(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New()
	defer srv.Close()

	store := session.NewMemoryStore()
	s, err := session.Open(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	client := api.New(srv.APIURL(), api.WithTokenSource(s))

	if err := s.Login(ctx, client, "admin", "bad"); api.StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 login failure, got %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("failed login must not authenticate")
	}

	if err := s.Login(ctx, client, "admin", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok, _ := store.Load(ctx); !ok {
		t.Fatalf("expected token persisted")
	}
	if err := client.Get(ctx, "/items", nil, nil); err != nil {
		t.Fatalf("authenticated request: %v", err)
	}

	if err := s.Logout(ctx, client); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("expected logged out")
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatalf("expected persisted token cleared")
	}
	if err := s.Logout(ctx, client); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

type failingAuth struct{}

func (failingAuth) Login(context.Context, string, string) (string, error) { return "", nil }
func (failingAuth) Logout(context.Context) error                         { return errors.New("offline") }

func TestLogoutClearsLocallyWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	_ = store.Save(ctx, session.Record{Username: "admin", Token: "x"})
	s, _ := session.Open(ctx, store)

	if err := s.Logout(ctx, failingAuth{}); err == nil {
		t.Fatalf("expected remote failure reported")
	}
	if s.Authenticated() {
		t.Fatalf("expected local teardown")
	}
}
