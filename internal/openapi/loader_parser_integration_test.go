package openapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formkit/internal/openapi/loader"
	"github.com/goliatone/go-formkit/internal/openapi/parser"
	"github.com/goliatone/go-formkit/pkg/openapi"
)

const adminDocument = `openapi: 3.0.0
info:
  title: Admin
  version: 1.0.0
paths:
  /auth/change-password:
    post:
      operationId: changePassword
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [oldPassword, newPassword]
              properties:
                oldPassword:
                  type: string
                newPassword:
                  type: string
                  minLength: 8
      responses:
        "200":
          description: ok
`

func TestLoadAndParseEverySourceKind(t *testing.T) {
	ctx := context.Background()
	data := []byte(adminDocument)

	path := filepath.Join(t.TempDir(), "admin.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
	}))
	defer server.Close()

	opts := openapi.NewOptions(
		openapi.WithFS(fstest.MapFS{"admin.yaml": {Data: data}}),
		openapi.WithRemote(server.Client(), 0),
	)
	l, p := loader.New(opts), parser.New(opts)

	for _, src := range []openapi.Source{openapi.ParseSource(path), openapi.FS("admin.yaml"), openapi.ParseSource(server.URL)} {
		doc, err := l.Load(ctx, src)
		if err != nil {
			t.Fatalf("load %s: %v", src, err)
		}
		ops, err := p.Operations(ctx, doc)
		if err != nil {
			t.Fatalf("parse %s: %v", src, err)
		}
		op, err := ops.Find("changePassword")
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if op.Method != "POST" || op.Path != "/auth/change-password" {
			t.Fatalf("%s: unexpected routing %s %s", src, op.Method, op.Path)
		}
	}
}

func TestLoaderRejectsRemoteWhenDisabled(t *testing.T) {
	l := loader.New(openapi.NewOptions())
	if _, err := l.Load(context.Background(), openapi.URL("http://example.invalid/doc.yaml")); err == nil {
		t.Fatalf("expected error when remote documents are disabled")
	}
}

func TestLoaderEnforcesSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	l := loader.New(openapi.NewOptions(openapi.WithRemote(nil, 0), openapi.WithMaxBytes(16)))
	_, err := l.Load(context.Background(), openapi.URL(server.URL))
	if err == nil || !strings.Contains(err.Error(), "size limit") {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestFindListsKnownOperations(t *testing.T) {
	ops := openapi.Operations{"b": {}, "a": {}}
	_, err := ops.Find("missing")
	if !errors.Is(err, openapi.ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "(have a, b)") {
		t.Fatalf("expected known ids in error, got %v", err)
	}
}
