// Package loader fetches OpenAPI documents from disk, an fs.FS or HTTP.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/goliatone/go-formkit/pkg/openapi"
)

// Loader implements openapi.Loader.
type Loader struct {
	files    fs.FS
	client   *http.Client
	maxBytes int64
}

var _ openapi.Loader = (*Loader)(nil)

// New builds a Loader. Remote sources are rejected unless opts.Remote is set.
func New(opts openapi.Options) *Loader {
	l := &Loader{files: opts.FS, maxBytes: opts.MaxBytes}
	if l.maxBytes <= 0 {
		l.maxBytes = openapi.DefaultMaxBytes
	}
	if opts.Remote {
		client := http.Client{Timeout: opts.Timeout}
		if opts.HTTPClient != nil {
			client = *opts.HTTPClient
			if client.Timeout == 0 {
				client.Timeout = opts.Timeout
			}
		}
		l.client = &client
	}
	return l
}

// Load reads src. Empty payloads are an error.
func (l *Loader) Load(ctx context.Context, src openapi.Source) (openapi.Document, error) {
	if err := ctx.Err(); err != nil {
		return openapi.Document{}, err
	}
	if src.Location == "" {
		return openapi.Document{}, fmt.Errorf("openapi: load %s: empty location", src.Kind)
	}

	var (
		raw []byte
		err error
	)
	switch src.Kind {
	case openapi.SourceFile:
		raw, err = os.ReadFile(src.Location)
	case openapi.SourceFS:
		if l.files == nil {
			return openapi.Document{}, fmt.Errorf("openapi: load %s: no filesystem configured", src)
		}
		raw, err = fs.ReadFile(l.files, src.Location)
	case openapi.SourceURL:
		if l.client == nil {
			return openapi.Document{}, fmt.Errorf("openapi: load %s: remote documents are disabled", src)
		}
		raw, err = l.fetch(ctx, src.Location)
	default:
		err = fmt.Errorf("unknown source kind %q", src.Kind)
	}
	if err != nil {
		return openapi.Document{}, fmt.Errorf("openapi: load %s: %w", src, err)
	}
	if len(raw) == 0 {
		return openapi.Document{}, fmt.Errorf("openapi: load %s: document is empty", src)
	}
	return openapi.Document{Source: src, Raw: raw}, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > l.maxBytes {
		return nil, errors.New("document exceeds size limit")
	}
	return raw, nil
}
