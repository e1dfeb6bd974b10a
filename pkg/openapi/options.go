package openapi

import (
	"io/fs"
	"net/http"
	"time"
)

// DefaultMaxBytes caps documents fetched over HTTP.
const DefaultMaxBytes = 8 << 20

// Options configures the loader and the parser. Remote fetching stays off
// until WithRemote is applied.
type Options struct {
	FS         fs.FS
	Remote     bool
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxBytes   int64

	// Strict runs kin-openapi's document validation before extraction.
	Strict bool
	// AllowEmpty accepts documents that declare no operations.
	AllowEmpty bool
}

// Option mutates Options.
type Option func(*Options)

// WithFS serves FS sources from files.
func WithFS(files fs.FS) Option {
	return func(o *Options) { o.FS = files }
}

// WithRemote enables URL sources. A nil client uses a private default client
// bounded by timeout.
func WithRemote(client *http.Client, timeout time.Duration) Option {
	return func(o *Options) {
		o.Remote = true
		o.HTTPClient = client
		o.Timeout = timeout
	}
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(limit int64) Option {
	return func(o *Options) { o.MaxBytes = limit }
}

// WithStrict toggles document validation.
func WithStrict(enabled bool) Option {
	return func(o *Options) { o.Strict = enabled }
}

// WithAllowEmpty accepts component-only documents.
func WithAllowEmpty(enabled bool) Option {
	return func(o *Options) { o.AllowEmpty = enabled }
}

// NewOptions applies options over the defaults.
func NewOptions(options ...Option) Options {
	o := Options{Strict: true, MaxBytes: DefaultMaxBytes}
	for _, opt := range options {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
