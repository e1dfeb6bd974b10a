// Package openapi holds the backend-neutral view of an OpenAPI description:
// where a document comes from, the operations it declares and the request
// body shapes the schema package turns into form definitions. The kin-openapi
// backed implementations live under internal/openapi.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOperationNotFound is returned by Operations.Find.
var ErrOperationNotFound = errors.New("openapi: operation not found")

// SourceKind tells a Loader how to fetch a document.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceFS   SourceKind = "fs"
	SourceURL  SourceKind = "url"
)

// Source names a document location.
type Source struct {
	Kind     SourceKind
	Location string
}

func (s Source) String() string { return string(s.Kind) + ":" + s.Location }

// File points at a path on disk.
func File(path string) Source { return Source{Kind: SourceFile, Location: filepath.Clean(path)} }

// FS points at a name inside the loader's fs.FS.
func FS(name string) Source { return Source{Kind: SourceFS, Location: name} }

// URL points at an http or https document.
func URL(raw string) Source { return Source{Kind: SourceURL, Location: raw} }

// ParseSource treats http(s) references as URLs and everything else as a
// file path.
func ParseSource(ref string) Source {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return URL(ref)
	}
	return File(ref)
}

// Document is a fetched, not yet parsed, OpenAPI payload.
type Document struct {
	Source Source
	Raw    []byte
}

// Loader fetches documents.
type Loader interface {
	Load(ctx context.Context, src Source) (Document, error)
}

// Parser extracts the operations of a document.
type Parser interface {
	Operations(ctx context.Context, doc Document) (Operations, error)
}

// Operation is one method+path pair and its request body.
type Operation struct {
	ID          string
	Method      string
	Path        string
	Summary     string
	RequestBody Schema
}

// NewOperation normalises the method and checks the routing fields.
func NewOperation(id, method, path string, body Schema) (Operation, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch {
	case strings.TrimSpace(id) == "":
		return Operation{}, errors.New("openapi: operation id is required")
	case method == "":
		return Operation{}, fmt.Errorf("openapi: operation %s: method is required", id)
	case !strings.HasPrefix(path, "/"):
		return Operation{}, fmt.Errorf("openapi: operation %s: path %q must start with /", id, path)
	}
	return Operation{ID: id, Method: method, Path: path, RequestBody: body}, nil
}

// Operations indexes operations by ID.
type Operations map[string]Operation

// Find returns the operation with id.
func (ops Operations) Find(id string) (Operation, error) {
	op, ok := ops[id]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %q (have %s)", ErrOperationNotFound, id, strings.Join(ops.IDs(), ", "))
	}
	return op, nil
}

// IDs lists operation IDs in sorted order.
func (ops Operations) IDs() []string {
	ids := make([]string, 0, len(ops))
	for id := range ops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Schema is a request body or property, reduced to the keywords that map
// onto validation rules. Ref is kept for references that could not be
// expanded (cycles).
type Schema struct {
	Ref        string
	Type       string
	Format     string
	Title      string
	Required   []string
	Properties map[string]Schema
	Items      *Schema
	Enum       []any
	Minimum    *float64
	Maximum    *float64
	MinLength  *int
	MaxLength  *int
	MinItems   *int
	Pattern    string
}
