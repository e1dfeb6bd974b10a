package formkit

import (
	"context"

	"github.com/goliatone/go-formkit/internal/openapi/loader"
	"github.com/goliatone/go-formkit/internal/openapi/parser"
	"github.com/goliatone/go-formkit/pkg/openapi"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// NewLoader returns the kin-openapi independent document loader.
func NewLoader(options ...openapi.Option) openapi.Loader {
	return loader.New(openapi.NewOptions(options...))
}

// NewParser returns the kin-openapi backed operation parser.
func NewParser(options ...openapi.Option) openapi.Parser {
	return parser.New(openapi.NewOptions(options...))
}

// OperationsFromOpenAPI loads source and lists its operations.
func OperationsFromOpenAPI(ctx context.Context, source openapi.Source, options ...openapi.Option) (openapi.Operations, error) {
	opts := openapi.NewOptions(options...)
	doc, err := loader.New(opts).Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return parser.New(opts).Operations(ctx, doc)
}

// DefinitionFromOpenAPI derives a schema definition from the request body of
// operationID in source.
func DefinitionFromOpenAPI(ctx context.Context, source openapi.Source, operationID string, options ...openapi.Option) (schema.Definition, error) {
	ops, err := OperationsFromOpenAPI(ctx, source, options...)
	if err != nil {
		return schema.Definition{}, err
	}
	op, err := ops.Find(operationID)
	if err != nil {
		return schema.Definition{}, err
	}
	return schema.FromOperation(op)
}
