// Package parser extracts operations and request body schemas from OpenAPI 3
// documents with kin-openapi.
package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formkit/pkg/openapi"
)

// bodyMediaTypes are tried in order before falling back to any media type.
var bodyMediaTypes = []string{"application/json", "multipart/form-data", "application/x-www-form-urlencoded"}

// Parser implements openapi.Parser.
type Parser struct {
	strict     bool
	allowEmpty bool
}

var _ openapi.Parser = (*Parser)(nil)

// New builds a Parser.
func New(opts openapi.Options) *Parser {
	return &Parser{strict: opts.Strict, allowEmpty: opts.AllowEmpty}
}

// Operations returns every operation in doc keyed by operationId. Operations
// without an id are keyed "<method> <path>" in lower case.
func (p *Parser) Operations(ctx context.Context, doc openapi.Document) (openapi.Operations, error) {
	if len(doc.Raw) == 0 {
		return nil, errors.New("openapi: parse: document is empty")
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	spec, err := loader.LoadFromData(doc.Raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: parse %s: %w", doc.Source, err)
	}
	if p.strict {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate %s: %w", doc.Source, err)
		}
	}

	ops := make(openapi.Operations)
	if spec.Paths != nil {
		for path, item := range spec.Paths.Map() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if item == nil {
				continue
			}
			for method, operation := range item.Operations() {
				if !formMethod(method) || operation == nil {
					continue
				}
				id := operation.OperationID
				if id == "" {
					id = strings.ToLower(method + " " + path)
				}
				op, err := openapi.NewOperation(id, method, path, requestSchema(operation.RequestBody))
				if err != nil {
					return nil, err
				}
				op.Summary = operation.Summary
				ops[id] = op
			}
		}
	}
	if len(ops) == 0 && !p.allowEmpty {
		return nil, fmt.Errorf("openapi: %s declares no operations", doc.Source)
	}
	return ops, nil
}

func formMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func requestSchema(body *openapi3.RequestBodyRef) openapi.Schema {
	if body == nil {
		return openapi.Schema{}
	}
	if body.Value == nil {
		return openapi.Schema{Ref: body.Ref}
	}
	content := body.Value.Content
	for _, mediaType := range bodyMediaTypes {
		if mt := content.Get(mediaType); mt != nil {
			return newConverter().convert(mt.Schema)
		}
	}
	for _, mt := range content {
		if mt != nil {
			return newConverter().convert(mt.Schema)
		}
	}
	return openapi.Schema{}
}

// converter tracks the schemas on the current descent so self-referencing
// components stop at the repeated node, keeping only its $ref.
type converter struct {
	onPath map[*openapi3.Schema]bool
}

func newConverter() *converter {
	return &converter{onPath: make(map[*openapi3.Schema]bool)}
}

func (c *converter) convert(ref *openapi3.SchemaRef) openapi.Schema {
	if ref == nil {
		return openapi.Schema{}
	}
	src := ref.Value
	if src == nil || c.onPath[src] {
		return openapi.Schema{Ref: ref.Ref}
	}
	c.onPath[src] = true
	defer delete(c.onPath, src)

	out := openapi.Schema{
		Ref:       ref.Ref,
		Type:      schemaType(src.Type),
		Format:    src.Format,
		Title:     src.Title,
		Pattern:   src.Pattern,
		Required:  append([]string(nil), src.Required...),
		Enum:      append([]any(nil), src.Enum...),
		Minimum:   copyFloat(src.Min),
		Maximum:   copyFloat(src.Max),
		MaxLength: intFromUint(src.MaxLength),
	}
	if src.MinLength > 0 {
		out.MinLength = intFromUint(&src.MinLength)
	}
	if src.MinItems > 0 {
		out.MinItems = intFromUint(&src.MinItems)
	}
	if len(src.Properties) > 0 {
		out.Properties = make(map[string]openapi.Schema, len(src.Properties))
		for name, prop := range src.Properties {
			out.Properties[name] = c.convert(prop)
		}
	}
	if src.Items != nil {
		items := c.convert(src.Items)
		out.Items = &items
	}
	for _, member := range src.AllOf {
		merge(&out, c.convert(member))
	}
	return out
}

// merge folds an allOf member into dst. Properties and required names are
// unioned; scalar keywords only fill gaps.
func merge(dst *openapi.Schema, member openapi.Schema) {
	if dst.Type == "" {
		dst.Type = member.Type
	}
	if dst.Title == "" {
		dst.Title = member.Title
	}
	for name, prop := range member.Properties {
		if dst.Properties == nil {
			dst.Properties = make(map[string]openapi.Schema, len(member.Properties))
		}
		if _, ok := dst.Properties[name]; !ok {
			dst.Properties[name] = prop
		}
	}
	dst.Required = append(dst.Required, member.Required...)
}

// schemaType keeps the first declared type; "null" only counts when alone.
func schemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	for _, v := range values {
		if v != openapi3.TypeNull {
			return v
		}
	}
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func intFromUint(v *uint64) *int {
	if v == nil {
		return nil
	}
	out := int(*v)
	return &out
}
