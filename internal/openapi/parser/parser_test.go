package parser

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formkit/pkg/openapi"
)

const itemsDocument = `{
  "openapi": "3.0.0",
  "info": { "title": "Admin", "version": "1.0.0" },
  "paths": {
    "/items": {
      "post": {
        "operationId": "createItem",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["name"],
                "properties": {
                  "name": { "type": "string", "minLength": 2, "maxLength": 64 },
                  "price": { "type": "number", "minimum": 0 },
                  "tags": { "type": "array", "minItems": 1, "items": { "type": "string" } }
                }
              }
            }
          }
        },
        "responses": { "200": { "description": "ok" } }
      }
    }
  }
}`

func TestOperationsExtractsValidationKeywords(t *testing.T) {
	p := New(openapi.NewOptions())
	doc := openapi.Document{Source: openapi.FS("admin.json"), Raw: []byte(itemsDocument)}

	ops, err := p.Operations(context.Background(), doc)
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	op, err := ops.Find("createItem")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if op.Method != "POST" || op.Path != "/items" {
		t.Fatalf("unexpected operation routing: %s %s", op.Method, op.Path)
	}

	name := op.RequestBody.Properties["name"]
	if name.MinLength == nil || *name.MinLength != 2 {
		t.Fatalf("expected minLength 2, got %v", name.MinLength)
	}
	if name.MaxLength == nil || *name.MaxLength != 64 {
		t.Fatalf("expected maxLength 64, got %v", name.MaxLength)
	}
	price := op.RequestBody.Properties["price"]
	if price.Minimum == nil || *price.Minimum != 0 {
		t.Fatalf("expected minimum 0, got %v", price.Minimum)
	}
	tags := op.RequestBody.Properties["tags"]
	if tags.MinItems == nil || *tags.MinItems != 1 {
		t.Fatalf("expected minItems 1, got %v", tags.MinItems)
	}
}

func TestOperationsKeysAnonymousOperations(t *testing.T) {
	const document = `{
  "openapi": "3.0.0",
  "info": { "title": "Admin", "version": "1.0.0" },
  "paths": {
    "/pools/{id}": {
      "put": {
        "parameters": [{ "name": "id", "in": "path", "required": true, "schema": { "type": "string" } }],
        "requestBody": {
          "content": {
            "application/x-www-form-urlencoded": {
              "schema": { "type": "object", "properties": { "name": { "type": "string" } } }
            }
          }
        },
        "responses": { "200": { "description": "ok" } }
      }
    }
  }
}`
	ops, err := New(openapi.NewOptions()).Operations(context.Background(), openapi.Document{Source: openapi.FS("pools.json"), Raw: []byte(document)})
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	op, err := ops.Find("put /pools/{id}")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if op.Method != "PUT" {
		t.Fatalf("expected PUT, got %s", op.Method)
	}
	if _, ok := op.RequestBody.Properties["name"]; !ok {
		t.Fatalf("expected form body properties, got %+v", op.RequestBody)
	}
}

func TestOperationsRejectsEmptyDocuments(t *testing.T) {
	const document = `{"openapi": "3.0.0", "info": {"title": "Empty", "version": "1.0.0"}, "paths": {}}`
	doc := openapi.Document{Source: openapi.FS("empty.json"), Raw: []byte(document)}

	if _, err := New(openapi.NewOptions()).Operations(context.Background(), doc); err == nil {
		t.Fatalf("expected error for a document without operations")
	}
	ops, err := New(openapi.NewOptions(openapi.WithAllowEmpty(true))).Operations(context.Background(), doc)
	if err != nil {
		t.Fatalf("allow empty: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected no operations, got %v", ops.IDs())
	}
}

func TestConvertSchemaHandlesRecursiveReferences(t *testing.T) {
	const document = `{
  "openapi": "3.0.0",
  "info": { "title": "Cycle", "version": "1.0.0" },
  "paths": {},
  "components": {
    "schemas": {
      "Pool": {
        "type": "object",
        "properties": {
          "parent": { "$ref": "#/components/schemas/Pool" }
        }
      }
    }
  }
}`

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(document))
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	pool := doc.Components.Schemas["Pool"]
	if pool == nil {
		t.Fatalf("schema Pool not found")
	}

	converted := newConverter().convert(pool)
	parent, ok := converted.Properties["parent"]
	if !ok {
		t.Fatalf("expected parent property")
	}
	if parent.Ref == "" {
		t.Fatalf("expected recursive property to keep its reference")
	}
	if len(parent.Properties) != 0 {
		t.Fatalf("expected recursion to stop at the repeated node")
	}
}
