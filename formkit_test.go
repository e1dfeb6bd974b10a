package formkit

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/pkg/openapi"
	"github.com/goliatone/go-formkit/pkg/schema"
)

func TestBuiltinSchemasCompile(t *testing.T) {
	store, err := Schemas()
	if err != nil {
		t.Fatalf("schemas: %v", err)
	}
	want := []string{"account", "change-password", "event", "item", "login", "pool", "task"}
	if diff := cmp.Diff(want, store.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if MustSchema("login").ID() != "login" {
		t.Fatalf("login schema not resolved")
	}
}

func TestMustSchemaPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustSchema("missing")
}

const petsDocument = `openapi: 3.0.0
info: { title: Pets, version: "1.0" }
paths:
  /pets:
    post:
      operationId: createPet
      summary: Create pet
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: { type: string, maxLength: 20 }
                age: { type: integer, minimum: 0 }
      responses:
        "201": { description: created }
`

func TestDefinitionFromOpenAPI(t *testing.T) {
	files := fstest.MapFS{"pets.yaml": {Data: []byte(petsDocument)}}
	def, err := DefinitionFromOpenAPI(context.Background(), openapi.FS("pets.yaml"), "createPet", openapi.WithFS(files))
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	s := schema.MustCompile(def)
	res := s.Validate(map[string]any{"age": "-1"})
	got := res.ByPath()
	if got["name"] == "" || got["age"] == "" {
		t.Fatalf("expected name and age issues, got %v", got)
	}

	_, err = DefinitionFromOpenAPI(context.Background(), openapi.FS("pets.yaml"), "missing", openapi.WithFS(files))
	if !errors.Is(err, openapi.ErrOperationNotFound) {
		t.Fatalf("expected unknown operation error, got %v", err)
	}
}
