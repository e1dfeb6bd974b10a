// Package formkit bundles the built-in entity schemas and the OpenAPI entry
// points. The building blocks live under pkg/: schema validation, the form
// controller, uploads, selection, paging and the API client.
package formkit

import (
	"embed"
	"io/fs"

	"github.com/goliatone/go-formkit/pkg/schema"
)

//go:embed schemas/*.yaml
var embeddedSchemas embed.FS

// SchemasFS exposes the built-in definition files (login, change-password,
// account, item, pool, event, task).
func SchemasFS() fs.FS {
	sub, err := fs.Sub(embeddedSchemas, "schemas")
	if err != nil {
		return embeddedSchemas
	}
	return sub
}

// Schemas compiles the built-in definitions.
func Schemas(options ...schema.CompileOption) (*schema.Store, error) {
	return schema.LoadFS(SchemasFS(), options...)
}

// MustSchema returns a built-in schema and panics when it is missing.
func MustSchema(id string) *schema.Schema {
	store, err := Schemas()
	if err != nil {
		panic(err)
	}
	s, ok := store.Schema(id)
	if !ok {
		panic("formkit: unknown built-in schema " + id)
	}
	return s
}
