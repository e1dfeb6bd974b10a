package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store keeps compiled schemas keyed by definition id. It is safe for
// concurrent readers when treated as immutable after construction.
type Store struct {
	schemas map[string]*Schema
	sources map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		schemas: make(map[string]*Schema),
		sources: make(map[string]string),
	}
}

// LoadFS walks fsys and compiles every JSON/YAML definition file. A file may
// hold a single definition (id + fields) or a list under "schemas". When fsys
// is nil the returned store is empty.
func LoadFS(fsys fs.FS, options ...CompileOption) (*Store, error) {
	store := NewStore()
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSchemaFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}

		defs, err := parseDocument(data, path)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := store.add(def, path, options...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Add compiles def and registers it under its id.
func (s *Store) Add(def Definition, options ...CompileOption) error {
	return s.add(def, "", options...)
}

func (s *Store) add(def Definition, source string, options ...CompileOption) error {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		return fmt.Errorf("schema: file %s defines a schema without an id", source)
	}
	if prev, exists := s.sources[id]; exists {
		return fmt.Errorf("schema: duplicate schema %q (file %s, first seen in %s)", id, source, prev)
	}
	compiled, err := Compile(def, options...)
	if err != nil {
		if source != "" {
			return fmt.Errorf("%w (file %s)", err, source)
		}
		return err
	}
	s.schemas[id] = compiled
	s.sources[id] = source
	return nil
}

// Schema returns the compiled schema for id.
func (s *Store) Schema(id string) (*Schema, bool) {
	if s == nil {
		return nil, false
	}
	schema, ok := s.schemas[id]
	return schema, ok
}

// IDs lists the registered schema ids in sorted order.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.schemas))
	for id := range s.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty reports whether the store holds any schemas.
func (s *Store) Empty() bool {
	return s == nil || len(s.schemas) == 0
}

type documentFile struct {
	Definition `yaml:",inline"`
	Schemas    []Definition `json:"schemas" yaml:"schemas"`
}

func parseDocument(data []byte, source string) ([]Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("schema: file %s is empty", source)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		doc = documentFile{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("schema: parse %s: invalid JSON or YAML", source)
		}
	}

	var defs []Definition
	if doc.ID != "" || len(doc.Fields) > 0 {
		defs = append(defs, doc.Definition)
	}
	defs = append(defs, doc.Schemas...)
	if len(defs) == 0 {
		return nil, fmt.Errorf("schema: file %s does not define any schema", source)
	}
	return defs, nil
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
