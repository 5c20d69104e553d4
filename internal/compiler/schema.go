package compiler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const componentSchemaPrefix = "#/components/schemas/"

// schemaString renders a parameter or response schema for the cache.
// A component reference is kept as the reference string; an inline schema
// is stored as compact JSON.
func schemaString(ref *openapi3.SchemaRef) *string {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		s := ref.Ref
		return &s
	}
	if ref.Value == nil {
		return nil
	}
	m, err := schemaToMap(ref.Value)
	if err != nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// selfContainedSchema renders ref as a standalone JSON Schema document.
// References to component schemas are rewritten to point into a local
// "$defs" section holding every transitively referenced component.
func selfContainedSchema(doc *openapi3.T, ref *openapi3.SchemaRef) (string, error) {
	root, err := refToMap(ref)
	if err != nil {
		return "", err
	}

	defs := map[string]any{}
	pending := rewriteRefs(root)
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if _, done := defs[name]; done {
			continue
		}
		component := lookupComponentSchema(doc, name)
		if component == nil {
			return "", fmt.Errorf("unresolved schema reference %q", componentSchemaPrefix+name)
		}
		m, err := schemaToMap(component)
		if err != nil {
			return "", err
		}
		defs[name] = m
		pending = append(pending, rewriteRefs(m)...)
	}
	if len(defs) > 0 {
		root["$defs"] = defs
	}

	b, err := json.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func lookupComponentSchema(doc *openapi3.T, name string) *openapi3.Schema {
	if doc.Components == nil || doc.Components.Schemas == nil {
		return nil
	}
	ref := doc.Components.Schemas[name]
	if ref == nil {
		return nil
	}
	return ref.Value
}

func refToMap(ref *openapi3.SchemaRef) (map[string]any, error) {
	if ref.Ref != "" {
		return map[string]any{"$ref": ref.Ref}, nil
	}
	if ref.Value == nil {
		return nil, fmt.Errorf("schema has no value")
	}
	return schemaToMap(ref.Value)
}

// schemaToMap converts a kin-openapi schema to a plain map, dropping loader bookkeeping.
func schemaToMap(s *openapi3.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	stripOrigin(out)
	return out, nil
}

func stripOrigin(v any) {
	switch t := v.(type) {
	case map[string]any:
		delete(t, "__origin__")
		for _, child := range t {
			stripOrigin(child)
		}
	case []any:
		for _, child := range t {
			stripOrigin(child)
		}
	}
}

// rewriteRefs rewrites component schema references in v to local $defs
// references and returns the referenced component names in sorted order.
func rewriteRefs(v any) []string {
	found := map[string]bool{}
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if r, ok := t["$ref"].(string); ok && strings.HasPrefix(r, componentSchemaPrefix) {
				name := strings.TrimPrefix(r, componentSchemaPrefix)
				t["$ref"] = "#/$defs/" + name
				found[name] = true
			}
			for k, child := range t {
				if k == "$ref" {
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(v)

	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// mediaTypeExample returns the media type's example as compact JSON.
// The singular example wins over named examples; among named examples the
// first by name is used.
func mediaTypeExample(mt *openapi3.MediaType) *string {
	if mt == nil {
		return nil
	}
	value := mt.Example
	if value == nil {
		for _, name := range sortedKeys(mt.Examples) {
			ex := mt.Examples[name]
			if ex != nil && ex.Value != nil && ex.Value.Value != nil {
				value = ex.Value.Value
				break
			}
		}
	}
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok {
		return &s
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
