package translate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache holds compiled schemas keyed by their source text.
var schemaCache sync.Map

func compileSchema(schema string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("body.schema.json", strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add body schema resource: %w", err)
	}
	compiled, err := compiler.Compile("body.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile body schema: %w", err)
	}
	schemaCache.Store(schema, compiled)
	return compiled, nil
}

func validateAgainstSchema(schema string, v any) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return err
	}
	return compiled.Validate(v)
}
