// Package app - transform.go applies JSONata expressions to response bodies.
package app

import (
	"fmt"
	"strings"

	"github.com/blues/jsonata-go"

	"github.com/aperture-cli/aperture/internal/apperr"
)

// ApplyTransform evaluates a JSONata expression against input. An empty
// expression returns input unchanged.
func ApplyTransform(expression string, input any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return input, nil
	}

	expr, err := jsonata.Compile(expression)
	if err != nil {
		return nil, apperr.Translation("transform", "invalid JSONata expression: %v", err)
	}

	// jsonata-go expects map[string]any / []any shaped input.
	normalizedInput, err := NormalizeJSON(input)
	if err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}

	result, err := expr.Eval(normalizedInput)
	if err != nil {
		return nil, apperr.Translation("transform", "evaluate JSONata expression: %v", err)
	}
	return result, nil
}
