package compiler

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// supportedOpenAPI is the range of document versions the compiler accepts.
const supportedOpenAPI = ">= 3.0.0, < 4.0.0"

var supportedConstraint = mustConstraint(supportedOpenAPI)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// checkOpenAPIVersion returns an error unless v is a supported OpenAPI 3.x version string.
func checkOpenAPIVersion(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("document has no openapi version (Swagger 2.0 is not supported)")
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid openapi version %q: %w", v, err)
	}
	if !supportedConstraint.Check(ver) {
		return fmt.Errorf("unsupported openapi version %q (want %s)", v, supportedOpenAPI)
	}
	return nil
}
