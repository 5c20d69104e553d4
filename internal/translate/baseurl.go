package translate

import (
	"regexp"
	"slices"
	"strings"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

// BaseURLInput carries every source a base URL can come from.
type BaseURLInput struct {
	// Override is an explicit URL given for this invocation.
	Override string
	// Environment selects an entry of EnvironmentURLs (APERTURE_ENV).
	Environment     string
	EnvironmentURLs map[string]string
	// ConfigOverride is the per-API base_url_override from the config file.
	ConfigOverride string
	// ConfigVariables are per-API server variable values from the config file.
	ConfigVariables map[string]string
	// VariableArgs are "name=value" server variable assignments for this invocation.
	VariableArgs []string
}

var templateVar = regexp.MustCompile(`\{([^{}]+)\}`)

// ResolveBaseURL picks the base URL for an invocation. Precedence:
// explicit override, then the configured environment URL, then the
// configured base_url_override, then the spec's first server with its
// variables substituted.
func ResolveBaseURL(spec *model.CachedSpec, in BaseURLInput) (string, error) {
	args, err := ParseAssignments("server variable", in.VariableArgs)
	if err != nil {
		return "", err
	}

	if in.Override != "" {
		return trimURL(in.Override), nil
	}
	if in.Environment != "" {
		u, ok := in.EnvironmentURLs[in.Environment]
		if !ok {
			u = in.EnvironmentURLs[strings.ToLower(in.Environment)]
		}
		if u != "" {
			return trimURL(u), nil
		}
	}
	if in.ConfigOverride != "" {
		return trimURL(in.ConfigOverride), nil
	}

	if spec.BaseURL == nil || *spec.BaseURL == "" {
		return "", apperr.Translation("base_url", "API %q declares no servers; set a base URL", spec.Name)
	}
	u, err := substituteVariables(*spec.BaseURL, spec.ServerVariables, in.ConfigVariables, args)
	if err != nil {
		return "", err
	}
	return trimURL(u), nil
}

// substituteVariables fills {name} placeholders. Values come from
// invocation arguments, then config, then the declared default. Declared
// enums are enforced.
func substituteVariables(template string, declared map[string]model.ServerVariable, config, args map[string]string) (string, error) {
	used := map[string]bool{}
	for _, m := range templateVar.FindAllStringSubmatch(template, -1) {
		used[m[1]] = true
	}
	for name := range args {
		if !used[name] {
			return "", apperr.Translation(name, "unknown server variable %q", name)
		}
	}

	var firstErr error
	out := templateVar.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		v, err := variableValue(name, declared[name], config, args)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func variableValue(name string, decl model.ServerVariable, config, args map[string]string) (string, error) {
	value, ok := args[name]
	if !ok {
		value, ok = config[name]
	}
	if !ok {
		// Config keys come back lowercased.
		value, ok = config[strings.ToLower(name)]
	}
	if !ok && decl.Default != nil {
		value, ok = *decl.Default, true
	}
	if !ok {
		return "", apperr.Translation(name, "server variable %q has no value (pass --server-var %s=...)", name, name)
	}
	if len(decl.Enum) > 0 && !slices.Contains(decl.Enum, value) {
		return "", apperr.Translation(name, "server variable %q must be one of %s, got %q", name, strings.Join(decl.Enum, ", "), value)
	}
	return value, nil
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
