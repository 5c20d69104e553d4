// Package translate maps raw caller input onto a compiled command,
// producing a model.OperationCall. It holds no state and is safe for
// concurrent use.
package translate

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

// RawArgs is the unstructured input for one invocation.
type RawArgs struct {
	// Operation is an operation ID or a command name.
	Operation string
	// Params maps parameter names to raw values.
	Params map[string]string
	Body   *string
	// Headers are free-form "Name: value" lines.
	Headers []string
}

// Options tunes translation.
type Options struct {
	// ValidateBody checks a JSON body against the request body schema.
	ValidateBody bool
}

// FindCommand looks up a command by operation ID, then by command name.
func FindCommand(spec *model.CachedSpec, op string) (*model.CachedCommand, error) {
	if cmd, ok := spec.CommandByOperationID(op); ok {
		return cmd, nil
	}
	for i := range spec.Commands {
		if spec.Commands[i].Name == op {
			return &spec.Commands[i], nil
		}
	}
	return nil, apperr.Translation("operation", "unknown operation %q in API %q", op, spec.Name)
}

// Translate builds the OperationCall for args against spec.
func Translate(spec *model.CachedSpec, args RawArgs, opts Options) (*model.OperationCall, error) {
	cmd, err := FindCommand(spec, args.Operation)
	if err != nil {
		return nil, err
	}
	call := model.NewOperationCall(cmd.OperationID)

	byName := make(map[string][]model.CachedParameter, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		byName[p.Name] = append(byName[p.Name], p)
	}

	supplied := make(map[paramKey]bool, len(args.Params))
	for _, arg := range sortedKeys(args.Params) {
		p, err := lookupParam(cmd, byName, arg)
		if err != nil {
			return nil, err
		}
		key := paramKey{p.Location, p.Name}
		if supplied[key] {
			return nil, apperr.Translation(arg, "%s parameter %q given more than once", p.Location, p.Name)
		}
		supplied[key] = true

		value, name := args.Params[arg], p.Name
		switch p.Location {
		case model.LocationPath:
			if value == "" {
				return nil, apperr.Translation(name, "path parameter %q must not be empty", name)
			}
			call.PathParams[name] = value
		case model.LocationQuery:
			call.QueryParams[name] = value
		case model.LocationHeader:
			call.HeaderParams[name] = value
		case model.LocationCookie:
			call.CookieParams[name] = value
		default:
			return nil, apperr.Translation(name, "parameter %q has unsupported location %s", name, p.Location)
		}
	}

	for _, p := range cmd.Parameters {
		if p.Required && !supplied[paramKey{p.Location, p.Name}] {
			return nil, apperr.Translation(p.Name, "missing required %s parameter %q", p.Location, p.Name)
		}
	}

	if err := translateBody(cmd, args.Body, opts, call); err != nil {
		return nil, err
	}

	for _, line := range args.Headers {
		h, err := ParseHeader(line)
		if err != nil {
			return nil, err
		}
		call.CustomHeaders = append(call.CustomHeaders, h)
	}
	return call, nil
}

type paramKey struct {
	loc  model.ParameterLocation
	name string
}

// lookupParam finds the parameter arg refers to. A bare name must be
// unique across locations; otherwise it is written "location.name",
// e.g. "header.id".
func lookupParam(cmd *model.CachedCommand, byName map[string][]model.CachedParameter, arg string) (model.CachedParameter, error) {
	switch matches := byName[arg]; len(matches) {
	case 0:
	case 1:
		return matches[0], nil
	default:
		qualified := make([]string, 0, len(matches))
		for _, p := range matches {
			qualified = append(qualified, p.Location.String()+"."+p.Name)
		}
		return model.CachedParameter{}, apperr.Translation(arg,
			"parameter %q of operation %q is declared in several locations; use one of %s",
			arg, cmd.OperationID, strings.Join(qualified, ", "))
	}
	if loc, name, ok := strings.Cut(arg, "."); ok {
		for _, p := range byName[name] {
			if p.Location.String() == loc {
				return p, nil
			}
		}
	}
	return model.CachedParameter{}, apperr.Translation(arg, "unknown parameter %q for operation %q", arg, cmd.OperationID)
}

func translateBody(cmd *model.CachedCommand, body *string, opts Options, call *model.OperationCall) error {
	rb := cmd.RequestBody
	if body == nil {
		if rb != nil && rb.Required {
			return apperr.Translation("body", "operation %q requires a %s request body", cmd.OperationID, rb.ContentType)
		}
		return nil
	}
	if rb == nil {
		return apperr.Translation("body", "operation %q does not accept a request body", cmd.OperationID)
	}

	if isJSON(rb.ContentType) {
		var v any
		if err := json.Unmarshal([]byte(*body), &v); err != nil {
			return &apperr.Error{Kind: apperr.KindTranslation, Field: "body", Message: "request body is not valid JSON", Err: err}
		}
		if opts.ValidateBody && rb.Schema != nil {
			if err := validateAgainstSchema(*rb.Schema, v); err != nil {
				return &apperr.Error{Kind: apperr.KindTranslation, Field: "body", Message: "request body does not match schema", Err: err}
			}
		}
	}
	b := *body
	call.Body = &b
	return nil
}

// ParseHeader parses a "Name: value" header line.
func ParseHeader(line string) (model.Header, error) {
	name, value, ok := strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t\r\n") {
		return model.Header{}, apperr.Translation("header", "invalid header %q (want \"Name: value\")", line)
	}
	return model.Header{Name: name, Value: strings.TrimSpace(value)}, nil
}

// ParseAssignments parses "key=value" arguments into a map. A repeated key
// is an error naming that key.
func ParseAssignments(field string, items []string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, apperr.Translation(field, "invalid %s %q (want key=value)", field, item)
		}
		if _, dup := out[k]; dup {
			return nil, apperr.Translation(k, "%s %q given more than once", field, k)
		}
		out[k] = v
	}
	return out, nil
}

func isJSON(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
