// Package model defines the compiled, versioned command model produced from
// an OpenAPI document, plus the per-invocation OperationCall.
//
// A CachedSpec is created by the compiler, persisted by the cache store and
// treated as read-only afterwards. When its source changes or
// CacheFormatVersion is bumped it is discarded and recompiled, never patched.
//
// Collection fields carry no omitempty: a serialize/deserialize round-trip
// preserves the difference between nil and empty.
package model

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// CacheFormatVersion is bumped whenever the serialized shape of CachedSpec
// changes. Caches stamped with another version are recompiled.
const CacheFormatVersion uint32 = 4

// CachedSpec is the compiled representation of one API.
type CachedSpec struct {
	Name               string                          `json:"name"`
	Version            string                          `json:"version"`
	Commands           []CachedCommand                 `json:"commands"`
	BaseURL            *string                         `json:"base_url"`
	Servers            []string                        `json:"servers"`
	SecuritySchemes    map[string]CachedSecurityScheme `json:"security_schemes"`
	CacheFormatVersion uint32                          `json:"cache_format_version"`
	SkippedEndpoints   []SkippedEndpoint               `json:"skipped_endpoints"`
	ServerVariables    map[string]ServerVariable       `json:"server_variables"`
}

// CachedCommand is one invocable operation.
type CachedCommand struct {
	Name                 string             `json:"name"`
	Description          *string            `json:"description"`
	Summary              *string            `json:"summary"`
	OperationID          string             `json:"operation_id"`
	Method               string             `json:"method"`
	Path                 string             `json:"path"`
	Parameters           []CachedParameter  `json:"parameters"`
	RequestBody          *CachedRequestBody `json:"request_body"`
	Responses            []CachedResponse   `json:"responses"`
	SecurityRequirements []string           `json:"security_requirements"`
	// SecurityOptional is set when an empty requirement object allows
	// anonymous calls.
	SecurityOptional     bool               `json:"security_optional,omitempty"`
	Tags                 []string           `json:"tags"`
	Deprecated           bool               `json:"deprecated"`
	ExternalDocsURL      *string            `json:"external_docs_url"`
	Examples             []CommandExample   `json:"examples"`
}

// CachedParameter is a path, query, header or cookie parameter.
type CachedParameter struct {
	Name        string            `json:"name"`
	Location    ParameterLocation `json:"location"`
	Required    bool              `json:"required"`
	Schema      *string           `json:"schema"`
	Description *string           `json:"description"`
}

// CachedRequestBody describes the accepted request body.
// Schema, when set, is a self-contained JSON Schema document.
type CachedRequestBody struct {
	ContentType string  `json:"content_type"`
	Required    bool    `json:"required"`
	Schema      *string `json:"schema"`
	Example     *string `json:"example"`
}

// CachedResponse describes one declared response.
type CachedResponse struct {
	StatusCode  string  `json:"status_code"`
	ContentType *string `json:"content_type"`
	Schema      *string `json:"schema"`
	Example     *string `json:"example"`
}

// CachedSecurityScheme is a compiled security scheme.
type CachedSecurityScheme struct {
	Name           string                `json:"name"`
	Type           SchemeType            `json:"scheme_type"`
	Scheme         *string               `json:"scheme"`
	Location       *ParameterLocation    `json:"location"`
	ParameterName  *string               `json:"parameter_name"`
	BearerFormat   *string               `json:"bearer_format"`
	Description    *string               `json:"description"`
	ApertureSecret *CachedApertureSecret `json:"aperture_secret"`
}

// CachedApertureSecret binds a scheme to a concrete secret.
type CachedApertureSecret struct {
	Source SecretSource `json:"source"`
	Name   string       `json:"name"`
}

// ServerVariable is a declared {variable} in the server URL template.
type ServerVariable struct {
	Default     *string  `json:"default"`
	Enum        []string `json:"enum"`
	Description *string  `json:"description"`
}

// SkippedEndpoint records an operation left out of the compiled model.
type SkippedEndpoint struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Reason string `json:"reason"`
}

// CommandExample is a usage example attached to a command.
type CommandExample struct {
	Description string  `json:"description"`
	CommandLine string  `json:"command_line"`
	Explanation *string `json:"explanation"`
}

// CommandByOperationID returns the command with the given operation ID.
func (s *CachedSpec) CommandByOperationID(id string) (*CachedCommand, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Commands {
		if s.Commands[i].OperationID == id {
			return &s.Commands[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of a compiled spec: operation IDs
// are unique and every referenced security scheme is declared.
func (s *CachedSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("spec is nil")
	}
	seen := make(map[string]bool, len(s.Commands))
	for _, cmd := range s.Commands {
		if cmd.OperationID == "" {
			return fmt.Errorf("command %q has no operation id", cmd.Name)
		}
		if seen[cmd.OperationID] {
			return fmt.Errorf("duplicate operation id %q", cmd.OperationID)
		}
		seen[cmd.OperationID] = true
		for _, req := range cmd.SecurityRequirements {
			if _, ok := s.SecuritySchemes[req]; !ok {
				return fmt.Errorf("operation %q references undeclared security scheme %q", cmd.OperationID, req)
			}
		}
	}
	return nil
}

// Tags returns the sorted set of tags used by any command.
func (s *CachedSpec) Tags() []string {
	set := map[string]bool{}
	for _, cmd := range s.Commands {
		for _, t := range cmd.Tags {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Header is a free-form request header supplied by the caller.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OperationCall is a translated invocation, ready for execution.
type OperationCall struct {
	OperationID   string            `json:"operation_id"`
	PathParams    map[string]string `json:"path_params"`
	QueryParams   map[string]string `json:"query_params"`
	HeaderParams  map[string]string `json:"header_params"`
	CookieParams  map[string]string `json:"cookie_params"`
	Body          *string           `json:"body"`
	CustomHeaders []Header          `json:"custom_headers"`
}

// NewOperationCall returns a call with initialized parameter maps.
func NewOperationCall(operationID string) *OperationCall {
	return &OperationCall{
		OperationID:  operationID,
		PathParams:   map[string]string{},
		QueryParams:  map[string]string{},
		HeaderParams: map[string]string{},
		CookieParams: map[string]string{},
	}
}

// IsIdempotentMethod reports whether repeating a request with this method
// has no additional effect per RFC 9110.
func IsIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace,
		http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// IsSafeMethod reports whether the method is read-only.
func IsSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
