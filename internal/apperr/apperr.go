// Package apperr defines the error taxonomy shared by the compiler, cache
// store, translator and executor.
//
// Every failure that crosses a component boundary is an *Error carrying a
// Kind plus whatever structured context the kind needs (offending field,
// scheme name, attempt count, HTTP status). Callers branch on Kind with
// errors.As or the Is helper and render either Error() for humans or the
// JSON form for machines.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	KindIO Kind = iota
	KindParse
	KindUnsupportedFeature
	KindCacheVersionMismatch
	KindCacheStale
	KindTranslation
	KindAuthResolution
	KindNetwork
	KindHTTPStatus
	KindTimeout
	KindConfig
)

// Code returns the machine-readable code for k.
func (k Kind) Code() string {
	switch k {
	case KindIO:
		return "io_error"
	case KindParse:
		return "parse_error"
	case KindUnsupportedFeature:
		return "unsupported_feature"
	case KindCacheVersionMismatch:
		return "cache_version_mismatch"
	case KindCacheStale:
		return "cache_stale"
	case KindTranslation:
		return "translation_error"
	case KindAuthResolution:
		return "auth_resolution_error"
	case KindNetwork:
		return "network_error"
	case KindHTTPStatus:
		return "http_status_error"
	case KindTimeout:
		return "timeout"
	case KindConfig:
		return "config_error"
	default:
		return "unknown"
	}
}

func (k Kind) String() string { return k.Code() }

// Error is the structured error value. Only the fields relevant to Kind are set.
type Error struct {
	Kind     Kind
	Message  string
	Field    string // offending parameter, header or server variable
	Scheme   string // security scheme name(s)
	Attempts int    // attempts made before giving up
	Status   int    // final HTTP status for KindHTTPStatus
	Body     string // final response body for KindHTTPStatus
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&sb, " (field %q)", e.Field)
	}
	if e.Scheme != "" {
		fmt.Fprintf(&sb, " (scheme %s)", e.Scheme)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&sb, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the machine-readable code of the error's kind.
func (e *Error) Code() string { return e.Kind.Code() }

// MarshalJSON renders the machine-readable form.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Field    string `json:"field,omitempty"`
		Scheme   string `json:"scheme,omitempty"`
		Attempts int    `json:"attempts,omitempty"`
		Status   int    `json:"status,omitempty"`
		Body     string `json:"body,omitempty"`
		Cause    string `json:"cause,omitempty"`
	}{
		Code:     e.Code(),
		Message:  e.Message,
		Field:    e.Field,
		Scheme:   e.Scheme,
		Attempts: e.Attempts,
		Status:   e.Status,
		Body:     e.Body,
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Translation reports a missing, unknown or malformed invocation input.
func Translation(field, format string, args ...any) *Error {
	e := New(KindTranslation, format, args...)
	e.Field = field
	return e
}
