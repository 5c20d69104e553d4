package security

import (
	"os"
	"strings"
)

// CredentialLookup resolves the value of a named secret.
type CredentialLookup interface {
	Lookup(name string) (string, bool)
}

// LookupFunc adapts a function to CredentialLookup.
type LookupFunc func(name string) (string, bool)

func (f LookupFunc) Lookup(name string) (string, bool) { return f(name) }

// EnvLookup reads secrets from the process environment.
var EnvLookup CredentialLookup = LookupFunc(os.LookupEnv)

// MapLookup serves secrets from a fixed map.
type MapLookup map[string]string

func (m MapLookup) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// lookupNonEmpty treats a set-but-blank value as missing.
func lookupNonEmpty(l CredentialLookup, name string) (string, bool) {
	if l == nil {
		return "", false
	}
	v, ok := l.Lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
