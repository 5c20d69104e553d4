// Package security resolves a command's security requirements to a concrete
// credential and injects it into an outgoing request.
//
// Resolution is a pure function of its inputs. Secrets are read through an
// injected CredentialLookup, normally the process environment.
package security

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

// Credential is a resolved secret bound to the scheme that placed it.
type Credential struct {
	Scheme   string
	Location model.ParameterLocation
	// Name is the header, query parameter or cookie name.
	Name string
	// Value is the exact value placed at Name, including any prefix such as "Bearer ".
	Value string
	// secret is the raw secret and prefix what precedes it in Value. Both
	// are kept for masking.
	secret string
	prefix string
}

// Resolve picks the first requirement whose scheme can be satisfied. An
// empty requirement list needs no credential and yields nil. If no
// requirement is satisfiable the error is KindAuthResolution and names the
// schemes that were tried.
func Resolve(requirements []string, schemes map[string]model.CachedSecurityScheme, lookup CredentialLookup) (*Credential, error) {
	if len(requirements) == 0 {
		return nil, nil
	}

	var reasons []string
	for _, name := range requirements {
		scheme, ok := schemes[name]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("%s: not declared", name))
			continue
		}
		cred, err := resolveScheme(name, scheme, lookup)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		return cred, nil
	}

	return nil, &apperr.Error{
		Kind:    apperr.KindAuthResolution,
		Message: "no security requirement could be satisfied (" + strings.Join(reasons, "; ") + ")",
		Scheme:  strings.Join(requirements, ","),
	}
}

// ResolveCommand resolves cmd's requirements. When cmd allows anonymous
// calls and nothing is satisfiable it returns a nil credential instead of
// an error.
func ResolveCommand(cmd *model.CachedCommand, schemes map[string]model.CachedSecurityScheme, lookup CredentialLookup) (*Credential, error) {
	cred, err := Resolve(cmd.SecurityRequirements, schemes, lookup)
	if err != nil && cmd.SecurityOptional {
		return nil, nil
	}
	return cred, err
}

func resolveScheme(name string, scheme model.CachedSecurityScheme, lookup CredentialLookup) (*Credential, error) {
	if err := checkSupported(scheme); err != nil {
		return nil, err
	}
	secret := scheme.ApertureSecret
	if secret == nil {
		return nil, fmt.Errorf("no x-aperture-secret binding")
	}

	var value string
	switch secret.Source {
	case model.SecretSourceEnv:
		v, ok := lookupNonEmpty(lookup, secret.Name)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", secret.Name)
		}
		value = v
	default:
		return nil, fmt.Errorf("unsupported secret source %s", secret.Source)
	}

	return place(name, scheme, value)
}

// checkSupported rejects schemes that can never carry an environment secret.
func checkSupported(scheme model.CachedSecurityScheme) error {
	switch scheme.Type {
	case model.SchemeAPIKey:
		if scheme.Location == nil || scheme.ParameterName == nil {
			return fmt.Errorf("apiKey scheme has no location")
		}
		return nil
	case model.SchemeHTTP:
		if httpScheme(scheme) == "digest" {
			return fmt.Errorf("http digest authentication is not supported")
		}
		return nil
	case model.SchemeOAuth2, model.SchemeOpenIDConnect:
		return nil
	case model.SchemeMutualTLS:
		return fmt.Errorf("mutualTLS is not supported")
	default:
		return fmt.Errorf("unknown scheme type %s", scheme.Type)
	}
}

func place(name string, scheme model.CachedSecurityScheme, secret string) (*Credential, error) {
	cred := &Credential{Scheme: name, secret: secret}
	switch scheme.Type {
	case model.SchemeAPIKey:
		cred.Location = *scheme.Location
		cred.Name = *scheme.ParameterName
		cred.Value = secret
	case model.SchemeHTTP:
		cred.Location = model.LocationHeader
		cred.Name = "Authorization"
		switch sub := httpScheme(scheme); sub {
		case "bearer":
			cred.prefix = "Bearer "
			cred.Value = cred.prefix + secret
		case "basic":
			cred.prefix = "Basic "
			cred.Value = cred.prefix + base64.StdEncoding.EncodeToString([]byte(secret))
		default:
			cred.prefix = canonicalScheme(sub) + " "
			cred.Value = cred.prefix + secret
		}
	case model.SchemeOAuth2, model.SchemeOpenIDConnect:
		cred.Location = model.LocationHeader
		cred.Name = "Authorization"
		cred.prefix = "Bearer "
		cred.Value = cred.prefix + secret
	default:
		return nil, fmt.Errorf("cannot place credential for scheme type %s", scheme.Type)
	}
	return cred, nil
}

func httpScheme(scheme model.CachedSecurityScheme) string {
	if scheme.Scheme == nil {
		return ""
	}
	return strings.ToLower(*scheme.Scheme)
}

func canonicalScheme(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Apply injects the credential into req. A nil credential is a no-op.
func (c *Credential) Apply(req *http.Request) {
	if c == nil {
		return
	}
	switch c.Location {
	case model.LocationHeader:
		req.Header.Set(c.Name, c.Value)
	case model.LocationQuery:
		q := req.URL.Query()
		q.Set(c.Name, c.Value)
		req.URL.RawQuery = q.Encode()
	case model.LocationCookie:
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	case model.LocationPath:
		// apiKey schemes never target the path; the compiler drops them.
	}
}

// Masked returns the credential value with the secret hidden, for previews.
func (c *Credential) Masked() string {
	if c == nil {
		return ""
	}
	if c.secret == "" {
		return c.Value
	}
	return c.prefix + mask(c.secret)
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", 4) + s[len(s)-2:]
}
