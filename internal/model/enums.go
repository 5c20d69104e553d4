package model

import (
	"fmt"
	"strings"
)

// ParameterLocation is where a parameter or credential travels in a request.
type ParameterLocation int

const (
	LocationPath ParameterLocation = iota
	LocationQuery
	LocationHeader
	LocationCookie
)

// ParseParameterLocation parses an OpenAPI "in" value.
func ParseParameterLocation(s string) (ParameterLocation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "path":
		return LocationPath, nil
	case "query":
		return LocationQuery, nil
	case "header":
		return LocationHeader, nil
	case "cookie":
		return LocationCookie, nil
	default:
		return 0, fmt.Errorf("unknown parameter location %q", s)
	}
}

func (l ParameterLocation) String() string {
	switch l {
	case LocationPath:
		return "path"
	case LocationQuery:
		return "query"
	case LocationHeader:
		return "header"
	case LocationCookie:
		return "cookie"
	default:
		return fmt.Sprintf("location(%d)", int(l))
	}
}

func (l ParameterLocation) MarshalText() ([]byte, error) {
	if l < LocationPath || l > LocationCookie {
		return nil, fmt.Errorf("invalid parameter location %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *ParameterLocation) UnmarshalText(b []byte) error {
	v, err := ParseParameterLocation(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// SchemeType is the OpenAPI security scheme type.
type SchemeType int

const (
	SchemeAPIKey SchemeType = iota
	SchemeHTTP
	SchemeOAuth2
	SchemeOpenIDConnect
	SchemeMutualTLS
)

// ParseSchemeType parses an OpenAPI security scheme "type" value.
func ParseSchemeType(s string) (SchemeType, error) {
	switch strings.TrimSpace(s) {
	case "apiKey":
		return SchemeAPIKey, nil
	case "http":
		return SchemeHTTP, nil
	case "oauth2":
		return SchemeOAuth2, nil
	case "openIdConnect":
		return SchemeOpenIDConnect, nil
	case "mutualTLS":
		return SchemeMutualTLS, nil
	default:
		return 0, fmt.Errorf("unknown security scheme type %q", s)
	}
}

func (t SchemeType) String() string {
	switch t {
	case SchemeAPIKey:
		return "apiKey"
	case SchemeHTTP:
		return "http"
	case SchemeOAuth2:
		return "oauth2"
	case SchemeOpenIDConnect:
		return "openIdConnect"
	case SchemeMutualTLS:
		return "mutualTLS"
	default:
		return fmt.Sprintf("scheme(%d)", int(t))
	}
}

func (t SchemeType) MarshalText() ([]byte, error) {
	if t < SchemeAPIKey || t > SchemeMutualTLS {
		return nil, fmt.Errorf("invalid scheme type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *SchemeType) UnmarshalText(b []byte) error {
	v, err := ParseSchemeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// SecretSource is where an x-aperture-secret value comes from.
type SecretSource int

const (
	SecretSourceEnv SecretSource = iota
)

// ParseSecretSource parses the "source" field of x-aperture-secret.
func ParseSecretSource(s string) (SecretSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "env":
		return SecretSourceEnv, nil
	default:
		return 0, fmt.Errorf("unsupported secret source %q", s)
	}
}

func (s SecretSource) String() string {
	switch s {
	case SecretSourceEnv:
		return "env"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

func (s SecretSource) MarshalText() ([]byte, error) {
	if s != SecretSourceEnv {
		return nil, fmt.Errorf("invalid secret source %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *SecretSource) UnmarshalText(b []byte) error {
	v, err := ParseSecretSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
