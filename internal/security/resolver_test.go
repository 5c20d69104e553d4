package security

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

func strPtr(s string) *string { return &s }

func locPtr(l model.ParameterLocation) *model.ParameterLocation { return &l }

func envSecret(name string) *model.CachedApertureSecret {
	return &model.CachedApertureSecret{Source: model.SecretSourceEnv, Name: name}
}

func demoSchemes() map[string]model.CachedSecurityScheme {
	return map[string]model.CachedSecurityScheme{
		"apiKey": {
			Name:           "apiKey",
			Type:           model.SchemeAPIKey,
			Location:       locPtr(model.LocationHeader),
			ParameterName:  strPtr("X-API-Key"),
			ApertureSecret: envSecret("DEMO_KEY"),
		},
		"queryKey": {
			Name:           "queryKey",
			Type:           model.SchemeAPIKey,
			Location:       locPtr(model.LocationQuery),
			ParameterName:  strPtr("api_key"),
			ApertureSecret: envSecret("QUERY_KEY"),
		},
		"cookieKey": {
			Name:           "cookieKey",
			Type:           model.SchemeAPIKey,
			Location:       locPtr(model.LocationCookie),
			ParameterName:  strPtr("session"),
			ApertureSecret: envSecret("COOKIE_KEY"),
		},
		"bearer": {
			Name:           "bearer",
			Type:           model.SchemeHTTP,
			Scheme:         strPtr("bearer"),
			ApertureSecret: envSecret("TOKEN"),
		},
		"basic": {
			Name:           "basic",
			Type:           model.SchemeHTTP,
			Scheme:         strPtr("basic"),
			ApertureSecret: envSecret("BASIC_CREDS"),
		},
		"digest": {
			Name:           "digest",
			Type:           model.SchemeHTTP,
			Scheme:         strPtr("digest"),
			ApertureSecret: envSecret("TOKEN"),
		},
		"oauth": {
			Name:           "oauth",
			Type:           model.SchemeOAuth2,
			ApertureSecret: envSecret("OAUTH_TOKEN"),
		},
		"mtls": {
			Name:           "mtls",
			Type:           model.SchemeMutualTLS,
			ApertureSecret: envSecret("TOKEN"),
		},
		"unbound": {
			Name:          "unbound",
			Type:          model.SchemeAPIKey,
			Location:      locPtr(model.LocationHeader),
			ParameterName: strPtr("X-Unbound"),
		},
	}
}

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "https://api.example.com/items?x=1", nil)
}

func TestResolveEmptyRequirements(t *testing.T) {
	cred, err := Resolve(nil, demoSchemes(), MapLookup{})
	if err != nil || cred != nil {
		t.Errorf("Resolve(nil) = %v, %v", cred, err)
	}
}

func TestResolveAPIKeyHeader(t *testing.T) {
	_, err := Resolve([]string{"apiKey"}, demoSchemes(), MapLookup{})
	if !apperr.Is(err, apperr.KindAuthResolution) {
		t.Fatalf("unset DEMO_KEY: err = %v, want auth resolution", err)
	}
	if !strings.Contains(err.Error(), "DEMO_KEY") {
		t.Errorf("error should name the variable: %v", err)
	}

	cred, err := Resolve([]string{"apiKey"}, demoSchemes(), MapLookup{"DEMO_KEY": "abc"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	req := newRequest()
	cred.Apply(req)
	if got := req.Header.Get("X-API-Key"); got != "abc" {
		t.Errorf("X-API-Key = %q, want abc", got)
	}
}

func TestResolveBlankValueIsMissing(t *testing.T) {
	_, err := Resolve([]string{"apiKey"}, demoSchemes(), MapLookup{"DEMO_KEY": "  "})
	if !apperr.Is(err, apperr.KindAuthResolution) {
		t.Errorf("blank value: err = %v", err)
	}
}

func TestResolveFirstSatisfiableWins(t *testing.T) {
	lookup := MapLookup{"DEMO_KEY": "abc", "TOKEN": "tok"}

	cred, err := Resolve([]string{"unbound", "bearer", "apiKey"}, demoSchemes(), lookup)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cred.Scheme != "bearer" {
		t.Errorf("scheme = %q, want bearer", cred.Scheme)
	}
	req := newRequest()
	cred.Apply(req)
	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestResolveCommandOptional(t *testing.T) {
	cmd := &model.CachedCommand{SecurityRequirements: []string{"bearer"}, SecurityOptional: true}

	cred, err := ResolveCommand(cmd, demoSchemes(), MapLookup{})
	if err != nil || cred != nil {
		t.Errorf("anonymous = %+v, %v", cred, err)
	}
	cred, err = ResolveCommand(cmd, demoSchemes(), MapLookup{"TOKEN": "tok"})
	if err != nil || cred == nil || cred.Value != "Bearer tok" {
		t.Errorf("with token = %+v, %v", cred, err)
	}

	cmd.SecurityOptional = false
	if _, err := ResolveCommand(cmd, demoSchemes(), MapLookup{}); !apperr.Is(err, apperr.KindAuthResolution) {
		t.Errorf("required: err = %v", err)
	}
}

func TestApplyLocations(t *testing.T) {
	lookup := MapLookup{
		"QUERY_KEY":   "q1",
		"COOKIE_KEY":  "c1",
		"BASIC_CREDS": "user:pass",
		"OAUTH_TOKEN": "o1",
	}

	cred, err := Resolve([]string{"queryKey"}, demoSchemes(), lookup)
	if err != nil {
		t.Fatal(err)
	}
	req := newRequest()
	cred.Apply(req)
	if req.URL.Query().Get("api_key") != "q1" || req.URL.Query().Get("x") != "1" {
		t.Errorf("query = %s", req.URL.RawQuery)
	}

	cred, err = Resolve([]string{"cookieKey"}, demoSchemes(), lookup)
	if err != nil {
		t.Fatal(err)
	}
	req = newRequest()
	cred.Apply(req)
	if c, err := req.Cookie("session"); err != nil || c.Value != "c1" {
		t.Errorf("cookie = %v, %v", c, err)
	}

	cred, err = Resolve([]string{"basic"}, demoSchemes(), lookup)
	if err != nil {
		t.Fatal(err)
	}
	req = newRequest()
	cred.Apply(req)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got := req.Header.Get("Authorization"); got != want {
		t.Errorf("basic Authorization = %q, want %q", got, want)
	}

	cred, err = Resolve([]string{"oauth"}, demoSchemes(), lookup)
	if err != nil {
		t.Fatal(err)
	}
	req = newRequest()
	cred.Apply(req)
	if got := req.Header.Get("Authorization"); got != "Bearer o1" {
		t.Errorf("oauth Authorization = %q", got)
	}
}

func TestUnsupportedSchemes(t *testing.T) {
	lookup := MapLookup{"TOKEN": "tok"}
	for _, name := range []string{"digest", "mtls", "unbound", "undeclared"} {
		if _, err := Resolve([]string{name}, demoSchemes(), lookup); !apperr.Is(err, apperr.KindAuthResolution) {
			t.Errorf("Resolve(%s) = %v, want auth resolution error", name, err)
		}
	}
}

func TestMasked(t *testing.T) {
	cred, err := Resolve([]string{"bearer"}, demoSchemes(), MapLookup{"TOKEN": "supersecret"})
	if err != nil {
		t.Fatal(err)
	}
	masked := cred.Masked()
	if strings.Contains(masked, "supersecret") || !strings.HasPrefix(masked, "Bearer ") {
		t.Errorf("Masked() = %q", masked)
	}

	// A secret that also occurs inside the scheme word stays hidden.
	for _, secret := range []string{"er", "Bearer", "e"} {
		cred, err := Resolve([]string{"bearer"}, demoSchemes(), MapLookup{"TOKEN": secret})
		if err != nil {
			t.Fatal(err)
		}
		if got := cred.Masked(); got != "Bearer ****" {
			t.Errorf("secret %q: Masked() = %q, want %q", secret, got, "Bearer ****")
		}
	}

	var nilCred *Credential
	if nilCred.Masked() != "" {
		t.Error("nil credential should mask to empty")
	}
	nilCred.Apply(newRequest())
}

func TestEnvLookup(t *testing.T) {
	t.Setenv("APERTURE_TEST_SECRET", "v")
	if v, ok := EnvLookup.Lookup("APERTURE_TEST_SECRET"); !ok || v != "v" {
		t.Errorf("EnvLookup = %q, %v", v, ok)
	}
}
