package compiler

import (
	"encoding/json"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aperture-cli/aperture/internal/model"
)

// secretExtension is the security scheme extension binding a scheme to a credential source.
const secretExtension = "x-aperture-secret"

// extractSecuritySchemes compiles the document's declared security schemes.
// Schemes of an unknown type are dropped, so any operation that requires
// one is skipped during operation compilation.
func extractSecuritySchemes(doc *openapi3.T) map[string]model.CachedSecurityScheme {
	out := map[string]model.CachedSecurityScheme{}
	if doc.Components == nil {
		return out
	}
	for _, name := range sortedKeys(doc.Components.SecuritySchemes) {
		ref := doc.Components.SecuritySchemes[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		scheme, ok := compileSecurityScheme(name, ref.Value)
		if !ok {
			continue
		}
		out[name] = scheme
	}
	return out
}

func compileSecurityScheme(name string, s *openapi3.SecurityScheme) (model.CachedSecurityScheme, bool) {
	typ, err := model.ParseSchemeType(s.Type)
	if err != nil {
		return model.CachedSecurityScheme{}, false
	}
	out := model.CachedSecurityScheme{
		Name:         name,
		Type:         typ,
		BearerFormat: optString(s.BearerFormat),
		Description:  optString(s.Description),
	}
	switch typ {
	case model.SchemeAPIKey:
		loc, err := model.ParseParameterLocation(s.In)
		if err != nil || loc == model.LocationPath || s.Name == "" {
			return model.CachedSecurityScheme{}, false
		}
		out.Location = &loc
		out.ParameterName = optString(s.Name)
	case model.SchemeHTTP:
		if s.Scheme == "" {
			return model.CachedSecurityScheme{}, false
		}
		sub := strings.ToLower(s.Scheme)
		out.Scheme = &sub
	}
	out.ApertureSecret = parseApertureSecret(s.Extensions)
	return out, true
}

// parseApertureSecret decodes the x-aperture-secret extension. A missing or
// malformed extension yields nil; the scheme then fails resolution only if
// an invocation actually needs it.
func parseApertureSecret(ext map[string]any) *model.CachedApertureSecret {
	raw, ok := ext[secretExtension]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var decoded struct {
		Source string `json:"source"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil
	}
	source, err := model.ParseSecretSource(decoded.Source)
	if err != nil || strings.TrimSpace(decoded.Name) == "" {
		return nil
	}
	return &model.CachedApertureSecret{Source: source, Name: strings.TrimSpace(decoded.Name)}
}
