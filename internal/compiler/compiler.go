// Package compiler turns an OpenAPI 3.x document into a model.CachedSpec.
//
// Compilation is partial-success: an operation that uses a feature outside
// the supported subset is recorded in SkippedEndpoints with a reason and the
// rest of the document still compiles. Only a document that cannot be parsed
// at all (bad syntax, unresolved references, non-3.x version) fails the
// whole compile.
//
// Output is deterministic: paths are walked in sorted order and methods in a
// fixed order, so identical input always yields an identical CachedSpec.
package compiler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

// methodOrder is the fixed order operations are emitted in for each path.
var methodOrder = []string{
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodHead,
	http.MethodPatch,
	http.MethodTrace,
}

// Compile parses an OpenAPI document (JSON or YAML) and compiles it into a
// CachedSpec named name.
func Compile(name string, data []byte) (*model.CachedSpec, error) {
	doc, err := loadDocument(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParse, err, "parse OpenAPI document %q", name)
	}
	if err := checkOpenAPIVersion(doc.OpenAPI); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, err, "parse OpenAPI document %q", name)
	}

	spec := &model.CachedSpec{
		Name:               name,
		Commands:           []model.CachedCommand{},
		Servers:            []string{},
		SecuritySchemes:    map[string]model.CachedSecurityScheme{},
		CacheFormatVersion: model.CacheFormatVersion,
		SkippedEndpoints:   []model.SkippedEndpoint{},
		ServerVariables:    map[string]model.ServerVariable{},
	}
	if doc.Info != nil {
		spec.Version = doc.Info.Version
	}

	extractServers(doc, spec)
	spec.SecuritySchemes = extractSecuritySchemes(doc)

	c := &compilation{
		doc:     doc,
		spec:    spec,
		usedIDs: map[string]bool{},
	}
	c.collectExplicitIDs()
	c.compileOperations()

	if err := spec.Validate(); err != nil {
		// Operations that would break the invariants are skipped above, so
		// this only fires on a compiler bug.
		return nil, apperr.Wrap(apperr.KindParse, err, "compiled spec %q is inconsistent", name)
	}
	return spec, nil
}

// loadDocument parses raw bytes with the kin-openapi loader.
// External references are not followed: the compiled model must depend only on the given bytes.
func loadDocument(data []byte) (*openapi3.T, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("document is empty")
	}
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	return loader.LoadFromData(data)
}

func extractServers(doc *openapi3.T, spec *model.CachedSpec) {
	for _, srv := range doc.Servers {
		if srv == nil || srv.URL == "" {
			continue
		}
		spec.Servers = append(spec.Servers, srv.URL)
	}
	if len(spec.Servers) == 0 {
		return
	}
	first := spec.Servers[0]
	spec.BaseURL = &first

	srv := doc.Servers[0]
	for _, name := range sortedKeys(srv.Variables) {
		v := srv.Variables[name]
		if v == nil {
			continue
		}
		sv := model.ServerVariable{
			Enum:        v.Enum,
			Description: optString(v.Description),
		}
		if v.Enum == nil {
			sv.Enum = []string{}
		}
		if v.Default != "" {
			d := v.Default
			sv.Default = &d
		}
		spec.ServerVariables[name] = sv
	}
}

// compilation carries the state of one Compile call.
type compilation struct {
	doc      *openapi3.T
	spec     *model.CachedSpec
	usedIDs  map[string]bool
	explicit map[string]int // explicit operationId -> number of declaring operations
}

// collectExplicitIDs counts explicit operation IDs so derived IDs never
// collide with one declared later in the document.
func (c *compilation) collectExplicitIDs() {
	c.explicit = map[string]int{}
	c.eachOperation(func(path, method string, _ *openapi3.PathItem, op *openapi3.Operation) {
		if op.OperationID != "" {
			c.explicit[op.OperationID]++
		}
	})
}

func (c *compilation) eachOperation(fn func(path, method string, item *openapi3.PathItem, op *openapi3.Operation)) {
	if c.doc.Paths == nil {
		return
	}
	paths := c.doc.Paths.Map()
	for _, path := range sortedKeys(paths) {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			op := item.GetOperation(method)
			if op == nil {
				continue
			}
			fn(path, method, item, op)
		}
	}
}

func (c *compilation) compileOperations() {
	c.eachOperation(func(path, method string, item *openapi3.PathItem, op *openapi3.Operation) {
		cmd, reason := c.compileOperation(path, method, item, op)
		if reason != "" {
			c.spec.SkippedEndpoints = append(c.spec.SkippedEndpoints, model.SkippedEndpoint{
				Path:   path,
				Method: method,
				Reason: reason,
			})
			return
		}
		c.usedIDs[cmd.OperationID] = true
		c.spec.Commands = append(c.spec.Commands, cmd)
	})
}

// compileOperation builds one command. A non-empty reason means the
// operation is unsupported and must be skipped.
func (c *compilation) compileOperation(path, method string, item *openapi3.PathItem, op *openapi3.Operation) (model.CachedCommand, string) {
	opID := op.OperationID
	if opID != "" && c.usedIDs[opID] {
		return model.CachedCommand{}, fmt.Sprintf("duplicate operationId %q", opID)
	}
	if opID == "" {
		opID = c.deriveOperationID(path, method)
	}

	params, reason := compileParameters(mergeParameters(item.Parameters, op.Parameters))
	if reason != "" {
		return model.CachedCommand{}, reason
	}

	body, reason := c.compileRequestBody(op)
	if reason != "" {
		return model.CachedCommand{}, reason
	}

	security, optional, reason := c.compileSecurity(op)
	if reason != "" {
		return model.CachedCommand{}, reason
	}

	tags := op.Tags
	if tags == nil {
		tags = []string{}
	}

	cmd := model.CachedCommand{
		Name:                 toKebab(opID),
		Description:          optString(op.Description),
		Summary:              optString(op.Summary),
		OperationID:          opID,
		Method:               method,
		Path:                 path,
		Parameters:           params,
		RequestBody:          body,
		Responses:            compileResponses(op),
		SecurityRequirements: security,
		SecurityOptional:     optional,
		Tags:                 tags,
		Deprecated:           op.Deprecated,
	}
	if op.ExternalDocs != nil && op.ExternalDocs.URL != "" {
		u := op.ExternalDocs.URL
		cmd.ExternalDocsURL = &u
	}
	cmd.Examples = buildExamples(c.spec.Name, cmd)
	return cmd, ""
}

// deriveOperationID generates an operation ID from path and method when the
// document does not declare one, e.g. "/tasks/{id}" GET -> "tasks.get".
func (c *compilation) deriveOperationID(path, method string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var parts []string
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	parts = append(parts, strings.ToLower(method))
	key := sanitizeID(strings.Join(parts, "."))

	taken := func(k string) bool { return c.usedIDs[k] || c.explicit[k] > 0 }
	if !taken(key) {
		return key
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", key, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// mergeParameters merges path-level and operation-level parameters.
// Operation-level parameters override path-level parameters with the same name+in.
func mergeParameters(pathParams, opParams openapi3.Parameters) openapi3.Parameters {
	if len(pathParams) == 0 {
		return opParams
	}
	if len(opParams) == 0 {
		return pathParams
	}

	overridden := map[string]bool{}
	for _, p := range opParams {
		if p != nil && p.Value != nil {
			overridden[p.Value.In+":"+p.Value.Name] = true
		}
	}

	var merged openapi3.Parameters
	for _, p := range pathParams {
		if p == nil || p.Value == nil || !overridden[p.Value.In+":"+p.Value.Name] {
			merged = append(merged, p)
		}
	}
	merged = append(merged, opParams...)
	return merged
}

func compileParameters(params openapi3.Parameters) ([]model.CachedParameter, string) {
	out := make([]model.CachedParameter, 0, len(params))
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			name := ""
			if ref != nil {
				name = ref.Ref
			}
			return nil, fmt.Sprintf("unresolved parameter reference %q", name)
		}
		p := ref.Value
		loc, err := model.ParseParameterLocation(p.In)
		if err != nil {
			return nil, fmt.Sprintf("parameter %q: %v", p.Name, err)
		}
		if p.Schema == nil && len(p.Content) > 0 {
			return nil, fmt.Sprintf("parameter %q uses content instead of schema", p.Name)
		}
		out = append(out, model.CachedParameter{
			Name:        p.Name,
			Location:    loc,
			Required:    p.Required || loc == model.LocationPath,
			Schema:      schemaString(p.Schema),
			Description: optString(p.Description),
		})
	}
	return out, ""
}

func (c *compilation) compileRequestBody(op *openapi3.Operation) (*model.CachedRequestBody, string) {
	if op.RequestBody == nil {
		return nil, ""
	}
	if op.RequestBody.Value == nil {
		return nil, fmt.Sprintf("unresolved request body reference %q", op.RequestBody.Ref)
	}
	rb := op.RequestBody.Value
	if len(rb.Content) == 0 {
		return nil, "request body declares no content"
	}

	contentType, mt := preferMediaType(rb.Content)
	if mt == nil {
		return nil, fmt.Sprintf("unsupported request body content type(s): %s", strings.Join(sortedKeys(rb.Content), ", "))
	}

	body := &model.CachedRequestBody{
		ContentType: contentType,
		Required:    rb.Required,
	}
	if mt.Schema != nil && isJSONMediaType(contentType) {
		if s, err := selfContainedSchema(c.doc, mt.Schema); err == nil {
			body.Schema = &s
		}
	}
	body.Example = mediaTypeExample(mt)
	return body, ""
}

// compileSecurity flattens the operation's security requirements (or the
// document default) into an ordered list of scheme names. An empty
// requirement object makes authentication optional. An operation that
// references an undeclared scheme is skipped.
func (c *compilation) compileSecurity(op *openapi3.Operation) ([]string, bool, string) {
	reqs := c.doc.Security
	if op.Security != nil {
		reqs = *op.Security
	}
	out := []string{}
	optional := false
	seen := map[string]bool{}
	for _, req := range reqs {
		if len(req) == 0 {
			optional = true
			continue
		}
		for _, name := range sortedKeys(req) {
			if _, ok := c.spec.SecuritySchemes[name]; !ok {
				return nil, false, fmt.Sprintf("security requirement references undeclared scheme %q", name)
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out, optional && len(out) > 0, ""
}

func compileResponses(op *openapi3.Operation) []model.CachedResponse {
	out := []model.CachedResponse{}
	if op.Responses == nil {
		return out
	}
	responses := op.Responses.Map()
	for _, code := range sortedKeys(responses) {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		r := model.CachedResponse{StatusCode: code}
		if contentType, mt := preferMediaType(ref.Value.Content); mt != nil {
			ct := contentType
			r.ContentType = &ct
			r.Schema = schemaString(mt.Schema)
			r.Example = mediaTypeExample(mt)
		}
		out = append(out, r)
	}
	return out
}

// preferMediaType selects the media type the executor can send or read.
// Prefers application/json, then other JSON-compatible types, then text
// types, in sorted order for deterministic behavior. Returns nil when
// nothing is supported (multipart, form, binary).
func preferMediaType(content openapi3.Content) (string, *openapi3.MediaType) {
	if mt := content.Get("application/json"); mt != nil {
		return "application/json", mt
	}
	keys := sortedKeys(content)
	for _, k := range keys {
		if isJSONMediaType(k) {
			return k, content[k]
		}
	}
	for _, k := range keys {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "text/") || strings.HasSuffix(lower, "/xml") || strings.HasSuffix(lower, "+xml") {
			return k, content[k]
		}
	}
	return "", nil
}

func isJSONMediaType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
