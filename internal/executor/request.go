package executor

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

// IdempotencyHeader carries the idempotency key on every attempt.
const IdempotencyHeader = "Idempotency-Key"

// buildRequest assembles the HTTP request for call. The returned request
// has GetBody set so each attempt can send a fresh copy of the body.
func buildRequest(ctx context.Context, baseURL string, cmd *model.CachedCommand, call *model.OperationCall, idempotencyKey string) (*http.Request, error) {
	path := cmd.Path
	for _, name := range sortedKeys(call.PathParams) {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(call.PathParams[name]))
	}
	if i := strings.Index(path, "{"); i >= 0 {
		if j := strings.Index(path[i:], "}"); j > 0 {
			name := path[i+1 : i+j]
			return nil, apperr.Translation(name, "path parameter %q has no value", name)
		}
	}

	u, err := url.Parse(baseURL + path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, err, "invalid request URL %q", baseURL+path)
	}
	if len(call.QueryParams) > 0 {
		q := u.Query()
		for k, v := range call.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		body = strings.NewReader(*call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cmd.Method), u.String(), body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranslation, err, "build request")
	}

	req.Header.Set("Accept", "application/json")
	if call.Body != nil {
		ct := "application/json"
		if cmd.RequestBody != nil && cmd.RequestBody.ContentType != "" {
			ct = cmd.RequestBody.ContentType
		}
		req.Header.Set("Content-Type", ct)
	}
	for _, name := range sortedKeys(call.HeaderParams) {
		req.Header.Set(name, call.HeaderParams[name])
	}
	for _, h := range call.CustomHeaders {
		req.Header.Set(h.Name, h.Value)
	}
	for _, name := range sortedKeys(call.CookieParams) {
		req.AddCookie(&http.Cookie{Name: name, Value: call.CookieParams[name]})
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}
	return req, nil
}

// attemptRequest clones req for one attempt with a fresh body.
func attemptRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
