package translate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/model"
)

func strPtr(s string) *string { return &s }

func testSpec() *model.CachedSpec {
	return &model.CachedSpec{
		Name: "demo",
		Commands: []model.CachedCommand{
			{
				Name:        "get-user",
				OperationID: "getUser",
				Method:      "GET",
				Path:        "/users/{id}",
				Parameters: []model.CachedParameter{
					{Name: "id", Location: model.LocationPath, Required: true},
					{Name: "verbose", Location: model.LocationQuery},
					{Name: "X-Trace", Location: model.LocationHeader},
					{Name: "session", Location: model.LocationCookie},
				},
			},
			{
				Name:        "create-user",
				OperationID: "createUser",
				Method:      "POST",
				Path:        "/users",
				RequestBody: &model.CachedRequestBody{
					ContentType: "application/json",
					Required:    true,
					Schema:      strPtr(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`),
				},
			},
		},
		BaseURL: strPtr("https://{region}.api.example.com/{version}/"),
		Servers: []string{"https://{region}.api.example.com/{version}/"},
		ServerVariables: map[string]model.ServerVariable{
			"region":  {Default: strPtr("us"), Enum: []string{"us", "eu"}},
			"version": {},
		},
	}
}

func TestTranslateRoutesParameters(t *testing.T) {
	call, err := Translate(testSpec(), RawArgs{
		Operation: "get-user",
		Params: map[string]string{
			"id":      "42",
			"verbose": "true",
			"X-Trace": "abc",
			"session": "s1",
		},
		Headers: []string{"X-Extra: one", "Accept:application/json"},
	}, Options{})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if call.OperationID != "getUser" {
		t.Errorf("operation id = %q", call.OperationID)
	}
	if call.PathParams["id"] != "42" || call.QueryParams["verbose"] != "true" ||
		call.HeaderParams["X-Trace"] != "abc" || call.CookieParams["session"] != "s1" {
		t.Errorf("call = %+v", call)
	}
	want := []model.Header{{Name: "X-Extra", Value: "one"}, {Name: "Accept", Value: "application/json"}}
	if !reflect.DeepEqual(call.CustomHeaders, want) {
		t.Errorf("custom headers = %+v", call.CustomHeaders)
	}
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name  string
		args  RawArgs
		field string
	}{
		{"unknown operation", RawArgs{Operation: "nope"}, "operation"},
		{"missing required", RawArgs{Operation: "getUser"}, "id"},
		{"unknown param", RawArgs{Operation: "getUser", Params: map[string]string{"id": "1", "bogus": "x"}}, "bogus"},
		{"empty path param", RawArgs{Operation: "getUser", Params: map[string]string{"id": ""}}, "id"},
		{"body not accepted", RawArgs{Operation: "getUser", Params: map[string]string{"id": "1"}, Body: strPtr("{}")}, "body"},
		{"body required", RawArgs{Operation: "createUser"}, "body"},
		{"body not json", RawArgs{Operation: "createUser", Body: strPtr("{nope")}, "body"},
		{"bad header", RawArgs{Operation: "createUser", Body: strPtr("{}"), Headers: []string{"no colon"}}, "header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(testSpec(), tt.args, Options{})
			if !apperr.Is(err, apperr.KindTranslation) {
				t.Fatalf("err = %v, want translation error", err)
			}
			var ae *apperr.Error
			if e, ok := err.(*apperr.Error); ok {
				ae = e
			}
			if ae == nil || ae.Field != tt.field {
				t.Errorf("field = %v, want %q", ae, tt.field)
			}
		})
	}
}

func TestTranslateSameNameInTwoLocations(t *testing.T) {
	spec := &model.CachedSpec{
		Name: "demo",
		Commands: []model.CachedCommand{{
			Name:        "get-doc",
			OperationID: "getDoc",
			Method:      "GET",
			Path:        "/docs/{id}",
			Parameters: []model.CachedParameter{
				{Name: "id", Location: model.LocationPath, Required: true},
				{Name: "id", Location: model.LocationHeader, Required: true},
				{Name: "page.size", Location: model.LocationQuery},
			},
		}},
	}

	call, err := Translate(spec, RawArgs{
		Operation: "getDoc",
		Params:    map[string]string{"path.id": "7", "header.id": "trace-1", "page.size": "20"},
	}, Options{})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if call.PathParams["id"] != "7" || call.HeaderParams["id"] != "trace-1" || call.QueryParams["page.size"] != "20" {
		t.Errorf("call = %+v", call)
	}

	_, err = Translate(spec, RawArgs{Operation: "getDoc", Params: map[string]string{"id": "7"}}, Options{})
	if !apperr.Is(err, apperr.KindTranslation) || !strings.Contains(err.Error(), "header.id") {
		t.Errorf("ambiguous name: err = %v", err)
	}
	_, err = Translate(spec, RawArgs{Operation: "getDoc", Params: map[string]string{"path.id": "7"}}, Options{})
	if !apperr.Is(err, apperr.KindTranslation) {
		t.Errorf("missing header id: err = %v", err)
	}
}

func TestTranslateValidateBody(t *testing.T) {
	args := RawArgs{Operation: "createUser", Body: strPtr(`{"age":3}`)}

	if _, err := Translate(testSpec(), args, Options{}); err != nil {
		t.Fatalf("without validation: %v", err)
	}
	if _, err := Translate(testSpec(), args, Options{ValidateBody: true}); !apperr.Is(err, apperr.KindTranslation) {
		t.Errorf("with validation: err = %v, want translation error", err)
	}

	args.Body = strPtr(`{"name":"ada"}`)
	call, err := Translate(testSpec(), args, Options{ValidateBody: true})
	if err != nil {
		t.Fatalf("valid body: %v", err)
	}
	if call.Body == nil || *call.Body != `{"name":"ada"}` {
		t.Errorf("body = %v", call.Body)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments("param", []string{"a=1", "b=x=y", "c="})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a": "1", "b": "x=y", "c": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAssignments = %v", got)
	}
	if _, err := ParseAssignments("param", []string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}
	if _, err := ParseAssignments("param", []string{"a=1", "a=2"}); err == nil {
		t.Error("expected error for duplicate key")
	}
}

func TestResolveBaseURLPrecedence(t *testing.T) {
	spec := testSpec()

	tests := []struct {
		name string
		in   BaseURLInput
		want string
	}{
		{
			name: "explicit override wins",
			in:   BaseURLInput{Override: "http://localhost:8080/", ConfigOverride: "https://cfg", VariableArgs: []string{"version=v1"}},
			want: "http://localhost:8080",
		},
		{
			name: "environment url",
			in:   BaseURLInput{Environment: "staging", EnvironmentURLs: map[string]string{"staging": "https://staging.example.com"}, ConfigOverride: "https://cfg"},
			want: "https://staging.example.com",
		},
		{
			name: "unknown environment falls through to config override",
			in:   BaseURLInput{Environment: "qa", EnvironmentURLs: map[string]string{"staging": "https://staging"}, ConfigOverride: "https://cfg"},
			want: "https://cfg",
		},
		{
			name: "template with defaults and args",
			in:   BaseURLInput{VariableArgs: []string{"version=v2"}},
			want: "https://us.api.example.com/v2",
		},
		{
			name: "config variables",
			in:   BaseURLInput{ConfigVariables: map[string]string{"region": "eu", "version": "v1"}},
			want: "https://eu.api.example.com/v1",
		},
		{
			name: "args beat config variables",
			in:   BaseURLInput{ConfigVariables: map[string]string{"region": "eu", "version": "v1"}, VariableArgs: []string{"region=us"}},
			want: "https://us.api.example.com/v1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBaseURL(spec, tt.in)
			if err != nil {
				t.Fatalf("ResolveBaseURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveBaseURLErrors(t *testing.T) {
	spec := testSpec()
	cases := map[string]BaseURLInput{
		"missing variable": {},
		"enum violation":   {VariableArgs: []string{"region=ap", "version=v1"}},
		"unknown variable": {VariableArgs: []string{"zone=a", "version=v1"}},
		"malformed arg":    {VariableArgs: []string{"region"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ResolveBaseURL(spec, in); !apperr.Is(err, apperr.KindTranslation) {
				t.Errorf("err = %v, want translation error", err)
			}
		})
	}

	noServers := &model.CachedSpec{Name: "bare"}
	if _, err := ResolveBaseURL(noServers, BaseURLInput{}); !apperr.Is(err, apperr.KindTranslation) {
		t.Errorf("no servers: err = %v", err)
	}
	if got, err := ResolveBaseURL(noServers, BaseURLInput{Override: "http://x"}); err != nil || got != "http://x" {
		t.Errorf("no servers with override = %q, %v", got, err)
	}
}
