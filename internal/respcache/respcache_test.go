package respcache

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"

	"github.com/aperture-cli/aperture/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func sampleCall() *model.OperationCall {
	call := model.NewOperationCall("getUser")
	call.PathParams["id"] = "42"
	call.QueryParams["verbose"] = "true"
	call.QueryParams["limit"] = "10"
	return call
}

func TestKeyDeterministic(t *testing.T) {
	a, err := Key(KeyInput{API: "demo", Call: sampleCall()})
	if err != nil {
		t.Fatal(err)
	}

	// Same content, maps built in a different order.
	call := model.NewOperationCall("getUser")
	call.QueryParams["limit"] = "10"
	call.QueryParams["verbose"] = "true"
	call.PathParams["id"] = "42"
	b, err := Key(KeyInput{API: "demo", Call: call})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("keys differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d", len(a))
	}
}

func TestKeyDistinguishesCalls(t *testing.T) {
	base, _ := Key(KeyInput{API: "demo", Call: sampleCall()})

	variants := map[string]KeyInput{}

	otherAPI := KeyInput{API: "other", Call: sampleCall()}
	variants["api"] = otherAPI

	variants["base url"] = KeyInput{API: "demo", BaseURL: "https://staging.example.com", Call: sampleCall()}

	withKey := KeyInput{API: "demo", Call: sampleCall(), IdempotencyKey: "k1"}
	variants["idempotency key"] = withKey

	param := sampleCall()
	param.PathParams["id"] = "43"
	variants["path param"] = KeyInput{API: "demo", Call: param}

	body := sampleCall()
	b := `{"a":1}`
	body.Body = &b
	variants["body"] = KeyInput{API: "demo", Call: body}

	header := sampleCall()
	header.HeaderParams["X-Trace"] = "1"
	variants["header"] = KeyInput{API: "demo", Call: header}

	for name, in := range variants {
		k, err := Key(in)
		if err != nil {
			t.Fatal(err)
		}
		if k == base {
			t.Errorf("%s: key did not change", name)
		}
	}
}

func TestKeyDeterminism_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("equal calls have equal keys", prop.ForAll(
		func(op string, params map[string]string) bool {
			mk := func() *model.OperationCall {
				c := model.NewOperationCall(op)
				for k, v := range params {
					c.QueryParams[k] = v
				}
				return c
			}
			a, err1 := Key(KeyInput{API: "x", Call: mk()})
			b, err2 := Key(KeyInput{API: "x", Call: mk()})
			return err1 == nil && err2 == nil && a == b
		},
		gen.Identifier(),
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestEligible(t *testing.T) {
	get := &model.CachedCommand{Method: "GET", Tags: []string{"users"}}
	post := &model.CachedCommand{Method: "POST"}
	adminGet := &model.CachedCommand{Method: "GET", Tags: []string{"Admin"}}

	tests := []struct {
		name string
		cfg  Config
		cmd  *model.CachedCommand
		key  string
		want bool
	}{
		{"disabled", Config{}, get, "", false},
		{"get", Config{Enabled: true}, get, "", true},
		{"post without opt-in", Config{Enabled: true}, post, "k", false},
		{"post opt-in without key", Config{Enabled: true, AllowMutating: true}, post, "", false},
		{"post opt-in with key", Config{Enabled: true, AllowMutating: true}, post, "k", true},
		{"excluded tag", Config{Enabled: true, ExcludeTags: []string{"admin"}}, adminGet, "", false},
		{"nil command", Config{Enabled: true}, nil, "", false},
	}
	for _, tt := range tests {
		if got := tt.cfg.Eligible(tt.cmd, tt.key); got != tt.want {
			t.Errorf("%s: Eligible = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStorable(t *testing.T) {
	for status, want := range map[int]bool{200: true, 204: true, 299: true, 304: false, 404: false, 500: false} {
		if got := Storable(status); got != want {
			t.Errorf("Storable(%d) = %v", status, got)
		}
	}
}

func cacheFactories() map[string]func(Clock) Cache {
	return map[string]func(Clock) Cache{
		"memory": func(now Clock) Cache { return NewMemoryCache(10, now) },
		"file": func(now Clock) Cache {
			return NewFileCache(afero.NewMemMapFs(), "/cache/responses", 10, now)
		},
	}
}

func TestCacheTTL(t *testing.T) {
	ctx := context.Background()
	key, _ := Key(KeyInput{API: "demo", Call: sampleCall()})

	for name, factory := range cacheFactories() {
		t.Run(name, func(t *testing.T) {
			clock := newClock()
			c := factory(clock.Now)

			if _, ok := c.Get(ctx, key); ok {
				t.Fatal("unexpected hit on empty cache")
			}
			entry := &Entry{Status: 200, Body: []byte(`{"id":42}`)}
			if err := c.Set(ctx, key, entry, time.Minute); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, ok := c.Get(ctx, key)
			if !ok || string(got.Body) != `{"id":42}` || got.Status != 200 {
				t.Fatalf("Get = %+v, %v", got, ok)
			}

			clock.Advance(2 * time.Minute)
			if _, ok := c.Get(ctx, key); ok {
				t.Error("expired entry returned")
			}

			if err := c.Set(ctx, key, entry, 0); err != nil {
				t.Fatal(err)
			}
			if _, ok := c.Get(ctx, key); ok {
				t.Error("ttl=0 must not store")
			}

			if err := c.Set(ctx, key, entry, time.Minute); err != nil {
				t.Fatal(err)
			}
			if err := c.Delete(ctx, key); err != nil {
				t.Fatal(err)
			}
			if err := c.Delete(ctx, key); err != nil {
				t.Errorf("second Delete: %v", err)
			}
			if _, ok := c.Get(ctx, key); ok {
				t.Error("deleted entry returned")
			}
		})
	}
}

func TestCacheEviction(t *testing.T) {
	type bounded interface {
		Cache
		Len() int
	}
	factories := map[string]func(Clock) bounded{
		"memory": func(now Clock) bounded { return NewMemoryCache(2, now) },
		"file": func(now Clock) bounded {
			return NewFileCache(afero.NewMemMapFs(), "/cache/responses", 2, now)
		},
	}
	ctx := context.Background()
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			clock := newClock()
			c := factory(clock.Now)

			c.Set(ctx, "aa", &Entry{Status: 200}, time.Minute)
			c.Set(ctx, "bb", &Entry{Status: 200}, 2*time.Minute)
			c.Set(ctx, "cc", &Entry{Status: 200}, 3*time.Minute)

			if c.Len() != 2 {
				t.Fatalf("Len = %d, want 2", c.Len())
			}
			if _, ok := c.Get(ctx, "aa"); ok {
				t.Error("soonest-expiring entry should have been evicted")
			}
			if _, ok := c.Get(ctx, "cc"); !ok {
				t.Error("newest entry missing")
			}

			// Overwriting an existing key does not evict.
			c.Set(ctx, "bb", &Entry{Status: 201}, 2*time.Minute)
			if _, ok := c.Get(ctx, "cc"); !ok || c.Len() != 2 {
				t.Errorf("overwrite evicted: Len = %d", c.Len())
			}

			// Expired entries are dropped before live ones.
			clock.Advance(150 * time.Second)
			c.Set(ctx, "dd", &Entry{Status: 200}, time.Minute)
			if _, ok := c.Get(ctx, "cc"); !ok {
				t.Error("live entry evicted while an expired one remained")
			}
			if _, ok := c.Get(ctx, "dd"); !ok {
				t.Error("new entry missing")
			}
		})
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c := NewFileCache(afero.NewMemMapFs(), "/cache/responses", 0, nil)
	for _, k := range []string{"aa", "bb"} {
		if err := c.Set(ctx, k, &Entry{Status: 200}, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil || n != 2 {
		t.Errorf("Clear = %d, %v", n, err)
	}
	if _, ok := c.Get(ctx, "aa"); ok {
		t.Error("entry survived Clear")
	}
}

func TestFileCacheRejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	c := NewFileCache(afero.NewMemMapFs(), "/cache/responses", 0, nil)
	if err := c.Set(ctx, "../escape", &Entry{Status: 200}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "../escape"); ok {
		t.Error("unsafe key stored")
	}
}
