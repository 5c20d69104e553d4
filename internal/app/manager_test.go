package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/cachestore"
	"github.com/aperture-cli/aperture/internal/model"
)

func TestAddSpec(t *testing.T) {
	m := newTestManager(t)
	res, err := m.AddSpec("pets", petsSpec("https://pets.example.com"), false)
	if err != nil {
		t.Fatalf("AddSpec: %v", err)
	}
	if res.Commands != 3 || res.Version != "2.0.0" {
		t.Errorf("AddResult = %+v", res)
	}

	if _, err := m.AddSpec("pets", petsSpec("https://other.example.com"), false); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("duplicate add: err = %v, want config error", err)
	}
	if _, err := m.AddSpec("pets", petsSpec("https://other.example.com"), true); err != nil {
		t.Fatalf("forced add: %v", err)
	}
	spec, err := m.LoadSpec("pets")
	if err != nil {
		t.Fatal(err)
	}
	if spec.BaseURL == nil || *spec.BaseURL != "https://other.example.com" {
		t.Errorf("forced add did not replace the spec: %v", spec.BaseURL)
	}
}

func TestAddSpecRejectsBadInput(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.AddSpec("bad", []byte("swagger: '2.0'\ninfo: {title: x, version: '1'}\npaths: {}\n"), false); !apperr.Is(err, apperr.KindParse) {
		t.Errorf("swagger 2: err = %v", err)
	}
	if _, err := m.AddSpec("../escape", petsSpec("http://x"), false); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("bad name: err = %v", err)
	}
	names, err := m.store.List()
	if err != nil || len(names) != 0 {
		t.Errorf("store not empty after failed adds: %v, %v", names, err)
	}
}

func TestAddSpecFile(t *testing.T) {
	m := newTestManager(t)
	afero.WriteFile(m.Fs(), "/tmp/pets.yaml", petsSpec("http://x"), 0o644)
	if _, err := m.AddSpecFile("pets", "/tmp/pets.yaml", false); err != nil {
		t.Fatalf("AddSpecFile: %v", err)
	}
	if _, err := m.AddSpecFile("none", "/tmp/missing.yaml", false); !apperr.Is(err, apperr.KindIO) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestLoadSpecRecompilesStaleCache(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "pets", "http://x")

	changed := strings.Replace(string(petsSpec("http://x")), "operationId: health", "operationId: ping", 1)
	if err := afero.WriteFile(m.Fs(), m.store.SourcePath("pets"), []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := m.LoadSpec("pets")
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if _, ok := spec.CommandByOperationID("ping"); !ok {
		t.Error("stale cache was served")
	}

	// The rewritten cache now matches the source.
	_, fp, _ := m.store.ReadSource("pets")
	if _, err := m.store.LoadFor("pets", fp); err != nil {
		t.Errorf("cache not rewritten: %v", err)
	}
}

func TestLoadSpecRecompilesForeignFormat(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "pets", "http://x")

	old, _ := json.Marshal(map[string]any{"cache_format_version": 1, "spec": map[string]any{}})
	if err := afero.WriteFile(m.Fs(), m.store.CachePath("pets"), old, 0o644); err != nil {
		t.Fatal(err)
	}
	spec, err := m.LoadSpec("pets")
	if err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if spec.CacheFormatVersion != model.CacheFormatVersion || len(spec.Commands) != 3 {
		t.Errorf("spec = %+v", spec)
	}
	entry, err := m.store.Load("pets")
	if err != nil || entry.Spec.CacheFormatVersion != model.CacheFormatVersion {
		t.Errorf("cache not rewritten: %v", err)
	}
}

func TestLoadSpecRecompilesMissingCache(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "pets", "http://x")
	m.Fs().Remove(m.store.CachePath("pets"))

	if _, err := m.LoadSpec("pets"); err != nil {
		t.Fatalf("LoadSpec: %v", err)
	}
	if _, err := m.store.Load("pets"); err == cachestore.ErrCacheMiss {
		t.Error("cache was not recreated")
	}
}

func TestLoadSpecUnknown(t *testing.T) {
	if _, err := newTestManager(t).LoadSpec("nope"); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("err = %v", err)
	}
}

func TestListAndLoadAll(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "zoo", "http://zoo")
	mustAdd(t, m, "pets", "http://pets")

	list, err := m.ListSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "pets" || list[1].Name != "zoo" {
		t.Fatalf("ListSpecs = %+v", list)
	}
	if list[0].BaseURL != "http://pets" || list[0].Commands != 3 {
		t.Errorf("summary = %+v", list[0])
	}

	all, err := m.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["zoo"] == nil || all["zoo"].Name != "zoo" {
		t.Errorf("LoadAll = %v", all)
	}
}

func TestRemoveSpec(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "pets", "http://x")
	if err := m.SetBaseURL("pets", "https://override.example.com", ""); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}

	if err := m.RemoveSpec("pets"); err != nil {
		t.Fatalf("RemoveSpec: %v", err)
	}
	cfg, err := m.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.APIConfigs) != 0 {
		t.Errorf("api config survived removal: %v", cfg.APIConfigs)
	}
	if err := m.RemoveSpec("pets"); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("second remove: err = %v", err)
	}
}

func TestSetBaseURLAndServerVariable(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "pets", "http://x")

	if err := m.SetBaseURL("pets", "https://staging.example.com", "staging"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetServerVariable("pets", "region", "eu"); err != nil {
		t.Fatal(err)
	}
	cfg, _ := m.LoadConfig()
	api := cfg.API("pets")
	if api.EnvironmentURLs["staging"] != "https://staging.example.com" || api.ServerVariables["region"] != "eu" {
		t.Errorf("api config = %+v", api)
	}

	if err := m.SetBaseURL("pets", "not a url", ""); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("invalid url: err = %v", err)
	}
	if err := m.SetBaseURL("ghost", "https://x", ""); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("unknown api: err = %v", err)
	}
}

func TestReinit(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a", "http://a")
	mustAdd(t, m, "b", "http://b")

	names, err := m.Reinit("")
	if err != nil || len(names) != 2 {
		t.Errorf("Reinit all = %v, %v", names, err)
	}
	if names, err := m.Reinit("a"); err != nil || len(names) != 1 {
		t.Errorf("Reinit one = %v, %v", names, err)
	}
	if _, err := m.Reinit("ghost"); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("Reinit unknown: err = %v", err)
	}
}
