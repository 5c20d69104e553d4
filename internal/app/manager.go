// Package app - manager.go owns the registered APIs: source documents,
// their compiled caches and the global configuration.
package app

import (
	"errors"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/cachestore"
	"github.com/aperture-cli/aperture/internal/compiler"
	"github.com/aperture-cli/aperture/internal/config"
	"github.com/aperture-cli/aperture/internal/fingerprint"
	"github.com/aperture-cli/aperture/internal/logging"
	"github.com/aperture-cli/aperture/internal/model"
)

// Manager coordinates the spec store, the compiler and the config file
// under one configuration root.
type Manager struct {
	fs     afero.Fs
	root   string
	store  *cachestore.Store
	logger *log.Logger
}

// NewManager returns a manager for root on fs. A nil logger discards.
func NewManager(fs afero.Fs, root string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		fs:     fs,
		root:   root,
		store:  cachestore.New(fs, root),
		logger: logger,
	}
}

// Root returns the configuration root.
func (m *Manager) Root() string { return m.root }

// Fs returns the filesystem the manager works on.
func (m *Manager) Fs() afero.Fs { return m.fs }

// ResponseCacheDir is where the file-backed response cache lives.
func (m *Manager) ResponseCacheDir() string {
	return filepath.Join(m.store.CacheDir(), "responses")
}

// AddResult describes a newly registered API.
type AddResult struct {
	Name     string                  `json:"name"`
	Version  string                  `json:"version"`
	Commands int                     `json:"commands"`
	Skipped  []model.SkippedEndpoint `json:"skipped"`
}

// AddSpec compiles data and registers it as name. An existing name is
// replaced only with force. Nothing is written when compilation fails.
func (m *Manager) AddSpec(name string, data []byte, force bool) (*AddResult, error) {
	if err := cachestore.ValidateName(name); err != nil {
		return nil, err
	}
	if m.store.Has(name) && !force {
		return nil, apperr.New(apperr.KindConfig, "API %q already exists (use --force to replace it)", name)
	}

	spec, err := compiler.Compile(name, data)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveSource(name, data); err != nil {
		return nil, err
	}
	_, fp, err := m.store.ReadSource(name)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(name, spec, fp); err != nil {
		return nil, err
	}
	m.logger.Info("registered API", "name", name, "commands", len(spec.Commands), "skipped", len(spec.SkippedEndpoints))

	return &AddResult{
		Name:     name,
		Version:  spec.Version,
		Commands: len(spec.Commands),
		Skipped:  spec.SkippedEndpoints,
	}, nil
}

// AddSpecFile registers the document at path as name.
func (m *Manager) AddSpecFile(name, path string, force bool) (*AddResult, error) {
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err, "read %s", path)
	}
	return m.AddSpec(name, data, force)
}

// RemoveSpec unregisters name and drops its per-API configuration.
func (m *Manager) RemoveSpec(name string) error {
	if !m.store.Has(name) {
		return notFound(name)
	}
	if err := m.store.Remove(name); err != nil {
		return err
	}
	cfg, err := m.LoadConfig()
	if err != nil {
		return err
	}
	before := len(cfg.APIConfigs)
	cfg.RemoveAPI(name)
	if len(cfg.APIConfigs) == before {
		return nil
	}
	return m.SaveConfig(cfg)
}

// SpecSummary is one row of ListSpecs.
type SpecSummary struct {
	Name     string                  `json:"name"`
	Version  string                  `json:"version"`
	BaseURL  string                  `json:"base_url,omitempty"`
	Commands int                     `json:"commands"`
	Skipped  []model.SkippedEndpoint `json:"skipped"`
	Error    string                  `json:"error,omitempty"`
}

// ListSpecs summarizes every registered API. An API whose source no longer
// compiles is listed with its error instead of failing the whole listing.
func (m *Manager) ListSpecs() ([]SpecSummary, error) {
	names, err := m.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]SpecSummary, 0, len(names))
	for _, name := range names {
		spec, err := m.LoadSpec(name)
		if err != nil {
			out = append(out, SpecSummary{Name: name, Error: err.Error(), Skipped: []model.SkippedEndpoint{}})
			continue
		}
		s := SpecSummary{
			Name:     name,
			Version:  spec.Version,
			Commands: len(spec.Commands),
			Skipped:  spec.SkippedEndpoints,
		}
		if spec.BaseURL != nil {
			s.BaseURL = *spec.BaseURL
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSpec returns the compiled spec for name. A missing, stale or
// foreign-format cache is recompiled from the stored source and rewritten
// without surfacing an error.
func (m *Manager) LoadSpec(name string) (*model.CachedSpec, error) {
	if err := cachestore.ValidateName(name); err != nil {
		return nil, err
	}
	if !m.store.Has(name) {
		return nil, notFound(name)
	}
	data, fp, err := m.store.ReadSource(name)
	if err != nil {
		return nil, err
	}

	spec, err := m.store.LoadFor(name, fp)
	switch {
	case err == nil:
		return spec, nil
	case errors.Is(err, cachestore.ErrCacheMiss),
		apperr.Is(err, apperr.KindCacheStale),
		apperr.Is(err, apperr.KindCacheVersionMismatch):
		m.logger.Debug("recompiling cache", "name", name, "reason", err)
		return m.recompile(name, data, fp)
	default:
		return nil, err
	}
}

func (m *Manager) recompile(name string, data []byte, fp fingerprint.Fingerprint) (*model.CachedSpec, error) {
	spec, err := compiler.Compile(name, data)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(name, spec, fp); err != nil {
		return nil, err
	}
	return spec, nil
}

// Reinit recompiles name, or every API when name is empty, regardless of
// cache state. It returns the names that were rebuilt.
func (m *Manager) Reinit(name string) ([]string, error) {
	names := []string{name}
	if name == "" {
		var err error
		if names, err = m.store.List(); err != nil {
			return nil, err
		}
	}
	for _, n := range names {
		if !m.store.Has(n) {
			return nil, notFound(n)
		}
		data, fp, err := m.store.ReadSource(n)
		if err != nil {
			return nil, err
		}
		if _, err := m.recompile(n, data, fp); err != nil {
			return nil, err
		}
		m.logger.Info("recompiled API", "name", n)
	}
	return names, nil
}

// LoadAll returns every registered API keyed by name, for read-only
// consumers such as search.
func (m *Manager) LoadAll() (map[string]*model.CachedSpec, error) {
	names, err := m.store.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.CachedSpec, len(names))
	for _, name := range names {
		spec, err := m.LoadSpec(name)
		if err != nil {
			return nil, err
		}
		out[name] = spec
	}
	return out, nil
}

// LoadConfig reads the global configuration.
func (m *Manager) LoadConfig() (*config.Config, error) {
	return config.Load(m.fs, m.root)
}

// SaveConfig writes the global configuration.
func (m *Manager) SaveConfig(cfg *config.Config) error {
	return config.Save(m.fs, m.root, cfg)
}

// SetBaseURL sets the base URL override for name, or the URL of one
// environment when env is non-empty. An empty url clears the setting.
func (m *Manager) SetBaseURL(name, url, env string) error {
	if !m.store.Has(name) {
		return notFound(name)
	}
	cfg, err := m.LoadConfig()
	if err != nil {
		return err
	}
	api := cfg.API(name)
	if env == "" {
		api.BaseURLOverride = url
	} else {
		if api.EnvironmentURLs == nil {
			api.EnvironmentURLs = map[string]string{}
		}
		if url == "" {
			delete(api.EnvironmentURLs, env)
		} else {
			api.EnvironmentURLs[env] = url
		}
	}
	cfg.SetAPI(name, api)
	return m.SaveConfig(cfg)
}

// SetServerVariable stores a default value for one server URL variable of name.
func (m *Manager) SetServerVariable(name, variable, value string) error {
	if !m.store.Has(name) {
		return notFound(name)
	}
	cfg, err := m.LoadConfig()
	if err != nil {
		return err
	}
	api := cfg.API(name)
	if api.ServerVariables == nil {
		api.ServerVariables = map[string]string{}
	}
	api.ServerVariables[variable] = value
	cfg.SetAPI(name, api)
	return m.SaveConfig(cfg)
}

func notFound(name string) error {
	return apperr.New(apperr.KindConfig, "API %q is not registered (see 'aperture config list')", name)
}
