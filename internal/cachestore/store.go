// Package cachestore persists source documents and compiled specs under the
// configuration root:
//
//	<root>/specs/<name>.yaml      source document as added
//	<root>/.cache/<name>.json     compiled envelope
//
// The envelope records the cache format version and the fingerprint of the
// source it was compiled from. Entries written by a different format version
// are never migrated; Load reports them as a version mismatch so the caller
// recompiles.
package cachestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/fingerprint"
	"github.com/aperture-cli/aperture/internal/fsutil"
	"github.com/aperture-cli/aperture/internal/model"
)

const (
	specsDir  = "specs"
	cacheDir  = ".cache"
	sourceExt = ".yaml"
	cacheExt  = ".json"
)

// ErrCacheMiss is returned by Load when no compiled entry exists.
var ErrCacheMiss = errors.New("no cached spec")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateName reports whether name can be used as an API name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return apperr.New(apperr.KindConfig, "invalid API name %q (letters, digits, '.', '_' and '-' only)", name)
	}
	return nil
}

// Entry is a loaded compiled spec together with the fingerprint of the
// source it was compiled from.
type Entry struct {
	Spec        *model.CachedSpec
	Fingerprint fingerprint.Fingerprint
}

// envelope is the on-disk form of a compiled spec.
type envelope struct {
	CacheFormatVersion uint32                  `json:"cache_format_version"`
	Fingerprint        fingerprint.Fingerprint `json:"fingerprint"`
	Spec               json.RawMessage         `json:"spec"`
}

// Store reads and writes specs on an afero filesystem.
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a store rooted at root.
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// Root returns the configuration root.
func (s *Store) Root() string { return s.root }

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs { return s.fs }

// SourcePath returns the path of the stored source document for name.
func (s *Store) SourcePath(name string) string {
	return filepath.Join(s.root, specsDir, name+sourceExt)
}

// CachePath returns the path of the compiled envelope for name.
func (s *Store) CachePath(name string) string {
	return filepath.Join(s.root, cacheDir, name+cacheExt)
}

// CacheDir returns the directory holding compiled envelopes and other caches.
func (s *Store) CacheDir() string {
	return filepath.Join(s.root, cacheDir)
}

// SaveSource stores the source document for name.
func (s *Store) SaveSource(name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := fsutil.AtomicWriteFile(s.fs, s.SourcePath(name), data, fsutil.FilePerm); err != nil {
		return apperr.Wrap(apperr.KindIO, err, "write source for %q", name)
	}
	return nil
}

// ReadSource returns the stored source document and its current fingerprint.
func (s *Store) ReadSource(name string) ([]byte, fingerprint.Fingerprint, error) {
	fp, data, err := fingerprint.Of(s.fs, s.SourcePath(name))
	if err != nil {
		return nil, fingerprint.Fingerprint{}, apperr.Wrap(apperr.KindIO, err, "read source for %q", name)
	}
	return data, fp, nil
}

// Save writes the compiled spec for name, stamped with the current cache
// format version and the given source fingerprint.
func (s *Store) Save(name string, spec *model.CachedSpec, fp fingerprint.Fingerprint) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, err, "encode compiled spec %q", name)
	}
	data, err := json.MarshalIndent(envelope{
		CacheFormatVersion: model.CacheFormatVersion,
		Fingerprint:        fp,
		Spec:               specJSON,
	}, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindIO, err, "encode cache envelope %q", name)
	}
	if err := fsutil.AtomicWriteFile(s.fs, s.CachePath(name), data, fsutil.FilePerm); err != nil {
		return apperr.Wrap(apperr.KindIO, err, "write cache for %q", name)
	}
	return nil
}

// Load reads the compiled spec for name. It returns ErrCacheMiss when no
// entry exists and a KindCacheVersionMismatch error when the entry was
// written by another cache format version.
func (s *Store) Load(name string) (*Entry, error) {
	data, err := afero.ReadFile(s.fs, s.CachePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, apperr.Wrap(apperr.KindIO, err, "read cache for %q", name)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// An unreadable envelope is handled like a foreign format.
		return nil, apperr.Wrap(apperr.KindCacheVersionMismatch, err, "decode cache for %q", name)
	}
	if env.CacheFormatVersion != model.CacheFormatVersion {
		return nil, apperr.New(apperr.KindCacheVersionMismatch,
			"cache for %q has format version %d, want %d", name, env.CacheFormatVersion, model.CacheFormatVersion)
	}

	var spec model.CachedSpec
	if err := json.Unmarshal(env.Spec, &spec); err != nil {
		return nil, apperr.Wrap(apperr.KindCacheVersionMismatch, err, "decode compiled spec %q", name)
	}
	if spec.CacheFormatVersion != model.CacheFormatVersion {
		return nil, apperr.New(apperr.KindCacheVersionMismatch,
			"compiled spec %q has format version %d, want %d", name, spec.CacheFormatVersion, model.CacheFormatVersion)
	}
	return &Entry{Spec: &spec, Fingerprint: env.Fingerprint}, nil
}

// LoadFor loads the compiled spec for name and checks it against the
// fingerprint of the current source. A mismatch is a KindCacheStale error.
func (s *Store) LoadFor(name string, source fingerprint.Fingerprint) (*model.CachedSpec, error) {
	entry, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	if !entry.Fingerprint.Matches(source) {
		return nil, apperr.New(apperr.KindCacheStale, "cache for %q does not match its source", name)
	}
	return entry.Spec, nil
}

// Remove deletes both the source and the compiled entry for name.
// Missing files are not an error.
func (s *Store) Remove(name string) error {
	for _, p := range []string{s.SourcePath(name), s.CachePath(name)} {
		if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			return apperr.Wrap(apperr.KindIO, err, "remove %s", p)
		}
	}
	return nil
}

// Has reports whether a source document is stored for name.
func (s *Store) Has(name string) bool {
	_, err := s.fs.Stat(s.SourcePath(name))
	return err == nil
}

// List returns the sorted names of all stored source documents.
func (s *Store) List() ([]string, error) {
	dir := filepath.Join(s.root, specsDir)
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, apperr.Wrap(apperr.KindIO, err, "list %s", dir)
	}
	names := []string{}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), sourceExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(info.Name(), sourceExt))
	}
	sort.Strings(names)
	return names, nil
}
