package respcache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/aperture-cli/aperture/internal/fsutil"
)

// FileCache persists entries as one JSON file per key under a directory,
// so cached responses survive across CLI invocations. Like MemoryCache it
// holds at most maxEntries files and evicts the one closest to expiry.
type FileCache struct {
	fs         afero.Fs
	dir        string
	maxEntries int
	now        Clock
}

// NewFileCache returns a file cache rooted at dir holding at most
// maxEntries entries; zero means DefaultMaxEntries. A nil clock uses time.Now.
func NewFileCache(fs afero.Fs, dir string, maxEntries int, now Clock) *FileCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &FileCache{fs: fs, dir: dir, maxEntries: maxEntries, now: now}
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get reads an entry. Unreadable and expired files are removed and reported as a miss.
func (c *FileCache) Get(_ context.Context, key string) (*Entry, bool) {
	if !validKey(key) {
		return nil, false
	}
	p := c.path(key)
	data, err := afero.ReadFile(c.fs, p)
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.fs.Remove(p)
		return nil, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		c.fs.Remove(p)
		return nil, false
	}
	return &entry, true
}

// Set writes entry for ttl, replacing any previous file atomically.
func (c *FileCache) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 || entry == nil || !validKey(key) {
		return nil
	}
	now := c.now()
	stored := *entry
	stored.StoredAt = now
	stored.ExpiresAt = now.Add(ttl)

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if exists, _ := afero.Exists(c.fs, c.path(key)); !exists {
		if err := c.evict(now); err != nil {
			return err
		}
	}
	return fsutil.AtomicWriteFile(c.fs, c.path(key), data, fsutil.FilePerm)
}

// Delete removes an entry. Idempotent.
func (c *FileCache) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	if err := c.fs.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// evict makes room for one more entry: expired and unreadable files go
// first, then the soonest-expiring ones until the count is below the bound.
func (c *FileCache) evict(now time.Time) error {
	names, err := c.entryFiles()
	if err != nil || len(names) < c.maxEntries {
		return err
	}

	type live struct {
		name    string
		expires time.Time
	}
	var kept []live
	for _, name := range names {
		p := filepath.Join(c.dir, name)
		var entry Entry
		data, err := afero.ReadFile(c.fs, p)
		if err == nil {
			err = json.Unmarshal(data, &entry)
		}
		if err != nil || !now.Before(entry.ExpiresAt) {
			c.fs.Remove(p)
			continue
		}
		kept = append(kept, live{name: name, expires: entry.ExpiresAt})
	}
	if len(kept) < c.maxEntries {
		return nil
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].expires.Before(kept[j].expires) })
	for _, v := range kept[:len(kept)-c.maxEntries+1] {
		if err := c.fs.Remove(filepath.Join(c.dir, v.name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// entryFiles lists the entry file names under dir.
func (c *FileCache) entryFiles() ([]string, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}

// Len returns the number of stored entries, expired or not.
func (c *FileCache) Len() int {
	names, _ := c.entryFiles()
	return len(names)
}

// Clear removes every cached response and returns how many were removed.
func (c *FileCache) Clear() (int, error) {
	names, err := c.entryFiles()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		if err := c.fs.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}

// validKey accepts only the hex digests produced by Key.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

var _ Cache = (*FileCache)(nil)
