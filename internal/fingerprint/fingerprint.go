// Package fingerprint detects whether a compiled cache still matches its
// source document. The content hash is authoritative; the modification time
// is recorded only as a diagnostic hint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/afero"
)

// Fingerprint identifies one version of a source document.
type Fingerprint struct {
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	Mtime       *int64 `json:"mtime,omitempty"`
}

// ContentHash returns the hex-encoded SHA-256 digest of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileMtime returns the modification time of path in seconds since the epoch,
// or nil if it cannot be determined.
func FileMtime(fs afero.Fs, path string) *int64 {
	info, err := fs.Stat(path)
	if err != nil {
		return nil
	}
	secs := info.ModTime().Unix()
	return &secs
}

// FromBytes builds a fingerprint for in-memory content with no mtime hint.
func FromBytes(data []byte) Fingerprint {
	return Fingerprint{ContentHash: ContentHash(data), Size: int64(len(data))}
}

// Of reads path and returns its fingerprint together with the content.
func Of(fs afero.Fs, path string) (Fingerprint, []byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Fingerprint{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	fp := FromBytes(data)
	fp.Mtime = FileMtime(fs, path)
	return fp, data, nil
}

// Matches reports whether two fingerprints describe the same content.
// Only the hash is compared.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.ContentHash != "" && f.ContentHash == other.ContentHash
}
