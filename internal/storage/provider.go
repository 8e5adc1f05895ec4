// Package storage defines the vault file-system abstraction.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FileInfo describes one Markdown file of the vault.
type FileInfo struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	// A missing file yields an error matching os.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Root returns the absolute vault directory.
	Root() string
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
