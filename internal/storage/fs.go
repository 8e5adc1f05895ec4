package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	noteExt   = ".md"
	tmpPrefix = ".focusguard-tmp-"
	fileMode  = 0o644
)

// FS is a Provider over a vault directory on disk. All access goes through
// an os.Root, so no path can reach outside the vault, symlinks included.
type FS struct {
	dir  string
	root *os.Root
}

// NewFS opens the vault at dir, which must already exist.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open vault: %w", err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.dir }

// Close releases the vault handle.
func (f *FS) Close() error { return f.root.Close() }

// hidden reports vault bookkeeping entries such as .obsidian, .trash or
// our own temp files.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// List returns metadata for every note under dir, skipping hidden
// directories. A missing dir is an empty listing.
func (f *FS) List(dir string) ([]FileInfo, error) {
	base := "."
	if dir != "" {
		base = filepath.ToSlash(filepath.Clean(dir))
	}
	fsys := f.root.FS()

	var out []FileInfo
	err := fs.WalkDir(fsys, base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == base && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if hidden(d.Name()) && p != base {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || path.Ext(p) != noteExt {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		out = append(out, FileInfo{
			Path:      filepath.FromSlash(p),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(name string) ([]byte, error) {
	data, err := f.root.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Write replaces name atomically: the content goes to a sibling temp file
// that is synced and renamed over the target. An existing file keeps its
// permissions.
func (f *FS) Write(name string, content []byte) error {
	clean := filepath.Clean(name)
	dir := filepath.Dir(clean)
	if err := f.root.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	mode := os.FileMode(fileMode)
	if st, err := f.root.Stat(clean); err == nil {
		mode = st.Mode().Perm()
	}

	tmpName := filepath.Join(dir, tmpPrefix+uuid.NewString())
	tmp, err := f.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.root.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.root.Rename(tmpName, clean); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
