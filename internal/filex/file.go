// Package filex contains filesystem helpers for saving downloaded files.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// SanitizeFileName strips directory components so a server-supplied name
// cannot escape the download directory.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case "", ".", "..", "/":
		return "download"
	}
	return name
}

// UniquePath returns dir/name, or dir/"base (n).ext" with the smallest n
// that does not exist yet.
func UniquePath(dir, name string) string {
	p := filepath.Join(dir, name)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return p
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		p = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
	}
}

// SaveStream copies r into a new file named after name inside dir. Data is
// written to a temporary file first and renamed on success, so a failed copy
// leaves nothing behind. It returns the final path and the bytes written.
func SaveStream(dir, name string, r io.Reader) (string, int64, error) {
	dir, err := EnsureDir(dir)
	if err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", n, fmt.Errorf("write %s: %w", name, err)
	}

	dst := UniquePath(dir, SanitizeFileName(name))
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", n, fmt.Errorf("rename to %s: %w", dst, err)
	}
	return dst, n, nil
}
