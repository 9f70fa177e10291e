package config

import (
	"os"
	"path/filepath"
)

// AtomicWrite writes data to path atomically: it writes to a temp file in
// the same directory and renames it over the target, so readers never
// observe a partially-written config.toml or thread snapshot. An existing
// file's permissions are preserved across the rewrite; a new file gets
// 0600.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	perm := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	return atomicWriteFile(path, data, perm)
}
