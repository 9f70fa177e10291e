//go:build !windows

package config

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile writes data to path via a temp file plus rename, using
// renameio so the fsync-before-rename ordering is handled for us.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
