package validator

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/merlin/internal/workspace"
)

// BuildEnv materializes a workspace.Snapshot into a temporary directory so
// the Build/Test/Lint stages can shell out against a real file tree without
// mutating the live WorkspaceState. The directory is removed on Close.
type BuildEnv struct {
	Dir string
}

// NewBuildEnv creates a BuildEnv rooted under
// <workspaceRoot>/.merlin-build-<nonce>, writing every file in snap.
func NewBuildEnv(workspaceRoot string, snap *workspace.Snapshot) (*BuildEnv, error) {
	dir := filepath.Join(workspaceRoot, ".merlin-build-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	for path, content := range snap.Content {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}
	return &BuildEnv{Dir: dir}, nil
}

// Close deletes the materialized temporary directory.
func (b *BuildEnv) Close() error {
	return os.RemoveAll(b.Dir)
}
