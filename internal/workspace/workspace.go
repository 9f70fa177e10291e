// Package workspace holds the executor pool's shared in-memory working
// copies: a thread-safe content map per path plus fast content hashing for
// conflict detection on commit.
package workspace

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/fsutil"
)

// Snapshot is an immutable view over a subset of a WorkspaceState's files,
// captured under a shared read lease. Each entry's hash is the 64-bit
// content digest recorded at snapshot time (the task's base_hash).
type Snapshot struct {
	Root    string
	Content map[string]string
	Hashes  map[string]uint64
}

// Content returns the file's snapshotted content and whether it was present.
func (s *Snapshot) Get(path string) (string, bool) {
	c, ok := s.Content[path]
	return c, ok
}

// State is the thread-safe container for in-memory working copies shared
// by every concurrently-running task. Readers may proceed in parallel; a
// single writer excludes all readers — sequentially consistent on the map.
type State struct {
	mu    sync.RWMutex
	root  string
	files map[string]string
}

// New creates an empty State rooted at root.
func New(root string) *State {
	return &State{root: root, files: make(map[string]string)}
}

// Seed preloads file content, e.g. from disk at startup. Not itself
// thread-safe against concurrent readers; callers must seed before
// publishing the State to the executor pool.
func (s *State) Seed(path, content string) {
	s.files[path] = content
}

// SeedFromDisk reads path from disk, scoped to its own directory via
// fsutil.ReadFileScoped so a task's declared file path can never escape
// its containing directory, and seeds its content.
func (s *State) SeedFromDisk(path string) error {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return err
	}
	s.Seed(path, string(data))
	return nil
}

// Root returns the workspace's root path.
func (s *State) Root() string { return s.root }

// ReadFile takes a shared read lease and returns a path's content.
func (s *State) ReadFile(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.files[path]
	return c, ok
}

// Hash returns the 64-bit content digest for path, or 0 if absent. xxhash
// is the corpus-wide choice for fast, non-cryptographic content hashing.
func (s *State) Hash(path string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hashContent(s.files[path])
}

func hashContent(content string) uint64 {
	return xxhash.Sum64String(content)
}

// Snapshot takes a shared read lease and produces an immutable map over the
// requested paths, recording each path's base_hash.
func (s *State) Snapshot(paths []string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Root:    s.root,
		Content: make(map[string]string, len(paths)),
		Hashes:  make(map[string]uint64, len(paths)),
	}
	for _, p := range paths {
		c := s.files[p]
		snap.Content[p] = c
		snap.Hashes[p] = hashContent(c)
	}
	return snap
}

// ApplyChanges takes an exclusive write lease and applies changes
// all-or-nothing against baseHashes: for every touched path, the file's
// current hash must equal its recorded base_hash, or the whole call fails
// with ConflictDetected and the in-memory map is left untouched.
func (s *State) ApplyChanges(changes []core.FileChange, baseHashes map[string]uint64) (map[string]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range changes {
		base, tracked := baseHashes[ch.Path]
		if !tracked {
			continue
		}
		if hashContent(s.files[ch.Path]) != base {
			return nil, core.NewError(core.KindConflictDetected, "workspace diverged for "+ch.Path).
				WithDetail("path", ch.Path)
		}
	}

	// All preconditions held; apply atomically. Revert is unnecessary since
	// the check above already guarantees every write will succeed — there
	// is no I/O here to fail mid-apply (the map itself is the commit).
	newHashes := make(map[string]uint64, len(changes))
	for _, ch := range changes {
		switch ch.Kind {
		case core.FileChangeDelete:
			delete(s.files, ch.Path)
			newHashes[ch.Path] = 0
		default:
			s.files[ch.Path] = ch.Content
			newHashes[ch.Path] = hashContent(ch.Content)
		}
	}
	return newHashes, nil
}
