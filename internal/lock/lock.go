// Package lock arbitrates per-path file access across concurrently running
// tasks: a single writer excludes all readers, writers get preference over
// newly arriving readers, and callers are responsible for acquiring
// multiple paths in lexicographic order to avoid deadlock.
package lock

import (
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

type pathState struct {
	writer       core.TaskID
	hasWriter    bool
	readers      map[core.TaskID]struct{}
	writerQueued bool // a writer is waiting for readers to drain (preference flag)
}

// Manager is the globally-arbitrated FileLockManager. It never blocks: every
// acquire call returns immediately with Ok or a typed contention error, and
// the caller (the executor's task body) re-queues itself for the next
// scheduling round rather than waiting in-process.
type Manager struct {
	mu    sync.Mutex
	paths map[string]*pathState
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{paths: make(map[string]*pathState)}
}

func (m *Manager) state(path string) *pathState {
	st, ok := m.paths[path]
	if !ok {
		st = &pathState{readers: make(map[core.TaskID]struct{})}
		m.paths[path] = st
	}
	return st
}

// TryAcquireWrite attempts to take the exclusive write lock on path for
// task. Fails with FileLockedByTask if another task already holds the
// write lock, or FileHasActiveReaders if any reader holds it.
func (m *Manager) TryAcquireWrite(task core.TaskID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(path)
	if st.hasWriter && st.writer != task {
		return core.NewError(core.KindFileLockedByTask, "file locked by another task: "+path).
			WithDetail("path", path).WithDetail("holder", string(st.writer))
	}
	if len(st.readers) > 0 {
		st.writerQueued = true
		return core.NewError(core.KindFileHasActiveReaders, "file has active readers: "+path).
			WithDetail("path", path)
	}
	st.hasWriter = true
	st.writer = task
	st.writerQueued = false
	return nil
}

// TryAcquireRead attempts to take a shared read lock on path for task.
// Fails with FileLockedByTask if a writer holds the path, or if a writer is
// queued waiting for readers to drain (writer-preference: new readers wait
// behind a pending writer).
func (m *Manager) TryAcquireRead(task core.TaskID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(path)
	if st.hasWriter && st.writer != task {
		return core.NewError(core.KindFileLockedByTask, "file locked by another task: "+path).
			WithDetail("path", path).WithDetail("holder", string(st.writer))
	}
	if st.writerQueued {
		return core.NewError(core.KindFileLockedByTask, "writer queued for: "+path).
			WithDetail("path", path)
	}
	st.readers[task] = struct{}{}
	return nil
}

// ReleaseAll releases every lock task holds, across all paths.
func (m *Manager) ReleaseAll(task core.TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.paths {
		if st.hasWriter && st.writer == task {
			st.hasWriter = false
			st.writer = ""
			st.writerQueued = false
		}
		delete(st.readers, task)
	}
}

// AcquireAllWrites attempts to take the write lock on every path, in
// lexicographic order (the deadlock-prevention convention enforced at the
// call site per spec). On the first failure it releases everything it has
// already acquired and returns that failure, so a caller retries cleanly.
func (m *Manager) AcquireAllWrites(task core.TaskID, paths []string) error {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	acquired := make([]string, 0, len(sorted))
	for _, p := range sorted {
		if err := m.TryAcquireWrite(task, p); err != nil {
			m.releasePaths(task, acquired)
			return err
		}
		acquired = append(acquired, p)
	}
	return nil
}

func (m *Manager) releasePaths(task core.TaskID, paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		st, ok := m.paths[p]
		if !ok {
			continue
		}
		if st.hasWriter && st.writer == task {
			st.hasWriter = false
			st.writer = ""
			st.writerQueued = false
		}
		delete(st.readers, task)
	}
}
