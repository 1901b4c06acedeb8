// Package resource tracks transient files and directories created during a
// conversion and guarantees their cleanup.
package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const tempDirPermissions = 0o750

// Kind distinguishes tracked files from tracked directories.
type Kind string

const (
	// KindFile marks a tracked regular file.
	KindFile Kind = "file"
	// KindDirectory marks a tracked directory.
	KindDirectory Kind = "directory"
)

// Manager tracks temporary resources and removes them on cleanup. Cleanup
// failures are logged and never abort the remaining batch. The tracked set is
// always the union of the file and directory sub-sets.
type Manager struct {
	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
	log   *logger.Logger
}

// NewManager creates an empty resource manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		files: make(map[string]struct{}),
		dirs:  make(map[string]struct{}),
		log:   log,
	}
}

// RegisterFile tracks a file for cleanup. Paths that do not currently exist
// are ignored.
func (m *Manager) RegisterFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[path] = struct{}{}
}

// RegisterDirectory tracks a directory for cleanup. Paths that do not
// currently exist are ignored.
func (m *Manager) RegisterDirectory(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[path] = struct{}{}
}

// Unregister drops a resource from tracking, for artifacts promoted from
// temporary to permanent so they cannot be double-cleaned.
func (m *Manager) Unregister(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	delete(m.dirs, path)
}

// Tracked returns the number of tracked resources.
func (m *Manager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.files) + len(m.dirs)
}

// CleanupFiles removes the given files, or every tracked file when paths is
// nil. Resources already deleted externally are not an error.
func (m *Manager) CleanupFiles(paths []string) {
	if paths == nil {
		paths = m.trackedFiles()
	}

	for _, path := range paths {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			m.log.Warn("Failed to clean up temp file '%s': %v", path, err)

			continue
		}

		m.Unregister(path)
	}
}

// CleanupAll removes every tracked resource, files before directories so
// directory removal never races against their remaining contents.
func (m *Manager) CleanupAll() {
	m.CleanupFiles(nil)

	for _, dir := range m.trackedDirs() {
		err := os.RemoveAll(dir)
		if err != nil {
			m.log.Warn("Failed to clean up temp directory '%s': %v", dir, err)

			continue
		}

		m.Unregister(dir)
	}
}

// CreateTempDir creates a uniquely salted temporary directory under the system
// temp root and tracks it, so concurrent conversions never collide.
func (m *Manager) CreateTempDir(prefix string) (string, error) {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s", prefix, uuid.NewString()))

	err := os.MkdirAll(dir, tempDirPermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory '%s': %w", dir, err)
	}

	m.RegisterDirectory(dir)

	return dir, nil
}

// WithTempDir runs fn with a fresh tracked temp directory and removes it on
// every exit path, including when fn fails.
func (m *Manager) WithTempDir(prefix string, fn func(dir string) error) error {
	dir, err := m.CreateTempDir(prefix)
	if err != nil {
		return err
	}

	defer func() {
		removeErr := os.RemoveAll(dir)
		if removeErr != nil {
			m.log.Warn("Failed to clean up temp directory '%s': %v", dir, removeErr)

			return
		}

		m.Unregister(dir)
	}()

	return fn(dir)
}

func (m *Manager) trackedFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		paths = append(paths, path)
	}

	return paths
}

func (m *Manager) trackedDirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.dirs))
	for path := range m.dirs {
		paths = append(paths, path)
	}

	return paths
}
