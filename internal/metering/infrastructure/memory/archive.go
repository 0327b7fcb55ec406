package memory

import (
	"context"
	"sort"
	"sync"
)

// Archive keeps archive files in memory.
type Archive struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewArchive constructs an archive.
func NewArchive() *Archive {
	return &Archive{files: make(map[string][]byte)}
}

// WriteArchive stores a copy of content under path, replacing any previous file.
func (a *Archive) WriteArchive(ctx context.Context, path string, content []byte) error {
	_ = ctx
	data := make([]byte, len(content))
	copy(data, content)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[path] = data
	return nil
}

// File returns the stored content for path.
func (a *Archive) File(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.files[path]
	return data, ok
}

// Paths lists stored paths in order.
func (a *Archive) Paths() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	paths := make([]string, 0, len(a.files))
	for path := range a.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
