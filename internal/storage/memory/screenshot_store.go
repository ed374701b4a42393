// Package memory keeps screenshots in memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ScreenshotStore stores PNG bytes keyed by name.
type ScreenshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	err  error
}

// NewScreenshotStore creates an empty store.
func NewScreenshotStore() *ScreenshotStore {
	return &ScreenshotStore{data: make(map[string][]byte)}
}

// FailWith makes every later PutScreenshot return err.
func (s *ScreenshotStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// PutScreenshot stores a copy of png and returns a memory:// URI.
func (s *ScreenshotStore) PutScreenshot(_ context.Context, name string, png []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.data[name] = append([]byte(nil), png...)
	return fmt.Sprintf("memory://%s", name), nil
}

// Get returns the stored bytes for name.
func (s *ScreenshotStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	return data, ok
}

// Names lists stored screenshots in sorted order.
func (s *ScreenshotStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
