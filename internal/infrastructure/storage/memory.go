package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryArchive keeps archives in process memory. It backs tests and
// single-node development when no bucket is configured.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	// BaseURL prefixes the pseudo download links
	BaseURL string
}

type memoryObject struct {
	body        []byte
	contentType string
}

// NewMemoryArchive creates an empty MemoryArchive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		objects: make(map[string]memoryObject),
		BaseURL: "memory://archive",
	}
}

// Put stores a copy of body
func (m *MemoryArchive) Put(_ context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

// Get returns a copy of the object at key
func (m *MemoryArchive) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.body...), nil
}

// ContentType returns the content type stored with key
func (m *MemoryArchive) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

// Keys lists stored keys in order
func (m *MemoryArchive) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DownloadURL returns a pseudo link for an existing key
func (m *MemoryArchive) DownloadURL(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", time.Time{}, ErrObjectNotFound
	}
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return m.BaseURL + "/" + key, time.Now().Add(ttl), nil
}
