package counterstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entries at or above this count trigger a full sweep on the next write.
const sweepThreshold = 4096

// MemoryStore is the in-process fallback used when no redis backend is
// configured (local development, tests). Expiry is lazy: entries are
// evicted when read past their deadline, or swept opportunistically when
// the map grows past sweepThreshold. State does not survive a restart and
// is not shared across worker instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}

	if s.expired(entry) {
		delete(s.entries, key)
		return "", false, nil
	}

	return entry.value, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= sweepThreshold {
		s.sweep()
	}

	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}

	delete(s.entries, key)

	// Expired entries count as absent
	if s.expired(entry) {
		return false, nil
	}

	return true, nil
}

func (s *MemoryStore) ListByPrefix(_ context.Context, prefix string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) || s.expired(entry) {
			continue
		}

		keys = append(keys, key)
		if limit > 0 && len(keys) >= limit {
			break
		}
	}

	return keys, nil
}

// Must be called with the lock held
func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}

// Must be called with the lock held
func (s *MemoryStore) sweep() {
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
		}
	}
}
