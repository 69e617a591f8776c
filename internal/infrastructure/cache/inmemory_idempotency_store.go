package cache

import (
	"context"
	"sync"
	"time"

	"github.com/letably/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore tracks processed keys in a map with per-key
// expiry. State is process-local, so it only guards a single instance;
// multi-replica deployments need the Redis store.
type InMemoryIdempotencyStore struct {
	mu      sync.RWMutex
	expiry  map[string]time.Time
	stopCh  chan struct{}
	janitor sync.WaitGroup
	once    sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts a janitor
// goroutine that evicts expired keys. Call Close to stop it.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expiry: make(map[string]time.Time),
		stopCh: make(chan struct{}),
	}
	s.janitor.Add(1)
	go s.evictLoop()
	return s
}

// MarkProcessed records the key and reports whether this was its first
// sighting within the TTL window.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, exists := s.expiry[eventID]; exists && time.Now().Before(deadline) {
		return false, nil
	}
	s.expiry[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether the key is present and unexpired.
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deadline, exists := s.expiry[eventID]
	return exists && time.Now().Before(deadline), nil
}

// Size reports the number of tracked keys, expired entries included until
// the janitor's next pass.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiry)
}

// Close stops the janitor. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.once.Do(func() {
		close(s.stopCh)
		s.janitor.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) evictLoop() {
	defer s.janitor.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, deadline := range s.expiry {
				if now.After(deadline) {
					delete(s.expiry, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
