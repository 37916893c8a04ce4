package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/keymint/keymint-server/internal/model"
)

// InMemoryKeyStore is a concurrency-safe KeyStore for tests.
type InMemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]model.SigningKey

	// CreateCalls counts persistence attempts through Create and
	// CreateIfNoneActive, successful or not.
	CreateCalls int
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{keys: make(map[string]model.SigningKey)}
}

func (s *InMemoryKeyStore) Create(ctx context.Context, key model.SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateCalls++
	if _, ok := s.keys[key.Kid]; ok {
		return model.ErrKeyExists
	}
	s.keys[key.Kid] = key
	return nil
}

func (s *InMemoryKeyStore) CreateIfNoneActive(ctx context.Context, key model.SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateCalls++
	for _, existing := range s.keys {
		if existing.IsActive {
			return model.ErrKeyExists
		}
	}
	s.keys[key.Kid] = key
	return nil
}

func (s *InMemoryKeyStore) GetByKid(ctx context.Context, kid string) (model.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[kid]
	if !ok {
		return model.SigningKey{}, model.ErrNotFound
	}
	return key, nil
}

func (s *InMemoryKeyStore) ListActive(ctx context.Context) ([]model.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []model.SigningKey
	for _, key := range s.keys {
		if key.IsActive {
			active = append(active, key)
		}
	}
	return active, nil
}

func (s *InMemoryKeyStore) Retire(ctx context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[kid]
	if !ok || !key.IsActive {
		return model.ErrNotFound
	}
	now := time.Now()
	key.IsActive = false
	key.RetiredAt = &now
	s.keys[kid] = key
	return nil
}

func (s *InMemoryKeyStore) CountActive(ctx context.Context) (int, error) {
	active, _ := s.ListActive(ctx)
	return len(active), nil
}

// Len reports the total number of stored keys, active or retired.
func (s *InMemoryKeyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
