package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store persists carts per customer. Update runs load, mutate and save as one
// atomic step; a non-nil error from fn leaves the stored cart untouched.
type Store interface {
	Load(ctx context.Context, customerID uuid.UUID) (*Cart, error)
	Update(ctx context.Context, customerID uuid.UUID, fn func(*Cart) error) (*Cart, error)
	Delete(ctx context.Context, customerID uuid.UUID) error
}

type MemoryStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[uuid.UUID]*Cart)}
}

func (s *MemoryStore) Load(_ context.Context, customerID uuid.UUID) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[customerID]; ok {
		return c.clone(), nil
	}
	return New(customerID), nil
}

func (s *MemoryStore) Update(ctx context.Context, customerID uuid.UUID, fn func(*Cart) error) (*Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := New(customerID)
	if cur, ok := s.carts[customerID]; ok {
		c = cur.clone()
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if c.Empty() {
		delete(s.carts, customerID)
	} else {
		s.carts[customerID] = c.clone()
	}
	return c, nil
}

func (s *MemoryStore) Delete(_ context.Context, customerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, customerID)
	return nil
}
