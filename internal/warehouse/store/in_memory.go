package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/abgdnv/warehouse/internal/warehouse/errors"
)

// InMemoryStore implements ProductStore using an in-memory map.
// The map is guarded by mu, and each product has its own lock so that
// read-modify-write cycles on different products do not block each other.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[int64]Product
	locks    map[int64]*sync.Mutex
	nextID   int64
}

var _ ProductStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new instance of ProductStore
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products: make(map[int64]Product),
		locks:    make(map[int64]*sync.Mutex),
		nextID:   1,
	}
}

// Get retrieves a product by its ID.
func (s *InMemoryStore) Get(ctx context.Context, id int64) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	return &p, nil
}

// Query returns the products matching the predicate ordered by ID.
func (s *InMemoryStore) Query(ctx context.Context, predicate Predicate) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if predicate.Match(p) {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

// Insert stores a new product under the next free ID.
func (s *InMemoryStore) Insert(ctx context.Context, product Product) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = s.nextID
	s.nextID++
	s.products[product.ID] = product
	s.locks[product.ID] = &sync.Mutex{}

	return &product, nil
}

// UpdateQuantities overwrites the quantities of an existing product. The name is left untouched.
func (s *InMemoryStore) UpdateQuantities(ctx context.Context, product Product) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	current.InStockQuantity = product.InStockQuantity
	current.ReservedQuantity = product.ReservedQuantity
	s.products[product.ID] = current

	return &current, nil
}

// Modify applies mutate to the product while holding the product's lock.
func (s *InMemoryStore) Modify(ctx context.Context, id int64, mutate MutateFunc) (*Product, error) {
	lock, err := s.lockFor(id)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(current); err != nil {
		return nil, err
	}
	return s.UpdateQuantities(ctx, *current)
}

// lockFor returns the lock of an existing product. Locks are created on insert only,
// so lookups of unknown IDs never grow the lock table.
func (s *InMemoryStore) lockFor(id int64) (*sync.Mutex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	return lock, nil
}
