package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	werrors "github.com/abgdnv/warehouse/internal/warehouse/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, products ...Product) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore()
	for _, p := range products {
		_, err := s.Insert(context.Background(), p)
		require.NoError(t, err)
	}
	return s
}

func Test_InMemoryStore_InsertAssignsSequentialIDs(t *testing.T) {
	// given
	s := NewInMemoryStore()
	ctx := context.Background()

	// when
	first, err1 := s.Insert(ctx, Product{ID: 42, Name: "Bolt", InStockQuantity: 3})
	second, err2 := s.Insert(ctx, Product{Name: "Nut"})

	// then
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int64(1), first.ID, "caller supplied ID must be ignored")
	assert.Equal(t, int64(2), second.ID)
	found, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Product{ID: 1, Name: "Bolt", InStockQuantity: 3}, *found)
}

func Test_InMemoryStore_Get(t *testing.T) {
	s := seedStore(t, Product{Name: "Bolt", InStockQuantity: 5})
	testCases := []struct {
		name        string
		id          int64
		expected    *Product
		expectError error
	}{
		{
			name:     "Success - product found",
			id:       1,
			expected: &Product{ID: 1, Name: "Bolt", InStockQuantity: 5},
		},
		{
			name:        "Error - product not found",
			id:          7,
			expectError: werrors.ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			found, err := s.Get(context.Background(), tc.id)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, found)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, found)
		})
	}
}

func Test_InMemoryStore_Query(t *testing.T) {
	s := seedStore(t,
		Product{Name: "Widget", InStockQuantity: 10, ReservedQuantity: 2},
		Product{Name: "Widget(2)", InStockQuantity: 0},
		Product{Name: "Gadget", InStockQuantity: 4, ReservedQuantity: 4},
		Product{Name: "Widget", InStockQuantity: 1},
	)
	testCases := []struct {
		name      string
		predicate Predicate
		expected  []int64
	}{
		{name: "all", predicate: All(), expected: []int64{1, 2, 3, 4}},
		{name: "by exact name", predicate: ByName("Widget"), expected: []int64{1, 4}},
		{name: "by name prefix", predicate: ByNamePrefix("Widget("), expected: []int64{2}},
		{name: "in stock excludes empty and fully reserved", predicate: InStock(), expected: []int64{1, 4}},
		{name: "no match", predicate: ByName("Sprocket"), expected: []int64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			list, err := s.Query(context.Background(), tc.predicate)
			// then
			require.NoError(t, err)
			ids := make([]int64, 0, len(list))
			for _, p := range list {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tc.expected, ids)
		})
	}
}

func Test_InMemoryStore_UpdateQuantities(t *testing.T) {
	// given
	s := seedStore(t, Product{Name: "Bolt", InStockQuantity: 5})
	ctx := context.Background()

	// when
	updated, err := s.UpdateQuantities(ctx, Product{ID: 1, Name: "ignored", InStockQuantity: 8, ReservedQuantity: 3})
	_, missingErr := s.UpdateQuantities(ctx, Product{ID: 9})

	// then
	require.NoError(t, err)
	assert.Equal(t, Product{ID: 1, Name: "Bolt", InStockQuantity: 8, ReservedQuantity: 3}, *updated)
	assert.ErrorIs(t, missingErr, werrors.ErrProductNotFound)
}

func Test_InMemoryStore_Modify(t *testing.T) {
	errRejected := errors.New("rejected")
	testCases := []struct {
		name        string
		id          int64
		mutate      MutateFunc
		expected    Product
		expectError error
	}{
		{
			name: "Success - mutation persisted",
			id:   1,
			mutate: func(p *Product) error {
				p.ReservedQuantity += 4
				return nil
			},
			expected: Product{ID: 1, Name: "Bolt", InStockQuantity: 5, ReservedQuantity: 4},
		},
		{
			name: "Error - mutation rejected leaves product untouched",
			id:   1,
			mutate: func(p *Product) error {
				p.ReservedQuantity = 100
				return errRejected
			},
			expected:    Product{ID: 1, Name: "Bolt", InStockQuantity: 5},
			expectError: errRejected,
		},
		{
			name:        "Error - product not found",
			id:          3,
			mutate:      func(p *Product) error { return nil },
			expectError: werrors.ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			s := seedStore(t, Product{Name: "Bolt", InStockQuantity: 5})
			// when
			updated, err := s.Modify(context.Background(), tc.id, tc.mutate)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, updated)
				if tc.id == 1 {
					stored, getErr := s.Get(context.Background(), tc.id)
					require.NoError(t, getErr)
					assert.Equal(t, tc.expected, *stored)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, *updated)
		})
	}
}

func Test_InMemoryStore_ModifyIsSerializedPerProduct(t *testing.T) {
	// given
	const workers = 64
	s := seedStore(t, Product{Name: "Bolt", InStockQuantity: workers}, Product{Name: "Nut", InStockQuantity: workers})
	var wg sync.WaitGroup

	// when
	for i := range workers {
		id := int64(i%2 + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Modify(context.Background(), id, func(p *Product) error {
				p.ReservedQuantity++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// then
	for _, id := range []int64{1, 2} {
		p, err := s.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, int64(workers/2), p.ReservedQuantity, "no increment may be lost")
	}
}

func Test_InMemoryStore_CanceledContext(t *testing.T) {
	// given
	s := seedStore(t, Product{Name: "Bolt"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// when
	_, err := s.Get(ctx, 1)

	// then
	assert.ErrorIs(t, err, context.Canceled)
}
