// Package store provides an interface for warehouse product storage operations.
package store

import (
	"context"
)

// Product represents a product entity in the store.
type Product struct {
	ID               int64
	Name             string
	InStockQuantity  int64
	ReservedQuantity int64
}

// Available returns the quantity that is in stock and not yet reserved.
func (p Product) Available() int64 {
	return p.InStockQuantity - p.ReservedQuantity
}

// MutateFunc changes the quantities of a product in place.
// A non-nil error aborts the update and is returned to the caller unchanged.
type MutateFunc func(product *Product) error

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// Get retrieves a single product by its identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Get(ctx context.Context, id int64) (*Product, error)

	// Query returns all products matching the predicate.
	// Returns an empty slice if nothing matches.
	Query(ctx context.Context, predicate Predicate) ([]Product, error)

	// Insert adds a new product and assigns its ID.
	Insert(ctx context.Context, product Product) (*Product, error)

	// UpdateQuantities persists the in-stock and reserved quantities of an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	UpdateQuantities(ctx context.Context, product Product) (*Product, error)

	// Modify reads the product, applies mutate and persists the result as one atomic step.
	// Concurrent calls for the same ID are serialized.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Modify(ctx context.Context, id int64, mutate MutateFunc) (*Product, error)
}
