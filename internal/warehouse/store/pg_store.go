package store

import (
	"context"
	"errors"
	"fmt"

	werrors "github.com/abgdnv/warehouse/internal/warehouse/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = "id, name, in_stock_quantity, reserved_quantity"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

var _ ProductStore = (*PgStore)(nil)

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
	}
}

// Get retrieves a product by its identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) Get(ctx context.Context, id int64) (*Product, error) {
	return getProduct(ctx, p.db, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
}

// Query retrieves the products matching the predicate ordered by ID.
func (p *PgStore) Query(ctx context.Context, predicate Predicate) ([]Product, error) {
	condition, args := predicate.sqlCondition()
	rows, err := p.db.Query(ctx, "SELECT "+productColumns+" FROM products"+condition+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products (%s): %w", predicate, err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read products (%s): %w", predicate, err)
	}
	return products, nil
}

// Insert adds a new product. The database assigns the ID.
func (p *PgStore) Insert(ctx context.Context, product Product) (*Product, error) {
	row := p.db.QueryRow(ctx,
		"INSERT INTO products (name, in_stock_quantity, reserved_quantity) VALUES ($1, $2, $3) RETURNING "+productColumns,
		product.Name, product.InStockQuantity, product.ReservedQuantity)
	created, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return &created, nil
}

// UpdateQuantities persists the quantities of an existing product.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) UpdateQuantities(ctx context.Context, product Product) (*Product, error) {
	return updateQuantities(ctx, p.db, product)
}

// Modify locks the product row, applies mutate and writes the quantities back in one transaction.
func (p *PgStore) Modify(ctx context.Context, id int64, mutate MutateFunc) (*Product, error) {
	var updated *Product
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		current, err := getProduct(ctx, tx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
		if err != nil {
			return err
		}
		if err := mutate(current); err != nil {
			return err
		}
		updated, err = updateQuantities(ctx, tx, *current)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", werrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", werrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", werrors.ErrTransactionCommit, err)
	}

	return nil
}

func getProduct(ctx context.Context, q querier, sql string, id int64) (*Product, error) {
	product, err := scanProduct(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, werrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return &product, nil
}

func updateQuantities(ctx context.Context, q querier, product Product) (*Product, error) {
	row := q.QueryRow(ctx,
		"UPDATE products SET in_stock_quantity = $2, reserved_quantity = $3 WHERE id = $1 RETURNING "+productColumns,
		product.ID, product.InStockQuantity, product.ReservedQuantity)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, werrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product quantities: %w", err)
	}
	return &updated, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.InStockQuantity, &p.ReservedQuantity)
	return p, err
}
