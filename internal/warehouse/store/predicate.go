package store

import (
	"fmt"
	"strings"
)

type predicateKind int

const (
	kindAll predicateKind = iota
	kindName
	kindNamePrefix
	kindInStock
)

// Predicate selects products in Query. Every predicate can be evaluated in memory
// and rendered as a SQL condition, so all store implementations agree on the result.
type Predicate struct {
	kind  predicateKind
	value string
}

// All matches every product.
func All() Predicate {
	return Predicate{kind: kindAll}
}

// ByName matches products whose name equals name exactly.
func ByName(name string) Predicate {
	return Predicate{kind: kindName, value: name}
}

// ByNamePrefix matches products whose name starts with prefix.
func ByNamePrefix(prefix string) Predicate {
	return Predicate{kind: kindNamePrefix, value: prefix}
}

// InStock matches products that have stock left to reserve.
func InStock() Predicate {
	return Predicate{kind: kindInStock}
}

// Match reports whether the product satisfies the predicate.
func (p Predicate) Match(product Product) bool {
	switch p.kind {
	case kindName:
		return product.Name == p.value
	case kindNamePrefix:
		return strings.HasPrefix(product.Name, p.value)
	case kindInStock:
		return product.InStockQuantity > 0 && product.InStockQuantity > product.ReservedQuantity
	default:
		return true
	}
}

// String returns a representation of the predicate suitable for logs.
func (p Predicate) String() string {
	switch p.kind {
	case kindName:
		return fmt.Sprintf("name = %q", p.value)
	case kindNamePrefix:
		return fmt.Sprintf("name starts with %q", p.value)
	case kindInStock:
		return "in stock"
	default:
		return "all"
	}
}

// sqlCondition renders the predicate as a WHERE clause with positional arguments.
func (p Predicate) sqlCondition() (string, []any) {
	switch p.kind {
	case kindName:
		return " WHERE name = $1", []any{p.value}
	case kindNamePrefix:
		return " WHERE starts_with(name, $1)", []any{p.value}
	case kindInStock:
		return " WHERE in_stock_quantity > 0 AND in_stock_quantity > reserved_quantity", nil
	default:
		return "", nil
	}
}
