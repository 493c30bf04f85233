package service

import (
	"fmt"

	"github.com/abgdnv/warehouse/internal/warehouse/store"
)

// Config names of the reservation guards.
const (
	// GuardLiteral selects LiteralGuard.
	GuardLiteral = "literal"
	// GuardStrict selects StrictGuard.
	GuardStrict = "strict"
)

// ReservationGuard reports whether quantity more units may be reserved on the product.
// quantity is never negative.
type ReservationGuard func(product store.Product, quantity int64) bool

// LiteralGuard rejects an order only when the current reservation exceeds the stock plus the requested quantity.
// It compares the reservation before the increase, so an order can push the reservation above the stock:
// {InStock: 5, Reserved: 5} accepts one more unit and ends with Reserved 6.
func LiteralGuard(product store.Product, quantity int64) bool {
	// Reserved > InStock+quantity, rearranged so that large quantities cannot overflow.
	return product.ReservedQuantity-quantity <= product.InStockQuantity
}

// StrictGuard rejects an order whenever the reservation after the increase would exceed the stock,
// keeping Reserved <= InStock after every accepted order.
func StrictGuard(product store.Product, quantity int64) bool {
	return quantity <= product.InStockQuantity-product.ReservedQuantity
}

// ParseReservationGuard returns the guard registered under name. An empty name selects the literal guard.
func ParseReservationGuard(name string) (ReservationGuard, error) {
	switch name {
	case "", GuardLiteral:
		return LiteralGuard, nil
	case GuardStrict:
		return StrictGuard, nil
	default:
		return nil, fmt.Errorf("unknown reservation guard %q", name)
	}
}
