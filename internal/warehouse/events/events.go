// Package events defines the domain events the warehouse publishes after a successful change.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/warehouse/internal/platform/messaging"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	"github.com/google/uuid"
)

const (
	StreamSubjects        = "warehouse.>"
	ProductAddedSubject   = "warehouse.product.added"
	StockReservedSubject  = "warehouse.stock.reserved"
	StockShippedSubject   = "warehouse.stock.shipped"
	StockRestockedSubject = "warehouse.stock.restocked"
)

type ProductAddedEvent struct {
	ID              uuid.UUID `json:"event_id"`
	ProductID       int64     `json:"product_id"`
	Name            string    `json:"name"`
	InStockQuantity int64     `json:"in_stock_quantity"`
	OccurredAt      time.Time `json:"occurred_at"`
}

var _ messaging.Identifiable = ProductAddedEvent{}

func NewProductAdded(p store.Product) ProductAddedEvent {
	return ProductAddedEvent{
		ID:              uuid.New(),
		ProductID:       p.ID,
		Name:            p.Name,
		InStockQuantity: p.InStockQuantity,
		OccurredAt:      time.Now().UTC(),
	}
}

func (e ProductAddedEvent) Subject() string {
	return ProductAddedSubject
}

func (e ProductAddedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e ProductAddedEvent) EventID() string {
	return e.ID.String()
}

// StockChangedEvent reports a quantity change together with the resulting quantities.
type StockChangedEvent struct {
	subject          string
	ID               uuid.UUID `json:"event_id"`
	ProductID        int64     `json:"product_id"`
	Quantity         int64     `json:"quantity"`
	InStockQuantity  int64     `json:"in_stock_quantity"`
	ReservedQuantity int64     `json:"reserved_quantity"`
	OccurredAt       time.Time `json:"occurred_at"`
}

var _ messaging.Identifiable = StockChangedEvent{}

func newStockChanged(subject string, p store.Product, quantity int64) messaging.Event {
	return StockChangedEvent{
		subject:          subject,
		ID:               uuid.New(),
		ProductID:        p.ID,
		Quantity:         quantity,
		InStockQuantity:  p.InStockQuantity,
		ReservedQuantity: p.ReservedQuantity,
		OccurredAt:       time.Now().UTC(),
	}
}

// NewStockReserved reports an accepted order.
func NewStockReserved(p store.Product, quantity int64) messaging.Event {
	return newStockChanged(StockReservedSubject, p, quantity)
}

// NewStockShipped reports a shipment.
func NewStockShipped(p store.Product, quantity int64) messaging.Event {
	return newStockChanged(StockShippedSubject, p, quantity)
}

// NewStockRestocked reports new stock arriving.
func NewStockRestocked(p store.Product, quantity int64) messaging.Event {
	return newStockChanged(StockRestockedSubject, p, quantity)
}

func (e StockChangedEvent) Subject() string {
	return e.subject
}

func (e StockChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func (e StockChangedEvent) EventID() string {
	return e.ID.String()
}
