package service

import (
	"github.com/abgdnv/warehouse/internal/warehouse/store"
)

// ErrorReason explains why a warehouse operation was rejected.
type ErrorReason string

const (
	// InvalidRequest means the request references something that does not exist or is malformed:
	// an unknown product, a negative product ID or a blank product name.
	InvalidRequest ErrorReason = "InvalidRequest"
	// QuantityInvalid means the supplied quantity is negative or would overflow a stored quantity.
	QuantityInvalid ErrorReason = "QuantityInvalid"
	// NotEnoughQuantity means the operation would break the stock/reservation rule.
	NotEnoughQuantity ErrorReason = "NotEnoughQuantity"
)

// UpdateQuantityRequest asks to change the quantities of one product.
type UpdateQuantityRequest struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	InStockQuantity  int64  `json:"inStockQuantity"`
	ReservedQuantity int64  `json:"reservedQuantity"`
}

// UpdateResponse is the outcome of a quantity change.
// A successful response never carries a reason, and a failed one always carries exactly one.
type UpdateResponse struct {
	Success     bool         `json:"success"`
	ErrorReason *ErrorReason `json:"errorReason,omitempty"`
}

func updateSucceeded() UpdateResponse {
	return UpdateResponse{Success: true}
}

func updateFailed(reason ErrorReason) UpdateResponse {
	return UpdateResponse{ErrorReason: &reason}
}

// Reason returns the failure reason, if any.
func (r UpdateResponse) Reason() (ErrorReason, bool) {
	if r.ErrorReason == nil {
		return "", false
	}
	return *r.ErrorReason, true
}

// Response is the outcome of an operation that yields a model on success.
// A failed response carries exactly one reason and no model.
type Response[T any] struct {
	Success     bool         `json:"success"`
	ErrorReason *ErrorReason `json:"errorReason,omitempty"`
	Model       *T           `json:"model,omitempty"`
}

// CreateResponse is the outcome of adding a product.
type CreateResponse = Response[ProductDto]

func succeeded[T any](model *T) Response[T] {
	return Response[T]{Success: true, Model: model}
}

func failed[T any](reason ErrorReason) Response[T] {
	return Response[T]{ErrorReason: &reason}
}

// Reason returns the failure reason, if any.
func (r Response[T]) Reason() (ErrorReason, bool) {
	if r.ErrorReason == nil {
		return "", false
	}
	return *r.ErrorReason, true
}

// rejection aborts a store mutation with a business reason.
type rejection struct {
	reason ErrorReason
}

func (r rejection) Error() string {
	return "rejected: " + string(r.reason)
}

func reject(reason ErrorReason) error {
	return rejection{reason: reason}
}

func toDto(p *store.Product) *ProductDto {
	if p == nil {
		return nil
	}
	return &ProductDto{
		ID:               p.ID,
		Name:             p.Name,
		InStockQuantity:  p.InStockQuantity,
		ReservedQuantity: p.ReservedQuantity,
	}
}
