// Package rest exposes the warehouse operations over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abgdnv/warehouse/internal/platform/web"
	"github.com/abgdnv/warehouse/internal/warehouse/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// updateQuantityBody is the wire form of service.UpdateQuantityRequest.
// Pointers distinguish a missing field from an explicit zero.
type updateQuantityBody struct {
	ID       *int64 `json:"id" validate:"required"`
	Quantity *int64 `json:"quantity" validate:"required"`
}

type addProductBody struct {
	ID               int64  `json:"id"`
	Name             string `json:"name" validate:"max=200"`
	InStockQuantity  int64  `json:"inStockQuantity"`
	ReservedQuantity int64  `json:"reservedQuantity"`
}

type quantityOperation func(ctx context.Context, request service.UpdateQuantityRequest) (service.UpdateResponse, error)

type Handler struct {
	service  service.WarehouseService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler for the warehouse endpoints.
func NewHandler(svc service.WarehouseService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  svc,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes mounts the warehouse endpoints on the router.
func (h *Handler) RegisterRoutes(mux chi.Router) {
	mux.Route("/api/warehouse", func(r chi.Router) {
		r.Get("/", h.GetPublicInStockProducts)
		r.Get("/{id}", h.GetProduct)
		r.Post("/order", h.OrderItem)
		r.Post("/ship", h.ShipItem)
		r.Post("/restock", h.RestockItem)
		r.Post("/add", h.AddNewProduct)
	})
	mux.Get("/healthz", h.HealthCheck)
}

// GetProduct returns a single product, or null when the ID is unknown.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseInt64Param(w, r, h.logger, "id")
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to get product", "ID", id)

	response, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}
	if reason, failed := response.Reason(); failed {
		h.logger.WarnContext(r.Context(), "Product lookup rejected", "ID", id, "reason", reason)
		web.RespondJSON(w, h.logger, statusFor(reason), response)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, response.Model)
}

// GetPublicInStockProducts lists products with unreserved stock.
func (h *Handler) GetPublicInStockProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetPublicInStockProducts(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error retrieving in-stock products", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	if list == nil {
		list = []service.ProductDto{}
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved in-stock products", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

func (h *Handler) OrderItem(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, "order", h.service.OrderItem)
}

func (h *Handler) ShipItem(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, "ship", h.service.ShipItem)
}

func (h *Handler) RestockItem(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, "restock", h.service.RestockItem)
}

func (h *Handler) changeQuantity(w http.ResponseWriter, r *http.Request, op string, call quantityOperation) {
	var body updateQuantityBody
	if !h.decodeAndValidate(w, r, &body) {
		return
	}
	request := service.UpdateQuantityRequest{ID: *body.ID, Quantity: *body.Quantity}
	h.logger.DebugContext(r.Context(), "Received quantity update", "operation", op, "ID", request.ID, "quantity", request.Quantity)

	response, err := call(r.Context(), request)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error updating product", "operation", op, "ID", request.ID, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to update product")
		return
	}
	if reason, failed := response.Reason(); failed {
		h.logger.InfoContext(r.Context(), "Quantity update rejected", "operation", op, "ID", request.ID, "reason", reason)
		web.RespondJSON(w, h.logger, statusFor(reason), response)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, response)
}

// AddNewProduct creates a product.
func (h *Handler) AddNewProduct(w http.ResponseWriter, r *http.Request) {
	var body addProductBody
	if !h.decodeAndValidate(w, r, &body) {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to add product", "name", body.Name)

	response, err := h.service.AddNewProduct(r.Context(), service.ProductDto{
		ID:               body.ID,
		Name:             body.Name,
		InStockQuantity:  body.InStockQuantity,
		ReservedQuantity: body.ReservedQuantity,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Error adding product", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to add product")
		return
	}
	if reason, failed := response.Reason(); failed {
		h.logger.InfoContext(r.Context(), "Product rejected", "name", body.Name, "reason", reason)
		web.RespondJSON(w, h.logger, statusFor(reason), response)
		return
	}
	h.logger.InfoContext(r.Context(), "Product added successfully", "ID", response.Model.ID, "name", response.Model.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, response)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeAndValidate decodes the JSON body into dst and runs the validation rules.
// It writes the error response itself and reports whether the handler may continue.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps a rejection reason to an HTTP status.
func statusFor(reason service.ErrorReason) int {
	if reason == service.InvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}
