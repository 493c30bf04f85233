// Package service implements the warehouse inventory operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/abgdnv/warehouse/internal/platform/messaging"
	werrors "github.com/abgdnv/warehouse/internal/warehouse/errors"
	"github.com/abgdnv/warehouse/internal/warehouse/events"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const (
	opGetProduct     = "get_product"
	opListInStock    = "list_in_stock"
	opOrder          = "order"
	opShip           = "ship"
	opRestock        = "restock"
	opAdd            = "add"
	outcomeSuccess   = "success"
	outcomeError     = "error"
	listingFlightKey = "in-stock"
)

// WarehouseService defines the inventory operations.
// Business rule violations are reported in the returned response; the error is reserved for infrastructure failures.
type WarehouseService interface {
	// GetProduct returns the product with the given ID. An unknown ID succeeds with a nil model.
	GetProduct(ctx context.Context, id int64) (Response[ProductDto], error)

	// GetPublicInStockProducts returns all products that still have unreserved stock.
	GetPublicInStockProducts(ctx context.Context) ([]ProductDto, error)

	// OrderItem reserves quantity units of a product.
	OrderItem(ctx context.Context, request UpdateQuantityRequest) (UpdateResponse, error)

	// ShipItem removes quantity units from stock and releases the matching reservation.
	ShipItem(ctx context.Context, request UpdateQuantityRequest) (UpdateResponse, error)

	// RestockItem adds quantity units to stock.
	RestockItem(ctx context.Context, request UpdateQuantityRequest) (UpdateResponse, error)

	// AddNewProduct creates a product, renaming it when the name is already in use.
	AddNewProduct(ctx context.Context, product ProductDto) (CreateResponse, error)
}

// ListingCache keeps the in-stock listing between mutations.
type ListingCache interface {
	Get(ctx context.Context) ([]store.Product, bool, error)
	Set(ctx context.Context, products []store.Product) error
	Invalidate(ctx context.Context) error
}

// Service implements WarehouseService on top of a ProductStore.
type Service struct {
	store      store.ProductStore
	naming     NamingStrategy
	guard      ReservationGuard
	publisher  messaging.Publisher
	listing    ListingCache
	logger     *slog.Logger
	operations metric.Int64Counter
	flight     singleflight.Group
	// listingMu orders cache fills against invalidation. listingGen counts mutations.
	listingMu  sync.Mutex
	listingGen uint64
	// addMu is held across name resolution and insert.
	addMu sync.Mutex
}

var _ WarehouseService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithNamingStrategy sets the strategy used to resolve duplicate product names.
func WithNamingStrategy(naming NamingStrategy) Option {
	return func(s *Service) {
		s.naming = naming
	}
}

// WithReservationGuard sets the rule deciding whether an order can be reserved.
func WithReservationGuard(guard ReservationGuard) Option {
	return func(s *Service) {
		s.guard = guard
	}
}

// WithPublisher sets the publisher for domain events.
func WithPublisher(publisher messaging.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithListingCache enables caching of the in-stock listing.
func WithListingCache(listing ListingCache) Option {
	return func(s *Service) {
		s.listing = listing
	}
}

// NewService creates a new warehouse service backed by the given store.
func NewService(products store.ProductStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     products,
		naming:    NextAvailable{},
		guard:     LiteralGuard,
		publisher: messaging.NoopPublisher{},
		logger:    logger.With("component", "service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := otel.Meter("warehouse-service").Int64Counter("warehouse_operations",
		metric.WithDescription("Number of warehouse operations by outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		s.logger.Warn("failed to create operations counter", "error", err)
	}
	s.operations = counter
	return s
}

// GetProduct returns the product with the given ID.
func (s *Service) GetProduct(ctx context.Context, id int64) (Response[ProductDto], error) {
	if id < 0 {
		s.record(ctx, opGetProduct, string(InvalidRequest))
		return failed[ProductDto](InvalidRequest), nil
	}
	product, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, werrors.ErrProductNotFound) {
			s.logger.DebugContext(ctx, "product not found", "ID", id)
			s.record(ctx, opGetProduct, outcomeSuccess)
			return succeeded[ProductDto](nil), nil
		}
		s.record(ctx, opGetProduct, outcomeError)
		return Response[ProductDto]{}, fmt.Errorf("failed to fetch product by ID %d: %w", id, err)
	}
	s.record(ctx, opGetProduct, outcomeSuccess)
	return succeeded(toDto(product)), nil
}

// GetPublicInStockProducts returns the products with unreserved stock, ordered as the store returns them.
func (s *Service) GetPublicInStockProducts(ctx context.Context) ([]ProductDto, error) {
	if s.listing != nil {
		cached, ok, err := s.listing.Get(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "listing cache read failed", "error", err)
		} else if ok {
			s.record(ctx, opListInStock, outcomeSuccess)
			return toDtos(cached), nil
		}
	}

	// the shared load must outlive the first caller's cancellation
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := s.flight.Do(listingFlightKey, func() (any, error) {
		generation := s.listingGeneration()
		products, err := s.store.Query(loadCtx, store.InStock())
		if err != nil {
			return nil, err
		}
		s.fillListing(loadCtx, generation, products)
		return products, nil
	})
	if err != nil {
		s.record(ctx, opListInStock, outcomeError)
		return nil, fmt.Errorf("failed to fetch in-stock products: %w", err)
	}
	s.record(ctx, opListInStock, outcomeSuccess)
	return toDtos(result.([]store.Product)), nil
}

// OrderItem reserves request.Quantity units when the reservation guard allows it.
func (s *Service) OrderItem(ctx context.Context, request UpdateQuantityRequest) (UpdateResponse, error) {
	return s.changeQuantity(ctx, opOrder, request, func(p *store.Product) error {
		if !s.guard(*p, request.Quantity) {
			return reject(NotEnoughQuantity)
		}
		if p.ReservedQuantity > math.MaxInt64-request.Quantity {
			return reject(QuantityInvalid)
		}
		p.ReservedQuantity += request.Quantity
		return nil
	}, events.NewStockReserved)
}

// ShipItem removes request.Quantity units from stock. The reservation is released down to zero.
func (s *Service) ShipItem(ctx context.Context, request UpdateQuantityRequest) (UpdateResponse, error) {
	return s.changeQuantity(ctx, opShip, request, func(p *store.Product) error {
		if p.InStockQuantity < request.Quantity {
			return reject(NotEnoughQuantity)
		}
		p.ReservedQuantity = max(p.ReservedQuantity-request.Quantity, 0)
		p.InStockQuantity -= request.Quantity
		return nil
	}, events.NewStockShipped)
}

// RestockItem adds request.Quantity units to stock.
func (s *Service) RestockItem(ctx context.Context, request UpdateQuantityRequest) (UpdateResponse, error) {
	return s.changeQuantity(ctx, opRestock, request, func(p *store.Product) error {
		if p.InStockQuantity > math.MaxInt64-request.Quantity {
			return reject(QuantityInvalid)
		}
		p.InStockQuantity += request.Quantity
		return nil
	}, events.NewStockRestocked)
}

// changeQuantity validates the request and applies mutate atomically to the product.
func (s *Service) changeQuantity(
	ctx context.Context,
	op string,
	request UpdateQuantityRequest,
	mutate store.MutateFunc,
	newEvent func(store.Product, int64) messaging.Event,
) (UpdateResponse, error) {
	mLogger := s.logger.With("operation", op, "ID", request.ID, "quantity", request.Quantity)
	if request.Quantity < 0 {
		mLogger.DebugContext(ctx, "rejected negative quantity")
		s.record(ctx, op, string(QuantityInvalid))
		return updateFailed(QuantityInvalid), nil
	}

	updated, err := s.store.Modify(ctx, request.ID, mutate)
	if err != nil {
		var rejected rejection
		switch {
		case errors.Is(err, werrors.ErrProductNotFound):
			mLogger.DebugContext(ctx, "product not found")
			s.record(ctx, op, string(InvalidRequest))
			return updateFailed(InvalidRequest), nil
		case errors.As(err, &rejected):
			mLogger.DebugContext(ctx, "operation rejected", "reason", rejected.reason)
			s.record(ctx, op, string(rejected.reason))
			return updateFailed(rejected.reason), nil
		default:
			mLogger.ErrorContext(ctx, "failed to update product", "error", err)
			s.record(ctx, op, outcomeError)
			return UpdateResponse{}, fmt.Errorf("failed to %s product %d: %w", op, request.ID, err)
		}
	}

	mLogger.InfoContext(ctx, "quantities updated", "inStock", updated.InStockQuantity, "reserved", updated.ReservedQuantity)
	s.afterMutation(ctx, newEvent(*updated, request.Quantity))
	s.record(ctx, op, outcomeSuccess)
	return updateSucceeded(), nil
}

// AddNewProduct creates a product with no reservation. A name already in use is resolved by the naming strategy.
func (s *Service) AddNewProduct(ctx context.Context, product ProductDto) (CreateResponse, error) {
	if product.InStockQuantity < 0 {
		s.record(ctx, opAdd, string(QuantityInvalid))
		return failed[ProductDto](QuantityInvalid), nil
	}
	name := strings.TrimSpace(product.Name)
	if name == "" {
		s.record(ctx, opAdd, string(InvalidRequest))
		return failed[ProductDto](InvalidRequest), nil
	}

	created, err := s.insertNamed(ctx, name, product.InStockQuantity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to add product", "name", name, "error", err)
		s.record(ctx, opAdd, outcomeError)
		return CreateResponse{}, err
	}

	s.logger.InfoContext(ctx, "product added", "ID", created.ID, "name", created.Name)
	s.afterMutation(ctx, events.NewProductAdded(*created))
	s.record(ctx, opAdd, outcomeSuccess)
	return succeeded(toDto(created)), nil
}

func (s *Service) insertNamed(ctx context.Context, name string, inStock int64) (*store.Product, error) {
	s.addMu.Lock()
	defer s.addMu.Unlock()

	resolved, err := s.naming.Resolve(ctx, s.store, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product name: %w", err)
	}
	created, err := s.store.Insert(ctx, store.Product{
		Name:             resolved,
		InStockQuantity:  inStock,
		ReservedQuantity: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return created, nil
}

func (s *Service) listingGeneration() uint64 {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	return s.listingGen
}

// fillListing caches products read at generation. A mutation since then means the rows may be stale,
// so the cache is left empty.
func (s *Service) fillListing(ctx context.Context, generation uint64, products []store.Product) {
	if s.listing == nil {
		return
	}
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	if s.listingGen != generation {
		s.logger.DebugContext(ctx, "listing changed during load, skipping cache fill")
		return
	}
	if err := s.listing.Set(ctx, products); err != nil {
		s.logger.WarnContext(ctx, "listing cache write failed", "error", err)
	}
}

// invalidateListing starts a new generation, drops the cached listing and detaches readers
// from any load that began before the mutation.
func (s *Service) invalidateListing(ctx context.Context) {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	s.listingGen++
	s.flight.Forget(listingFlightKey)
	if s.listing == nil {
		return
	}
	if err := s.listing.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate listing cache", "error", err)
	}
}

// afterMutation drops the cached listing and publishes the event. Failures are logged only.
func (s *Service) afterMutation(ctx context.Context, event messaging.Event) {
	s.invalidateListing(ctx)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func (s *Service) record(ctx context.Context, op, outcome string) {
	if s.operations == nil {
		return
	}
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func toDtos(products []store.Product) []ProductDto {
	dtos := make([]ProductDto, len(products))
	for i := range products {
		dtos[i] = *toDto(&products[i])
	}
	return dtos
}
