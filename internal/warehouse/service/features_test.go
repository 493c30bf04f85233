package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/abgdnv/warehouse/internal/warehouse/service"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	"github.com/cucumber/godog"
)

type warehouseTestContext struct {
	products *store.InMemoryStore
	svc      *service.Service
	guard    service.ReservationGuard
	naming   service.NamingStrategy
	ids      map[string]int64
	success  bool
	reason   *service.ErrorReason
	created  *service.ProductDto
}

func (c *warehouseTestContext) reset() {
	c.products = store.NewInMemoryStore()
	c.svc = nil
	c.guard = service.LiteralGuard
	c.naming = service.NextAvailable{}
	c.ids = make(map[string]int64)
	c.success = false
	c.reason = nil
	c.created = nil
}

// warehouse builds the service on first use so that Given steps can still pick the guard and naming strategy.
func (c *warehouseTestContext) warehouse() *service.Service {
	if c.svc == nil {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		c.svc = service.NewService(c.products, logger,
			service.WithReservationGuard(c.guard),
			service.WithNamingStrategy(c.naming))
	}
	return c.svc
}

func (c *warehouseTestContext) theReservationGuardIs(name string) error {
	guard, err := service.ParseReservationGuard(name)
	c.guard = guard
	return err
}

func (c *warehouseTestContext) theNamingStrategyIs(name string) error {
	naming, err := service.ParseNamingStrategy(name)
	c.naming = naming
	return err
}

func (c *warehouseTestContext) aProductWithStock(name string, inStock, reserved int64) error {
	p, err := c.products.Insert(context.Background(), store.Product{
		Name:             name,
		InStockQuantity:  inStock,
		ReservedQuantity: reserved,
	})
	if err != nil {
		return err
	}
	c.ids[name] = p.ID
	return nil
}

func (c *warehouseTestContext) iChangeQuantity(operation string, quantity int64, name string) error {
	id, ok := c.ids[name]
	if !ok {
		return fmt.Errorf("unknown product %q", name)
	}
	return c.changeQuantity(operation, id, quantity)
}

func (c *warehouseTestContext) iChangeQuantityOfUnknownProduct(operation string, quantity int64) error {
	return c.changeQuantity(operation, 9999, quantity)
}

func (c *warehouseTestContext) changeQuantity(operation string, id, quantity int64) error {
	request := service.UpdateQuantityRequest{ID: id, Quantity: quantity}
	ctx := context.Background()
	var (
		response service.UpdateResponse
		err      error
	)
	switch operation {
	case "order":
		response, err = c.warehouse().OrderItem(ctx, request)
	case "ship":
		response, err = c.warehouse().ShipItem(ctx, request)
	case "restock":
		response, err = c.warehouse().RestockItem(ctx, request)
	default:
		return fmt.Errorf("unknown operation %q", operation)
	}
	if err != nil {
		return err
	}
	c.success, c.reason = response.Success, response.ErrorReason
	return nil
}

func (c *warehouseTestContext) iAddAProduct(name string, inStock int64) error {
	response, err := c.warehouse().AddNewProduct(context.Background(), service.ProductDto{Name: name, InStockQuantity: inStock})
	if err != nil {
		return err
	}
	c.success, c.reason, c.created = response.Success, response.ErrorReason, response.Model
	if c.created != nil {
		c.ids[c.created.Name] = c.created.ID
	}
	return nil
}

func (c *warehouseTestContext) theOperationSucceeds() error {
	if !c.success {
		if c.reason == nil {
			return errors.New("expected success, got a failure without reason")
		}
		return fmt.Errorf("expected success, got reason %s", *c.reason)
	}
	return nil
}

func (c *warehouseTestContext) theOperationFailsWith(reason string) error {
	if c.success {
		return errors.New("expected failure, got success")
	}
	if c.reason == nil || string(*c.reason) != reason {
		return fmt.Errorf("expected reason %s, got %v", reason, c.reason)
	}
	if c.created != nil {
		return errors.New("failed operation returned a model")
	}
	return nil
}

func (c *warehouseTestContext) productHasStock(name string, inStock, reserved int64) error {
	id, ok := c.ids[name]
	if !ok {
		return fmt.Errorf("unknown product %q", name)
	}
	response, err := c.warehouse().GetProduct(context.Background(), id)
	if err != nil {
		return err
	}
	p := response.Model
	if p == nil {
		return fmt.Errorf("product %q not found", name)
	}
	if p.InStockQuantity != inStock || p.ReservedQuantity != reserved {
		return fmt.Errorf("expected %d in stock and %d reserved, got %d and %d",
			inStock, reserved, p.InStockQuantity, p.ReservedQuantity)
	}
	return nil
}

func (c *warehouseTestContext) theCreatedProductIsNamed(name string) error {
	if c.created == nil {
		return errors.New("no product was created")
	}
	if c.created.Name != name {
		return fmt.Errorf("expected name %q, got %q", name, c.created.Name)
	}
	return nil
}

func (c *warehouseTestContext) theInStockListingIs(names string) error {
	list, err := c.warehouse().GetPublicInStockProducts(context.Background())
	if err != nil {
		return err
	}
	got := make([]string, len(list))
	for i, p := range list {
		got[i] = p.Name
	}
	if strings.Join(got, ", ") != names {
		return fmt.Errorf("expected listing %q, got %q", names, strings.Join(got, ", "))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &warehouseTestContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the reservation guard is "([^"]*)"$`, tc.theReservationGuardIs)
	ctx.Step(`^the naming strategy is "([^"]*)"$`, tc.theNamingStrategyIs)
	ctx.Step(`^a product "([^"]*)" with (\d+) in stock and (\d+) reserved$`, tc.aProductWithStock)

	// When steps
	ctx.Step(`^I (order|ship|restock) (-?\d+) of "([^"]*)"$`, tc.iChangeQuantity)
	ctx.Step(`^I (order|ship|restock) (-?\d+) of an unknown product$`, tc.iChangeQuantityOfUnknownProduct)
	ctx.Step(`^I add a product named "([^"]*)" with (-?\d+) in stock$`, tc.iAddAProduct)

	// Then steps
	ctx.Step(`^the operation succeeds$`, tc.theOperationSucceeds)
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
	ctx.Step(`^"([^"]*)" has (\d+) in stock and (\d+) reserved$`, tc.productHasStock)
	ctx.Step(`^the created product is named "([^"]*)"$`, tc.theCreatedProductIsNamed)
	ctx.Step(`^the in-stock listing is "([^"]*)"$`, tc.theInStockListingIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
