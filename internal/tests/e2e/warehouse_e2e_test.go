// Package e2e provides end-to-end tests for the warehouse service.
// The suite starts a PostgreSQL container with testcontainers-go, applies the embedded migrations
// and serves the real HTTP handler from an httptest.Server. Every test starts from an empty products table.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/warehouse/internal/platform/bootstrap"
	"github.com/abgdnv/warehouse/internal/warehouse/app"
	"github.com/abgdnv/warehouse/internal/warehouse/service"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "WAREHOUSE_SVC_SKIP_E2E_TESTS"

const warehouseURL = "/api/warehouse"

// WarehouseE2ESuite exercises the HTTP API against PostgreSQL.
type WarehouseE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	server      *httptest.Server
	httpClient  *http.Client
	logger      *slog.Logger
	ctx         context.Context
}

// SetupSuite starts PostgreSQL, migrates the schema and serves the application handler.
func (s *WarehouseE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("warehouse"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	err = bootstrap.RunMigrations(connStr, store.Migrations, store.MigrationsDir)
	require.NoError(s.T(), err, "Failed to apply migrations")

	s.dbPool, err = bootstrap.NewDbPool(s.ctx, connStr, 30*time.Second)
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL")

	deps := app.SetupDependencies(store.NewPgStore(s.dbPool), s.logger)
	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

// TearDownSuite stops the server, closes the pool and terminates the container.
func (s *WarehouseE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties the products table before each test.
func (s *WarehouseE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate products table")
}

func TestWarehouseE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(WarehouseE2ESuite))
}

// --------------------------------------------------------------------------
// ---------- Payload structures and helper methods for E2E tests -----------
// --------------------------------------------------------------------------

type addPayload struct {
	Name            string `json:"name"`
	InStockQuantity int64  `json:"inStockQuantity"`
}

type quantityPayload struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
}

// doRequest sends payload as JSON and returns the response body and status code.
func (s *WarehouseE2ESuite) doRequest(method, path string, payload any) ([]byte, int) {
	s.T().Helper()
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	require.NoError(s.T(), err, "Failed to create HTTP request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err, "HTTP request failed")
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err, "Failed to read response body")
	return bodyBytes, resp.StatusCode
}

// addProduct creates a product and returns the stored model.
func (s *WarehouseE2ESuite) addProduct(name string, inStock int64) service.ProductDto {
	s.T().Helper()
	body, status := s.doRequest(http.MethodPost, warehouseURL+"/add", addPayload{Name: name, InStockQuantity: inStock})
	require.Equal(s.T(), http.StatusCreated, status, string(body))

	var response service.CreateResponse
	require.NoError(s.T(), json.Unmarshal(body, &response))
	require.True(s.T(), response.Success)
	require.NotNil(s.T(), response.Model)
	return *response.Model
}

func (s *WarehouseE2ESuite) getProduct(id int64) (*service.ProductDto, int) {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, warehouseURL+"/"+strconv.FormatInt(id, 10), nil)
	var product *service.ProductDto
	if status == http.StatusOK {
		require.NoError(s.T(), json.Unmarshal(body, &product))
	}
	return product, status
}

func (s *WarehouseE2ESuite) listInStock() []service.ProductDto {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, warehouseURL+"/", nil)
	require.Equal(s.T(), http.StatusOK, status)
	var products []service.ProductDto
	require.NoError(s.T(), json.Unmarshal(body, &products))
	return products
}

// --------------------------------------------------------------
// ---------------------- E2E test methods ----------------------
// --------------------------------------------------------------

func (s *WarehouseE2ESuite) TestAddAndGet_E2E() {
	// given
	created := s.addProduct("  Widget  ", 10)

	// when
	fetched, status := s.getProduct(created.ID)

	// then
	require.Equal(s.T(), http.StatusOK, status)
	require.NotNil(s.T(), fetched)
	assert.Equal(s.T(), service.ProductDto{ID: 1, Name: "Widget", InStockQuantity: 10}, *fetched)
}

func (s *WarehouseE2ESuite) TestGetUnknownProduct_E2E() {
	body, status := s.doRequest(http.MethodGet, warehouseURL+"/42", nil)

	require.Equal(s.T(), http.StatusOK, status)
	assert.JSONEq(s.T(), `null`, string(body))

	body, status = s.doRequest(http.MethodGet, warehouseURL+"/-1", nil)

	require.Equal(s.T(), http.StatusBadRequest, status)
	assert.JSONEq(s.T(), `{"success":false,"errorReason":"InvalidRequest"}`, string(body))
}

func (s *WarehouseE2ESuite) TestAddDuplicateNames_E2E() {
	first := s.addProduct("Widget", 1)
	second := s.addProduct("Widget", 2)
	third := s.addProduct("Widget", 3)

	assert.Equal(s.T(), "Widget", first.Name)
	assert.Equal(s.T(), "Widget(2)", second.Name)
	assert.Equal(s.T(), "Widget(3)", third.Name)
}

func (s *WarehouseE2ESuite) TestAddRejected_E2E() {
	testCases := []struct {
		name           string
		payload        addPayload
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "blank name",
			payload:        addPayload{Name: "   ", InStockQuantity: 1},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"success":false,"errorReason":"InvalidRequest"}`,
		},
		{
			name:           "negative stock",
			payload:        addPayload{Name: "Widget", InStockQuantity: -1},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"success":false,"errorReason":"QuantityInvalid"}`,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			body, status := s.doRequest(http.MethodPost, warehouseURL+"/add", tc.payload)

			// then
			assert.Equal(s.T(), tc.expectedStatus, status)
			assert.JSONEq(s.T(), tc.expectedBody, string(body))
		})
	}
	assert.Empty(s.T(), s.listInStock())
}

func (s *WarehouseE2ESuite) TestOrderShipRestockLifecycle_E2E() {
	// given
	product := s.addProduct("Widget", 10)

	steps := []struct {
		name             string
		path             string
		quantity         int64
		expectedStatus   int
		expectedBody     string
		expectedInStock  int64
		expectedReserved int64
	}{
		{name: "order", path: "/order", quantity: 4, expectedStatus: http.StatusOK,
			expectedBody: `{"success":true}`, expectedInStock: 10, expectedReserved: 4},
		{name: "ship more than stock", path: "/ship", quantity: 11, expectedStatus: http.StatusUnprocessableEntity,
			expectedBody: `{"success":false,"errorReason":"NotEnoughQuantity"}`, expectedInStock: 10, expectedReserved: 4},
		{name: "ship", path: "/ship", quantity: 6, expectedStatus: http.StatusOK,
			expectedBody: `{"success":true}`, expectedInStock: 4, expectedReserved: 0},
		{name: "restock", path: "/restock", quantity: 5, expectedStatus: http.StatusOK,
			expectedBody: `{"success":true}`, expectedInStock: 9, expectedReserved: 0},
		{name: "negative quantity", path: "/order", quantity: -1, expectedStatus: http.StatusUnprocessableEntity,
			expectedBody: `{"success":false,"errorReason":"QuantityInvalid"}`, expectedInStock: 9, expectedReserved: 0},
	}

	for _, step := range steps {
		// when
		body, status := s.doRequest(http.MethodPost, warehouseURL+step.path, quantityPayload{ID: product.ID, Quantity: step.quantity})

		// then
		assert.Equal(s.T(), step.expectedStatus, status, step.name)
		assert.JSONEq(s.T(), step.expectedBody, string(body), step.name)
		fetched, getStatus := s.getProduct(product.ID)
		require.Equal(s.T(), http.StatusOK, getStatus)
		require.NotNil(s.T(), fetched)
		assert.Equal(s.T(), step.expectedInStock, fetched.InStockQuantity, step.name)
		assert.Equal(s.T(), step.expectedReserved, fetched.ReservedQuantity, step.name)
	}
}

func (s *WarehouseE2ESuite) TestOperationOnUnknownProduct_E2E() {
	for _, path := range []string{"/order", "/ship", "/restock"} {
		body, status := s.doRequest(http.MethodPost, warehouseURL+path, quantityPayload{ID: 42, Quantity: 1})

		assert.Equal(s.T(), http.StatusBadRequest, status, path)
		assert.JSONEq(s.T(), `{"success":false,"errorReason":"InvalidRequest"}`, string(body), path)
	}
}

func (s *WarehouseE2ESuite) TestMalformedRequests_E2E() {
	testCases := []struct {
		name         string
		payload      any
		expectedBody string
	}{
		{
			name:         "missing quantity",
			payload:      map[string]any{"id": 1},
			expectedBody: `{"validation_errors":{"Quantity":"failed on rule: required"}}`,
		},
		{
			name:         "quantity is not a number",
			payload:      map[string]any{"id": 1, "quantity": "many"},
			expectedBody: `{"error":"Invalid request body"}`,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			body, status := s.doRequest(http.MethodPost, warehouseURL+"/order", tc.payload)

			assert.Equal(s.T(), http.StatusBadRequest, status)
			assert.JSONEq(s.T(), tc.expectedBody, string(body))
		})
	}
}

func (s *WarehouseE2ESuite) TestInStockListing_E2E() {
	// given
	widget := s.addProduct("Widget", 5)
	s.addProduct("Gadget", 0)
	gizmo := s.addProduct("Gizmo", 3)
	_, status := s.doRequest(http.MethodPost, warehouseURL+"/order", quantityPayload{ID: gizmo.ID, Quantity: 3})
	require.Equal(s.T(), http.StatusOK, status)

	// when
	listed := s.listInStock()

	// then
	require.Len(s.T(), listed, 1)
	assert.Equal(s.T(), widget, listed[0])
}

func (s *WarehouseE2ESuite) TestConcurrentOrders_E2E() {
	// given
	product := s.addProduct("Widget", 100)
	const orders = 25

	// when
	var wg sync.WaitGroup
	for range orders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, status := s.doRequest(http.MethodPost, warehouseURL+"/order", quantityPayload{ID: product.ID, Quantity: 2})
			assert.Equal(s.T(), http.StatusOK, status)
		}()
	}
	wg.Wait()

	// then
	fetched, status := s.getProduct(product.ID)
	require.Equal(s.T(), http.StatusOK, status)
	require.NotNil(s.T(), fetched)
	assert.Equal(s.T(), int64(2*orders), fetched.ReservedQuantity)
	assert.Equal(s.T(), int64(100), fetched.InStockQuantity)
}
