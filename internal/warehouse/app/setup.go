// Package app contains the application setup for the warehouse service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/warehouse/internal/config"
	"github.com/abgdnv/warehouse/internal/platform/server"
	"github.com/abgdnv/warehouse/internal/warehouse/service"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	grpcImpl "github.com/abgdnv/warehouse/internal/warehouse/transport/grpc"
	"github.com/abgdnv/warehouse/internal/warehouse/transport/rest"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

type Dependencies struct {
	Store            store.ProductStore
	WarehouseService service.WarehouseService
	Health           *health.Server
	Logger           *slog.Logger
	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string
}

// ServiceOptions translates the warehouse settings of cfg into service options.
func ServiceOptions(cfg *config.Config) ([]service.Option, error) {
	naming, err := service.ParseNamingStrategy(cfg.Naming.Strategy)
	if err != nil {
		return nil, err
	}
	guard, err := service.ParseReservationGuard(cfg.Reservation.Guard)
	if err != nil {
		return nil, err
	}
	return []service.Option{
		service.WithNamingStrategy(naming),
		service.WithReservationGuard(guard),
	}, nil
}

func SetupDependencies(products store.ProductStore, logger *slog.Logger, opts ...service.Option) *Dependencies {
	return &Dependencies{
		Store:            products,
		WarehouseService: service.NewService(products, logger, opts...),
		Health:           grpcImpl.NewHealthServer(),
		Logger:           logger,
	}
}

// SetupHttpHandler initializes the routes and middleware of the warehouse HTTP API.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "warehouse-http")
}

// wireRoutes sets up the HTTP routes for the warehouse service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	warehouseHandler := rest.NewHandler(deps.WarehouseService, deps.Logger)
	warehouseHandler.RegisterRoutes(mux)
	if deps.MetricsPath != "" {
		mux.Method(http.MethodGet, deps.MetricsPath, promhttp.Handler())
	}
}

// SetupHttpServer creates and configures an HTTP server for the warehouse service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

// SetupGrpcServer initializes the gRPC server for the warehouse service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, grpcImpl.RegisterHealth(deps.Health))
}
