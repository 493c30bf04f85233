// Package config holds the configuration of the warehouse service.
package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/warehouse/internal/platform/config"
	"github.com/abgdnv/warehouse/internal/platform/config/configloader"
	"github.com/abgdnv/warehouse/internal/warehouse/service"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer  config.HTTPConfig       `koanf:"server"`
	Database    config.DatabaseConfig   `koanf:"database"`
	Log         config.LogConfig        `koanf:"log"`
	PProf       config.PProfConfig      `koanf:"pprof"`
	GRPC        config.GrpcServerConfig `koanf:"grpc"`
	Shutdown    config.ShutdownConfig   `koanf:"shutdown"`
	NATS        config.NATSConfig       `koanf:"nats"`
	Resilience  config.ResilienceConfig `koanf:"resilience"`
	Telemetry   config.TelemetryConfig  `koanf:"telemetry"`
	Cache       config.RedisConfig      `koanf:"cache"`
	Store       StoreConfig             `koanf:"store"`
	Naming      NamingConfig            `koanf:"naming"`
	Reservation ReservationConfig       `koanf:"reservation"`
	Seed        SeedConfig              `koanf:"seed"`
}

type StoreConfig struct {
	Driver string `koanf:"driver"`
}

type NamingConfig struct {
	Strategy string `koanf:"strategy"`
}

type ReservationConfig struct {
	Guard string `koanf:"guard"`
}

type SeedConfig struct {
	File string `koanf:"file"`
}

// Defaults are the values used when neither the YAML file nor the environment sets a key.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":                                   8080,
		"server.maxHeaderBytes":                         1 << 20,
		"server.timeout.read":                           "5s",
		"server.timeout.write":                          "10s",
		"server.timeout.idle":                           "120s",
		"server.timeout.readHeader":                     "2s",
		"database.timeout":                              "5s",
		"log.level":                                     "info",
		"pprof.addr":                                    "localhost:6060",
		"grpc.port":                                     "50051",
		"shutdown.timeout":                              "10s",
		"nats.timeout":                                  "5s",
		"nats.stream":                                   "WAREHOUSE",
		"resilience.circuitbreaker.consecutivefailures": 5,
		"resilience.circuitbreaker.errorratepercent":    50,
		"resilience.circuitbreaker.opentimeout":         "30s",
		"telemetry.metrics.path":                        "/metrics",
		"cache.ttl":                                     "30s",
		"cache.timeout":                                 "1s",
		"store.driver":                                  DriverMemory,
		"naming.strategy":                               service.NamingNextAvailable,
		"reservation.guard":                             service.GuardLiteral,
	}
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString(c.HTTPServer.String())
	if c.Store.Driver == DriverPostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.GRPC.String())
	b.WriteString(c.NATS.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Cache.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())

	b.WriteString("\n--- Warehouse ---\n")
	b.WriteString(fmt.Sprintf("  store.driver: %s\n", c.Store.Driver))
	b.WriteString(fmt.Sprintf("  naming.strategy: %s\n", c.Naming.Strategy))
	b.WriteString(fmt.Sprintf("  reservation.guard: %s\n", c.Reservation.Guard))
	if c.Seed.File != "" {
		b.WriteString(fmt.Sprintf("  seed.file: %s\n", c.Seed.File))
	}

	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Log,
		&c.PProf,
		&c.GRPC,
		&c.Shutdown,
		&c.NATS,
		&c.Telemetry,
		&c.Cache,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.NATS.Enabled {
		if err := c.Resilience.Validate(); err != nil {
			return err
		}
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if _, err := service.ParseNamingStrategy(c.Naming.Strategy); err != nil {
		return err
	}
	if _, err := service.ParseReservationGuard(c.Reservation.Guard); err != nil {
		return err
	}
	return nil
}
