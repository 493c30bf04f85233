package app

import (
	"context"
	"fmt"

	"github.com/abgdnv/warehouse/internal/warehouse/service"
	"github.com/abgdnv/warehouse/internal/warehouse/store"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type seedEntry struct {
	Name            string `koanf:"name"`
	InStockQuantity int64  `koanf:"inStockQuantity"`
}

// LoadSeed reads the products listed under the "products" key of a YAML file.
func LoadSeed(path string) ([]service.ProductDto, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var entries []seedEntry
	if err := k.Unmarshal("products", &entries); err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	products := make([]service.ProductDto, len(entries))
	for i, e := range entries {
		products[i] = service.ProductDto{Name: e.Name, InStockQuantity: e.InStockQuantity}
	}
	return products, nil
}

// Seed adds the products of the seed file through the service when the store is empty.
// Entries the service rejects are logged and skipped. Returns the number of products added.
func Seed(ctx context.Context, deps *Dependencies, path string) (int, error) {
	existing, err := deps.Store.Query(ctx, store.All())
	if err != nil {
		return 0, fmt.Errorf("failed to check for existing products: %w", err)
	}
	if len(existing) > 0 {
		deps.Logger.InfoContext(ctx, "Store is not empty, skipping seed", "products", len(existing))
		return 0, nil
	}

	products, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, p := range products {
		response, err := deps.WarehouseService.AddNewProduct(ctx, p)
		if err != nil {
			return added, fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
		if reason, failed := response.Reason(); failed {
			deps.Logger.WarnContext(ctx, "Seed product rejected", "name", p.Name, "reason", reason)
			continue
		}
		added++
	}
	deps.Logger.InfoContext(ctx, "Seeded products", "count", added, "file", path)
	return added, nil
}
