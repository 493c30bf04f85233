package service

import (
	"context"
	"fmt"

	"github.com/abgdnv/warehouse/internal/warehouse/store"
)

// Config names of the naming strategies.
const (
	// NamingCountSuffix selects CountSuffix.
	NamingCountSuffix = "count-suffix"
	// NamingNextAvailable selects NextAvailable.
	NamingNextAvailable = "next-available"
)

// NamingStrategy picks the name a new product is stored under when its requested name is already in use.
// The name passed to Resolve is already trimmed and non-blank.
type NamingStrategy interface {
	Resolve(ctx context.Context, products store.ProductStore, name string) (string, error)
}

// ParseNamingStrategy returns the strategy registered under name. An empty name selects next-available.
func ParseNamingStrategy(name string) (NamingStrategy, error) {
	switch name {
	case "", NamingNextAvailable:
		return NextAvailable{}, nil
	case NamingCountSuffix:
		return CountSuffix{}, nil
	default:
		return nil, fmt.Errorf("unknown naming strategy %q", name)
	}
}

// CountSuffix appends "(n+1)" where n is the number of products whose name equals name exactly.
// The suffixed name is not checked again, so it can collide with an existing suffixed product.
type CountSuffix struct{}

// Resolve returns name unchanged when it is free, otherwise name with the count suffix.
func (CountSuffix) Resolve(ctx context.Context, products store.ProductStore, name string) (string, error) {
	matches, err := products.Query(ctx, store.ByName(name))
	if err != nil {
		return "", fmt.Errorf("failed to look up products named %q: %w", name, err)
	}
	if len(matches) == 0 {
		return name, nil
	}
	return suffixed(name, len(matches)+1), nil
}

// NextAvailable appends "(k)" with the smallest k >= 2 not already in use.
// The bare name counts as the first occurrence.
type NextAvailable struct{}

// Resolve returns name unchanged when it is free, otherwise name with the first unused suffix.
func (NextAvailable) Resolve(ctx context.Context, products store.ProductStore, name string) (string, error) {
	matches, err := products.Query(ctx, store.ByName(name))
	if err != nil {
		return "", fmt.Errorf("failed to look up products named %q: %w", name, err)
	}
	if len(matches) == 0 {
		return name, nil
	}

	candidates, err := products.Query(ctx, store.ByNamePrefix(name+"("))
	if err != nil {
		return "", fmt.Errorf("failed to look up suffixed products named %q: %w", name, err)
	}
	taken := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		taken[p.Name] = struct{}{}
	}
	for k := 2; ; k++ {
		candidate := suffixed(name, k)
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
}

func suffixed(name string, n int) string {
	return fmt.Sprintf("%s(%d)", name, n)
}
