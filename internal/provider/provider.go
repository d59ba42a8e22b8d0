package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPairNotFound indicates the provider does not know the requested pair.
	ErrPairNotFound = errors.New("provider: pair not found")
	// ErrMetadataNotFound indicates no display metadata exists for a symbol.
	ErrMetadataNotFound = errors.New("provider: metadata not found")
)

// Pair identifies a tradable asset-quote combination.
type Pair struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
}

// Metadata carries display decoration for a base asset.
type Metadata struct {
	Symbol   string `json:"symbol"`
	FullName string `json:"full_name"`
	LogoURL  string `json:"logo_url"`
}

// PriceSource retrieves the current price for a pair identifier.
type PriceSource interface {
	FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// PairCatalog retrieves the set of tradable USD-quoted pairs.
type PairCatalog interface {
	FetchUSDPairs(ctx context.Context) ([]Pair, error)
}

// MetadataSource retrieves display metadata for a base-asset symbol.
// Lookups are best-effort; callers degrade gracefully on failure.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, symbol string) (Metadata, error)
}
