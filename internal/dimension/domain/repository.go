package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// KeySets carries the natural keys accumulated by a collector, per kind.
type KeySets struct {
	CloudAccounts       []CloudAccount
	Services            []Service
	Regions             []Region
	Skus                []Sku
	Resources           []Resource
	SubAccounts         []SubAccount
	CommitmentDiscounts []CommitmentDiscount
}

// IDMaps holds surrogate ids keyed by the same natural-key strings used
// during collection. Maps are read-only snapshots scoped to one ingestion run.
type IDMaps struct {
	CloudAccounts       map[string]snowflake.ID
	Services            map[string]snowflake.ID
	Regions             map[string]snowflake.ID
	Skus                map[string]snowflake.ID
	Resources           map[string]snowflake.ID
	SubAccounts         map[string]snowflake.ID
	CommitmentDiscounts map[string]snowflake.ID
}

type Repository interface {
	// PreloadExisting resolves already-persisted dimension rows in bulk,
	// using exact-match predicates over the natural keys. No per-row queries.
	PreloadExisting(ctx context.Context, db *gorm.DB, keys KeySets) (IDMaps, error)

	// UpsertMissing bulk-writes the given rows with insert-or-update-named-
	// columns semantics keyed by the natural key, so concurrent ingestion
	// runs converge rather than duplicate.
	UpsertMissing(ctx context.Context, db *gorm.DB, rows KeySets) error
}
