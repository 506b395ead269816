package dimension

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/dimension/domain"
	"github.com/smallbiznis/costwise/internal/mapping"
)

// Refs carries the dimension foreign keys resolved for one fact row. A nil
// field means the relationship stays unattributed; the fact row is still
// written.
type Refs struct {
	CloudAccountID       *snowflake.ID
	ServiceID            *snowflake.ID
	RegionID             *snowflake.ID
	SkuID                *snowflake.ID
	ResourceID           *snowflake.ID
	SubAccountID         *snowflake.ID
	CommitmentDiscountID *snowflake.ID
}

// Resolver looks up dimension ids from preloaded maps. It never queries
// storage row-by-row and never errors on a miss. The maps are read-only
// snapshots valid only for the ingestion run that built them.
type Resolver struct {
	ids domain.IDMaps
}

func NewResolver(ids domain.IDMaps) *Resolver {
	return &Resolver{ids: ids}
}

func (r *Resolver) Resolve(row map[string]string) Refs {
	refs := Refs{}
	provider := ProviderToken(row)
	if provider == "" {
		return refs
	}

	if accountID := strings.TrimSpace(row[mapping.FieldBillingAccountID]); accountID != "" {
		refs.CloudAccountID = lookup(r.ids.CloudAccounts, provider+"|"+accountID)
	}
	if name := strings.TrimSpace(row[mapping.FieldServiceName]); name != "" {
		refs.ServiceID = lookup(r.ids.Services, provider+"|"+name)
	}
	if regionID := strings.TrimSpace(row[mapping.FieldRegionID]); regionID != "" {
		refs.RegionID = lookup(r.ids.Regions, provider+"|"+regionID)
	}
	if skuID := strings.TrimSpace(row[mapping.FieldSkuID]); skuID != "" {
		refs.SkuID = lookup(r.ids.Skus, skuID)
	}
	if resourceID := strings.TrimSpace(row[mapping.FieldResourceID]); resourceID != "" {
		refs.ResourceID = lookup(r.ids.Resources, resourceID)
	}
	if subAccountID := strings.TrimSpace(row[mapping.FieldSubAccountID]); subAccountID != "" {
		refs.SubAccountID = lookup(r.ids.SubAccounts, subAccountID)
	}
	if discountID := strings.TrimSpace(row[mapping.FieldCommitmentDiscountID]); discountID != "" {
		refs.CommitmentDiscountID = lookup(r.ids.CommitmentDiscounts, discountID)
	}
	return refs
}

func lookup(m map[string]snowflake.ID, key string) *snowflake.ID {
	if id, ok := m[key]; ok {
		return &id
	}
	return nil
}

// MissingRows filters collected entities down to those absent from the
// preload, assigning fresh surrogate ids and timestamps ahead of the upsert.
func MissingRows(collected domain.KeySets, existing domain.IDMaps, gen *snowflake.Node, now time.Time) domain.KeySets {
	out := domain.KeySets{}
	for _, v := range collected.CloudAccounts {
		if _, ok := existing.CloudAccounts[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.CloudAccounts = append(out.CloudAccounts, v)
		}
	}
	for _, v := range collected.Services {
		if _, ok := existing.Services[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.Services = append(out.Services, v)
		}
	}
	for _, v := range collected.Regions {
		if _, ok := existing.Regions[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.Regions = append(out.Regions, v)
		}
	}
	for _, v := range collected.Skus {
		if _, ok := existing.Skus[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.Skus = append(out.Skus, v)
		}
	}
	for _, v := range collected.Resources {
		if _, ok := existing.Resources[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.Resources = append(out.Resources, v)
		}
	}
	for _, v := range collected.SubAccounts {
		if _, ok := existing.SubAccounts[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.SubAccounts = append(out.SubAccounts, v)
		}
	}
	for _, v := range collected.CommitmentDiscounts {
		if _, ok := existing.CommitmentDiscounts[v.NaturalKey()]; !ok {
			v.ID = gen.Generate()
			v.CreatedAt, v.UpdatedAt = now, now
			out.CommitmentDiscounts = append(out.CommitmentDiscounts, v)
		}
	}
	return out
}

// MergeIDs folds the ids of freshly upserted rows into the preload maps so
// resolution sees both old and new entities. Existing entries win: on a
// conflicting concurrent upsert the persisted row keeps its original id.
func MergeIDs(existing domain.IDMaps, inserted domain.KeySets) domain.IDMaps {
	for _, v := range inserted.CloudAccounts {
		if _, ok := existing.CloudAccounts[v.NaturalKey()]; !ok {
			existing.CloudAccounts[v.NaturalKey()] = v.ID
		}
	}
	for _, v := range inserted.Services {
		if _, ok := existing.Services[v.NaturalKey()]; !ok {
			existing.Services[v.NaturalKey()] = v.ID
		}
	}
	for _, v := range inserted.Regions {
		if _, ok := existing.Regions[v.NaturalKey()]; !ok {
			existing.Regions[v.NaturalKey()] = v.ID
		}
	}
	for _, v := range inserted.Skus {
		if _, ok := existing.Skus[v.NaturalKey()]; !ok {
			existing.Skus[v.NaturalKey()] = v.ID
		}
	}
	for _, v := range inserted.Resources {
		if _, ok := existing.Resources[v.NaturalKey()]; !ok {
			existing.Resources[v.NaturalKey()] = v.ID
		}
	}
	for _, v := range inserted.SubAccounts {
		if _, ok := existing.SubAccounts[v.NaturalKey()]; !ok {
			existing.SubAccounts[v.NaturalKey()] = v.ID
		}
	}
	for _, v := range inserted.CommitmentDiscounts {
		if _, ok := existing.CommitmentDiscounts[v.NaturalKey()]; !ok {
			existing.CommitmentDiscounts[v.NaturalKey()] = v.ID
		}
	}
	return existing
}
