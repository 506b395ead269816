// Package dimension accumulates, preloads and resolves the reference entities
// referenced by billing fact rows.
package dimension

import (
	"strings"

	"github.com/smallbiznis/costwise/internal/dimension/domain"
	"github.com/smallbiznis/costwise/internal/mapping"
)

// Collector is an arena owned by a single ingestion run. It must never be
// shared across concurrent runs and is discarded when the run ends.
type Collector struct {
	cloudAccounts       map[string]domain.CloudAccount
	services            map[string]domain.Service
	regions             map[string]domain.Region
	skus                map[string]domain.Sku
	resources           map[string]domain.Resource
	subAccounts         map[string]domain.SubAccount
	commitmentDiscounts map[string]domain.CommitmentDiscount
}

func NewCollector() *Collector {
	return &Collector{
		cloudAccounts:       make(map[string]domain.CloudAccount),
		services:            make(map[string]domain.Service),
		regions:             make(map[string]domain.Region),
		skus:                make(map[string]domain.Sku),
		resources:           make(map[string]domain.Resource),
		subAccounts:         make(map[string]domain.SubAccount),
		commitmentDiscounts: make(map[string]domain.CommitmentDiscount),
	}
}

// Collect inspects one mapped row and records any reference entities it names.
// Rows without a provider token contribute nothing; malformed rows cannot
// poison the reference tables. First-seen wins for descriptive attributes.
func (c *Collector) Collect(row map[string]string) {
	provider := ProviderToken(row)
	if provider == "" {
		return
	}

	if accountID := strings.TrimSpace(row[mapping.FieldBillingAccountID]); accountID != "" {
		account := domain.CloudAccount{
			Provider:         provider,
			BillingAccountID: accountID,
			DisplayName:      strings.TrimSpace(row[mapping.FieldBillingAccountName]),
		}
		if _, ok := c.cloudAccounts[account.NaturalKey()]; !ok {
			c.cloudAccounts[account.NaturalKey()] = account
		}
	}

	if name := strings.TrimSpace(row[mapping.FieldServiceName]); name != "" {
		service := domain.Service{
			Provider: provider,
			Name:     name,
			Category: strings.TrimSpace(row[mapping.FieldServiceCategory]),
		}
		if _, ok := c.services[service.NaturalKey()]; !ok {
			c.services[service.NaturalKey()] = service
		}
	}

	if regionID := strings.TrimSpace(row[mapping.FieldRegionID]); regionID != "" {
		region := domain.Region{
			Provider: provider,
			RegionID: regionID,
			Name:     strings.TrimSpace(row[mapping.FieldRegionName]),
		}
		if _, ok := c.regions[region.NaturalKey()]; !ok {
			c.regions[region.NaturalKey()] = region
		}
	}

	if skuID := strings.TrimSpace(row[mapping.FieldSkuID]); skuID != "" {
		if _, ok := c.skus[skuID]; !ok {
			c.skus[skuID] = domain.Sku{
				SkuID:   skuID,
				PriceID: strings.TrimSpace(row[mapping.FieldSkuPriceID]),
			}
		}
	}

	if resourceID := strings.TrimSpace(row[mapping.FieldResourceID]); resourceID != "" {
		if _, ok := c.resources[resourceID]; !ok {
			c.resources[resourceID] = domain.Resource{
				ResourceID: resourceID,
				Name:       strings.TrimSpace(row[mapping.FieldResourceName]),
				Type:       strings.TrimSpace(row[mapping.FieldResourceType]),
			}
		}
	}

	if subAccountID := strings.TrimSpace(row[mapping.FieldSubAccountID]); subAccountID != "" {
		if _, ok := c.subAccounts[subAccountID]; !ok {
			c.subAccounts[subAccountID] = domain.SubAccount{
				SubAccountID: subAccountID,
				Name:         strings.TrimSpace(row[mapping.FieldSubAccountName]),
			}
		}
	}

	if discountID := strings.TrimSpace(row[mapping.FieldCommitmentDiscountID]); discountID != "" {
		if _, ok := c.commitmentDiscounts[discountID]; !ok {
			c.commitmentDiscounts[discountID] = domain.CommitmentDiscount{
				DiscountID: discountID,
				Type:       strings.TrimSpace(row[mapping.FieldCommitmentDiscountType]),
			}
		}
	}
}

// KeySets flattens the arena for bulk preload and upsert.
func (c *Collector) KeySets() domain.KeySets {
	out := domain.KeySets{}
	for _, v := range c.cloudAccounts {
		out.CloudAccounts = append(out.CloudAccounts, v)
	}
	for _, v := range c.services {
		out.Services = append(out.Services, v)
	}
	for _, v := range c.regions {
		out.Regions = append(out.Regions, v)
	}
	for _, v := range c.skus {
		out.Skus = append(out.Skus, v)
	}
	for _, v := range c.resources {
		out.Resources = append(out.Resources, v)
	}
	for _, v := range c.subAccounts {
		out.SubAccounts = append(out.SubAccounts, v)
	}
	for _, v := range c.commitmentDiscounts {
		out.CommitmentDiscounts = append(out.CommitmentDiscounts, v)
	}
	return out
}

// ProviderToken derives the lowercase provider token for a mapped row.
func ProviderToken(row map[string]string) string {
	return strings.ToLower(strings.TrimSpace(row[mapping.FieldProvider]))
}
