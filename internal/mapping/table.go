package mapping

import (
	"encoding/json"
	"fmt"
	"os"
)

// Field is one canonical field with its normalized candidate header names.
type Field struct {
	Name       string
	Candidates []string
}

// Table is the flattened mapping configuration the matcher operates on.
type Table []Field

// Canonical field names used across the ingestion pipeline.
const (
	FieldProvider               = "provider"
	FieldBillingAccountID       = "billing_account_id"
	FieldBillingAccountName     = "billing_account_name"
	FieldSubAccountID           = "sub_account_id"
	FieldSubAccountName         = "sub_account_name"
	FieldServiceName            = "service_name"
	FieldServiceCategory        = "service_category"
	FieldRegionID               = "region_id"
	FieldRegionName             = "region_name"
	FieldSkuID                  = "sku_id"
	FieldSkuPriceID             = "sku_price_id"
	FieldResourceID             = "resource_id"
	FieldResourceName           = "resource_name"
	FieldResourceType           = "resource_type"
	FieldCommitmentDiscountID   = "commitment_discount_id"
	FieldCommitmentDiscountType = "commitment_discount_type"
	FieldBilledCost             = "billed_cost"
	FieldEffectiveCost          = "effective_cost"
	FieldUsageAmount            = "usage_amount"
	FieldUsageUnit              = "usage_unit"
	FieldCurrency               = "currency"
	FieldChargePeriodStart      = "charge_period_start"
	FieldChargePeriodEnd        = "charge_period_end"
	FieldChargeDescription      = "charge_description"
	FieldTags                   = "tags"
)

// LoadTable flattens the duck-typed mapping configuration into a uniform
// Table. Each value may be a single candidate header (string), a list of
// candidates, or an object with a designated source column. The matcher only
// ever sees the flattened form.
func LoadTable(raw map[string]any) (Table, error) {
	table := make(Table, 0, len(raw))
	for name, value := range raw {
		candidates, err := flattenCandidates(value)
		if err != nil {
			return nil, fmt.Errorf("mapping field %q: %w", name, err)
		}
		table = append(table, Field{Name: name, Candidates: candidates})
	}
	return table, nil
}

func flattenCandidates(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("candidate list holds %T, want string", item)
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		column, ok := v["column"].(string)
		if !ok {
			return nil, fmt.Errorf("object candidate missing 'column' key")
		}
		return []string{column}, nil
	default:
		return nil, fmt.Errorf("unsupported candidate shape %T", value)
	}
}

// LoadFile reads a JSON mapping file and flattens it. The file holds one
// object per canonical field, each value in any of the shapes LoadTable
// accepts.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %w", path, err)
	}
	return LoadTable(raw)
}

// Merge lays overrides over a base table. A field present in both keeps the
// override's candidates; fields only in the override are appended.
func Merge(base, overrides Table) Table {
	merged := make(Table, 0, len(base)+len(overrides))
	replaced := make(map[string]Field, len(overrides))
	for _, f := range overrides {
		replaced[f.Name] = f
	}
	for _, f := range base {
		if override, ok := replaced[f.Name]; ok {
			merged = append(merged, override)
			delete(replaced, f.Name)
			continue
		}
		merged = append(merged, f)
	}
	for _, f := range overrides {
		if _, ok := replaced[f.Name]; ok {
			merged = append(merged, f)
		}
	}
	return merged
}

// DefaultTable covers the AWS CUR, Azure and GCP billing export dialects plus
// FOCUS-style generic exports.
func DefaultTable() Table {
	return Table{
		{FieldProvider, []string{"Provider", "ProviderName", "bill/BillingEntity"}},
		{FieldBillingAccountID, []string{"BillingAccountId", "bill/PayerAccountId", "billingAccountId", "billing_account_id"}},
		{FieldBillingAccountName, []string{"BillingAccountName", "billingAccountName"}},
		{FieldSubAccountID, []string{"SubAccountId", "lineItem/UsageAccountId", "subscriptionId", "project.id", "project_id"}},
		{FieldSubAccountName, []string{"SubAccountName", "subscriptionName", "project.name", "project_name"}},
		{FieldServiceName, []string{"ServiceName", "product/ProductName", "lineItem/ProductCode", "meterCategory", "service.description"}},
		{FieldServiceCategory, []string{"ServiceCategory", "product/productFamily", "meterSubCategory"}},
		{FieldRegionID, []string{"RegionId", "product/region", "resourceLocation", "location.region"}},
		{FieldRegionName, []string{"RegionName", "product/location", "location.location"}},
		{FieldSkuID, []string{"SkuId", "product/sku", "meterId", "sku.id"}},
		{FieldSkuPriceID, []string{"SkuPriceId", "pricing/RateId"}},
		{FieldResourceID, []string{"ResourceId", "lineItem/ResourceId", "resource.name", "InstanceId"}},
		{FieldResourceName, []string{"ResourceName", "resource.global_name"}},
		{FieldResourceType, []string{"ResourceType", "product/instanceType"}},
		{FieldCommitmentDiscountID, []string{"CommitmentDiscountId", "reservation/ReservationARN", "savingsPlan/SavingsPlanARN", "reservationId"}},
		{FieldCommitmentDiscountType, []string{"CommitmentDiscountType", "pricing/term"}},
		{FieldBilledCost, []string{"BilledCost", "lineItem/UnblendedCost", "costInBillingCurrency", "cost", "Cost"}},
		{FieldEffectiveCost, []string{"EffectiveCost", "lineItem/NetUnblendedCost", "costInUsd"}},
		{FieldUsageAmount, []string{"UsageAmount", "ConsumedQuantity", "lineItem/UsageAmount", "usage.amount", "quantity"}},
		{FieldUsageUnit, []string{"UsageUnit", "PricingUnit", "lineItem/UsageType", "unitOfMeasure", "usage.unit"}},
		{FieldCurrency, []string{"BillingCurrency", "lineItem/CurrencyCode", "billingCurrency", "currency"}},
		{FieldChargePeriodStart, []string{"ChargePeriodStart", "lineItem/UsageStartDate", "date", "usage_start_time"}},
		{FieldChargePeriodEnd, []string{"ChargePeriodEnd", "lineItem/UsageEndDate", "usage_end_time"}},
		{FieldChargeDescription, []string{"ChargeDescription", "lineItem/LineItemDescription", "description"}},
		{FieldTags, []string{"Tags", "resourceTags", "tags", "labels"}},
	}
}
