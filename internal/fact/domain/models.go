// Package domain contains the billing usage fact written by the ingestion
// pipeline and read by the analytics layer.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingUsageFact is one cost/usage line with resolved dimension foreign
// keys. Every dimension key is either a valid id resolved from a preload map
// or null; dangling references are never written.
type BillingUsageFact struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID             string            `gorm:"type:text;not null;index" json:"tenant_id"`
	UploadID             snowflake.ID      `gorm:"not null;index" json:"upload_id"`
	Provider             string            `gorm:"type:text;not null" json:"provider"`
	CloudAccountID       *snowflake.ID     `json:"cloud_account_id,omitempty"`
	ServiceID            *snowflake.ID     `json:"service_id,omitempty"`
	RegionID             *snowflake.ID     `json:"region_id,omitempty"`
	SkuID                *snowflake.ID     `json:"sku_id,omitempty"`
	ResourceID           *snowflake.ID     `json:"resource_id,omitempty"`
	SubAccountID         *snowflake.ID     `json:"sub_account_id,omitempty"`
	CommitmentDiscountID *snowflake.ID     `json:"commitment_discount_id,omitempty"`
	BilledCost           float64           `gorm:"not null" json:"billed_cost"`
	EffectiveCost        float64           `gorm:"not null" json:"effective_cost"`
	UsageAmount          float64           `gorm:"not null" json:"usage_amount"`
	UsageUnit            string            `gorm:"type:text" json:"usage_unit,omitempty"`
	Currency             string            `gorm:"type:text" json:"currency,omitempty"`
	ChargeDescription    string            `gorm:"type:text" json:"charge_description,omitempty"`
	ChargePeriodStart    *time.Time        `json:"charge_period_start,omitempty"`
	ChargePeriodEnd      *time.Time        `json:"charge_period_end,omitempty"`
	Tags                 datatypes.JSONMap `gorm:"type:jsonb" json:"tags,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BillingUsageFact) TableName() string { return "billing_usage_facts" }
