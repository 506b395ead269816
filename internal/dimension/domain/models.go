// Package domain contains the deduplicated reference entities billing facts
// point at. Each is identified by a provider-scoped natural key; the snowflake
// surrogate id is immutable once assigned and is all fact rows ever store.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CloudAccount struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider         string       `gorm:"type:text;not null;index:idx_cloud_accounts_nk,unique" json:"provider"`
	BillingAccountID string       `gorm:"type:text;not null;index:idx_cloud_accounts_nk,unique" json:"billing_account_id"`
	DisplayName      string       `gorm:"type:text" json:"display_name,omitempty"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CloudAccount) TableName() string { return "cloud_accounts" }

type Service struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider  string       `gorm:"type:text;not null;index:idx_services_nk,unique" json:"provider"`
	Name      string       `gorm:"type:text;not null;index:idx_services_nk,unique" json:"name"`
	Category  string       `gorm:"type:text" json:"category,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Service) TableName() string { return "services" }

type Region struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider  string       `gorm:"type:text;not null;index:idx_regions_nk,unique" json:"provider"`
	RegionID  string       `gorm:"type:text;not null;index:idx_regions_nk,unique" json:"region_id"`
	Name      string       `gorm:"type:text" json:"name,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Region) TableName() string { return "regions" }

type Sku struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	SkuID     string       `gorm:"type:text;not null;uniqueIndex" json:"sku_id"`
	PriceID   string       `gorm:"type:text" json:"price_id,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Sku) TableName() string { return "skus" }

type Resource struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ResourceID string       `gorm:"type:text;not null;uniqueIndex" json:"resource_id"`
	Name       string       `gorm:"type:text" json:"name,omitempty"`
	Type       string       `gorm:"type:text" json:"type,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Resource) TableName() string { return "resources" }

type SubAccount struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SubAccountID string       `gorm:"type:text;not null;uniqueIndex" json:"sub_account_id"`
	Name         string       `gorm:"type:text" json:"name,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SubAccount) TableName() string { return "sub_accounts" }

type CommitmentDiscount struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	DiscountID string       `gorm:"type:text;not null;uniqueIndex" json:"discount_id"`
	Type       string       `gorm:"type:text" json:"type,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CommitmentDiscount) TableName() string { return "commitment_discounts" }
