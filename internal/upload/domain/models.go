// Package domain contains persistence models for billing file uploads.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingUpload tracks one ingested billing export file. The (tenant,
// fingerprint) pair is the idempotency key: the same object observed twice
// never produces two rows.
type BillingUpload struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID           string       `gorm:"type:text;not null;index:idx_uploads_tenant_fp,unique" json:"tenant_id"`
	UploaderID         string       `gorm:"type:text" json:"uploader_id,omitempty"`
	ObjectKey          string       `gorm:"type:text;not null" json:"object_key"`
	Bucket             string       `gorm:"type:text;not null" json:"bucket"`
	Size               int64        `gorm:"not null" json:"size"`
	Fingerprint        string       `gorm:"type:text;not null;index:idx_uploads_tenant_fp,unique" json:"fingerprint"`
	Status             Status       `gorm:"type:text;not null;default:PENDING" json:"status"`
	FailureReason      string       `gorm:"type:text" json:"failure_reason,omitempty"`
	BillingPeriodStart *time.Time   `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *time.Time   `json:"billing_period_end,omitempty"`
	ObservedAt         time.Time    `gorm:"not null" json:"observed_at"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingUpload) TableName() string { return "billing_uploads" }
