// Package poller discovers new billing export objects in customer S3 buckets
// and feeds them to the ingestion pipeline.
package poller

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
)

// S3Integration binds a tenant to a bucket the poller should watch. Rows are
// operator-managed; the poller only reads them and advances last_polled_at.
type S3Integration struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	TenantID     string     `gorm:"type:text;not null;index" json:"tenant_id"`
	Bucket       string     `gorm:"type:text;not null" json:"bucket"`
	Prefix       string     `gorm:"type:text" json:"prefix"`
	Region       string     `gorm:"type:text" json:"region"`
	RoleARN      string     `gorm:"type:text" json:"role_arn"`
	Enabled      bool       `gorm:"not null" json:"enabled"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (S3Integration) TableName() string { return "s3_integrations" }

// Eligible reports whether the integration can be polled at all. Disabled
// rows and rows missing a tenant or bucket are silently skipped.
func (i S3Integration) Eligible() bool {
	return i.Enabled && i.TenantID != "" && i.Bucket != ""
}

// OrderForPolling sorts integrations least-recently-polled first so a slow
// bucket cannot starve the others. Never-polled rows go to the front; ties
// break on id for a stable order.
func OrderForPolling(integrations []S3Integration) {
	sort.SliceStable(integrations, func(a, b int) bool {
		ta, tb := polledAt(integrations[a]), polledAt(integrations[b])
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return integrations[a].ID < integrations[b].ID
	})
}

func polledAt(i S3Integration) time.Time {
	if i.LastPolledAt == nil {
		return time.Time{}
	}
	return *i.LastPolledAt
}

type Repository interface {
	ListEnabled(ctx context.Context) ([]S3Integration, error)
	MarkPolled(ctx context.Context, id string, at time.Time) error
}

type repo struct {
	db *gorm.DB
}

func ProvideRepository(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) ListEnabled(ctx context.Context) ([]S3Integration, error) {
	var integrations []S3Integration
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&integrations).Error
	if err != nil {
		return nil, err
	}
	return integrations, nil
}

func (r *repo) MarkPolled(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&S3Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_polled_at": at,
			"updated_at":     at,
		}).Error
}
