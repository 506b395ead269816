package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/upload/domain"
	"github.com/smallbiznis/costwise/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, upload *domain.BillingUpload) error {
	return db.WithContext(ctx).Create(upload).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID string, id snowflake.ID) (*domain.BillingUpload, error) {
	var upload domain.BillingUpload
	stmt := db.WithContext(ctx).Where("id = ?", id)
	if tenantID != "" {
		stmt = stmt.Where("tenant_id = ?", tenantID)
	}
	err := stmt.Limit(1).Find(&upload).Error
	if err != nil {
		return nil, err
	}
	if upload.ID == 0 {
		return nil, nil
	}
	return &upload, nil
}

func (r *repo) FindByFingerprint(ctx context.Context, db *gorm.DB, tenantID, fingerprint string) (*domain.BillingUpload, error) {
	var upload domain.BillingUpload
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND fingerprint = ?", tenantID, fingerprint).
		Limit(1).
		Find(&upload).Error
	if err != nil {
		return nil, err
	}
	if upload.ID == 0 {
		return nil, nil
	}
	return &upload, nil
}

// UpdateStatus writes the new status guarded by the expected current status,
// so concurrent workers cannot race past the state machine. Returns false when
// the guard did not match.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, reason string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.BillingUpload{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":         to,
			"failure_reason": reason,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetBillingPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, start, end time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.BillingUpload{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"billing_period_start": start,
			"billing_period_end":   end,
		}).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID string, filter domain.ListUploadFilter, page pagination.Pagination) ([]*domain.BillingUpload, error) {
	var uploads []*domain.BillingUpload
	stmt := db.WithContext(ctx).
		Model(&domain.BillingUpload{}).
		Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Bucket != "" {
		stmt = stmt.Where("bucket = ?", filter.Bucket)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.CreatedAt != "" {
			stmt = stmt.Where("created_at < ?", cursor.CreatedAt)
		}
	}
	size := page.PageSize
	if size <= 0 {
		size = 50
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(size).
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

func (r *repo) StaleProcessing(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]*domain.BillingUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	var uploads []*domain.BillingUpload
	err := db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.StatusProcessing, olderThan).
		Order("updated_at asc").
		Limit(limit).
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}
