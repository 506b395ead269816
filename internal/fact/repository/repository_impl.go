package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/fact/domain"
	"gorm.io/gorm"
)

type Repository interface {
	BulkInsert(ctx context.Context, db *gorm.DB, facts []*domain.BillingUsageFact, batchSize int) error
	CountByUpload(ctx context.Context, db *gorm.DB, uploadID snowflake.ID) (int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) BulkInsert(ctx context.Context, db *gorm.DB, facts []*domain.BillingUsageFact, batchSize int) error {
	if len(facts) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return db.WithContext(ctx).CreateInBatches(facts, batchSize).Error
}

func (r *repo) CountByUpload(ctx context.Context, db *gorm.DB, uploadID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.BillingUsageFact{}).
		Where("upload_id = ?", uploadID).
		Count(&count).Error
	return count, err
}
