package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListUploadFilter struct {
	Status Status
	Bucket string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, upload *BillingUpload) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID string, id snowflake.ID) (*BillingUpload, error)
	FindByFingerprint(ctx context.Context, db *gorm.DB, tenantID, fingerprint string) (*BillingUpload, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, reason string, at time.Time) (bool, error)
	SetBillingPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, start, end time.Time) error
	List(ctx context.Context, db *gorm.DB, tenantID string, filter ListUploadFilter, page pagination.Pagination) ([]*BillingUpload, error)
	StaleProcessing(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]*BillingUpload, error)
}
