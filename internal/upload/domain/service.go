package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/pkg/db/pagination"
)

type CreateUploadRequest struct {
	TenantID    string
	UploaderID  string
	Bucket      string
	ObjectKey   string
	Size        int64
	Fingerprint string
	ObservedAt  time.Time
}

type ListUploadRequest struct {
	TenantID string
	Filter   ListUploadFilter
	Page     pagination.Pagination
}

// Service owns the upload lifecycle. Every status write goes through
// Transition so the state machine is enforced on every path.
type Service interface {
	Create(ctx context.Context, req CreateUploadRequest) (*BillingUpload, error)
	Transition(ctx context.Context, id snowflake.ID, to Status, reason string) (*BillingUpload, error)
	Retry(ctx context.Context, tenantID string, id snowflake.ID) (*BillingUpload, error)
	GetByID(ctx context.Context, tenantID string, id snowflake.ID) (*BillingUpload, error)
	FindByFingerprint(ctx context.Context, tenantID, fingerprint string) (*BillingUpload, error)
	List(ctx context.Context, req ListUploadRequest) ([]*BillingUpload, error)
	SetBillingPeriod(ctx context.Context, id snowflake.ID, start, end time.Time) error

	// FailStale fails PROCESSING uploads whose last update is older than the
	// cutoff. A crash mid-ingestion leaves the row stuck; this sweep turns it
	// into a retryable FAILED.
	FailStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}
