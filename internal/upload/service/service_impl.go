package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/clock"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	"github.com/smallbiznis/costwise/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxRetrySuffixes = 100

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  uploaddomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  uploaddomain.Repository
}

func New(p ServiceParam) uploaddomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("upload.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req uploaddomain.CreateUploadRequest) (*uploaddomain.BillingUpload, error) {
	if req.TenantID == "" {
		return nil, uploaddomain.ErrInvalidTenant
	}

	existing, err := s.repo.FindByFingerprint(ctx, s.db, req.TenantID, req.Fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, uploaddomain.ErrDuplicateFingerprint
	}

	now := s.clock.Now()
	observedAt := req.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	upload := &uploaddomain.BillingUpload{
		ID:          s.genID.Generate(),
		TenantID:    req.TenantID,
		UploaderID:  req.UploaderID,
		Bucket:      req.Bucket,
		ObjectKey:   req.ObjectKey,
		Size:        req.Size,
		Fingerprint: req.Fingerprint,
		Status:      uploaddomain.StatusPending,
		ObservedAt:  observedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, upload); err != nil {
		// Lost a race with a concurrent sighting of the same object; the
		// unique (tenant, fingerprint) index is the source of truth.
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByFingerprint(ctx, s.db, req.TenantID, req.Fingerprint)
			if findErr == nil && winner != nil {
				return winner, uploaddomain.ErrDuplicateFingerprint
			}
			return nil, uploaddomain.ErrDuplicateFingerprint
		}
		return nil, err
	}

	s.log.Info("upload created",
		zap.String("upload_id", upload.ID.String()),
		zap.String("tenant_id", upload.TenantID),
		zap.String("object_key", upload.ObjectKey),
	)
	return upload, nil
}

// Transition moves an upload through the status lifecycle. Disallowed moves
// surface as ErrTransitionConflict carrying the state machine's reason text;
// idempotent self-transitions return the row untouched.
func (s *Service) Transition(ctx context.Context, id snowflake.ID, to uploaddomain.Status, reason string) (*uploaddomain.BillingUpload, error) {
	upload, err := s.repo.FindByID(ctx, s.db, "", id)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, uploaddomain.ErrNotFound
	}

	decision := uploaddomain.Evaluate(upload.Status, to)
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", uploaddomain.ErrTransitionConflict, decision.Reason)
	}
	if decision.Code == uploaddomain.CodeIdempotent {
		return upload, nil
	}

	now := s.clock.Now()
	updated, err := s.repo.UpdateStatus(ctx, s.db, id, upload.Status, to, reason, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Someone else moved the row first. Re-read: if they reached the same
		// state this write is a safe no-op, otherwise it is a conflict.
		current, findErr := s.repo.FindByID(ctx, s.db, "", id)
		if findErr != nil {
			return nil, findErr
		}
		if current != nil && current.Status == to {
			return current, nil
		}
		return nil, fmt.Errorf("%w: concurrent status change on upload %s", uploaddomain.ErrTransitionConflict, id)
	}

	upload.Status = to
	upload.FailureReason = reason
	upload.UpdatedAt = now

	s.log.Info("upload status transition",
		zap.String("upload_id", id.String()),
		zap.String("status", string(to)),
	)
	return upload, nil
}

// Retry clones a FAILED upload into a fresh PENDING row. The failed row is
// never resurrected; the clone gets a retry-suffixed fingerprint so the
// poller's dedup does not swallow it.
func (s *Service) Retry(ctx context.Context, tenantID string, id snowflake.ID) (*uploaddomain.BillingUpload, error) {
	failed, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	if failed == nil {
		return nil, uploaddomain.ErrNotFound
	}
	if failed.Status != uploaddomain.StatusFailed {
		return nil, uploaddomain.ErrRetryNotFailed
	}

	fingerprint, err := s.nextRetryFingerprint(ctx, tenantID, failed.Fingerprint)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, uploaddomain.CreateUploadRequest{
		TenantID:    tenantID,
		UploaderID:  failed.UploaderID,
		Bucket:      failed.Bucket,
		ObjectKey:   failed.ObjectKey,
		Size:        failed.Size,
		Fingerprint: fingerprint,
	})
}

func (s *Service) nextRetryFingerprint(ctx context.Context, tenantID, base string) (string, error) {
	for n := 1; n <= maxRetrySuffixes; n++ {
		candidate := fmt.Sprintf("%s#retry-%d", base, n)
		existing, err := s.repo.FindByFingerprint(ctx, s.db, tenantID, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("retry limit reached for fingerprint %s", base)
}

func (s *Service) GetByID(ctx context.Context, tenantID string, id snowflake.ID) (*uploaddomain.BillingUpload, error) {
	upload, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, uploaddomain.ErrNotFound
	}
	return upload, nil
}

func (s *Service) FindByFingerprint(ctx context.Context, tenantID, fingerprint string) (*uploaddomain.BillingUpload, error) {
	return s.repo.FindByFingerprint(ctx, s.db, tenantID, fingerprint)
}

func (s *Service) List(ctx context.Context, req uploaddomain.ListUploadRequest) ([]*uploaddomain.BillingUpload, error) {
	if req.TenantID == "" {
		return nil, uploaddomain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, req.TenantID, req.Filter, req.Page)
}

func (s *Service) SetBillingPeriod(ctx context.Context, id snowflake.ID, start, end time.Time) error {
	return s.repo.SetBillingPeriod(ctx, s.db, id, start, end)
}

func (s *Service) FailStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := s.repo.StaleProcessing(ctx, s.db, olderThan, limit)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, upload := range stale {
		if _, err := s.Transition(ctx, upload.ID, uploaddomain.StatusFailed, "processing timed out"); err != nil {
			// A concurrent completion is fine; anything else is logged and the
			// row is picked up on the next sweep.
			s.log.Warn("stale upload sweep transition failed",
				zap.String("upload_id", upload.ID.String()),
				zap.Error(err),
			)
			continue
		}
		failed++
	}
	return failed, nil
}
