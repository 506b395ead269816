package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/costwise/internal/ingest"
	"github.com/smallbiznis/costwise/internal/ingest/payload"
	"github.com/smallbiznis/costwise/internal/storage/s3"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	"github.com/smallbiznis/costwise/pkg/db/pagination"
	"github.com/smallbiznis/costwise/pkg/tenantctx"
	"go.uber.org/zap"
)

const tenantHeader = "X-Tenant-ID"

func requestTenant(c *gin.Context) (string, bool) {
	tenant := strings.TrimSpace(c.GetHeader(tenantHeader))
	if tenant == "" {
		return "", false
	}
	return tenant, true
}

// handleS3Event accepts an object-created push notification. The upload row
// is created synchronously so duplicate pushes get a 409 immediately;
// ingestion itself runs in the background.
func (s *Server) handleS3Event(c *gin.Context) {
	tenant, ok := requestTenant(c)
	if !ok {
		AbortWithError(c, uploaddomain.ErrInvalidTenant)
		return
	}

	var evt payload.Event
	if err := c.ShouldBindJSON(&evt); err != nil {
		AbortWithError(c, payload.ErrInvalidBody)
		return
	}

	p, err := payload.Validate(evt, payload.Limits{
		MaxObjectSize: s.cfg.Ingest.MaxObjectSize,
		MaxKeyLength:  s.cfg.Ingest.MaxKeyLength,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	upload, err := s.uploadSvc.Create(c.Request.Context(), uploaddomain.CreateUploadRequest{
		TenantID:    tenant,
		UploaderID:  "push:" + p.Account,
		Bucket:      p.Bucket,
		ObjectKey:   p.S3Key,
		Size:        p.Size,
		Fingerprint: p.Fingerprint(),
		ObservedAt:  s.clock.Now(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	go s.ingestPushed(tenantctx.WithTenantID(context.Background(), tenant), upload, p.Region)

	c.JSON(http.StatusAccepted, upload)
}

func (s *Server) ingestPushed(ctx context.Context, upload *uploaddomain.BillingUpload, region string) {
	log := s.log.With(
		zap.String("upload_id", upload.ID.String()),
		zap.String("bucket", upload.Bucket),
		zap.String("object_key", upload.ObjectKey),
	)

	store, err := s.stores(ctx, s3.ClientConfig{Region: region})
	if err != nil {
		s.failUpload(ctx, upload, err, log)
		return
	}

	body, err := store.Open(ctx, upload.Bucket, upload.ObjectKey)
	if err != nil {
		s.failUpload(ctx, upload, err, log)
		return
	}
	defer body.Close()

	reader, err := ingest.WrapReader(body, upload.ObjectKey)
	if err != nil {
		s.failUpload(ctx, upload, err, log)
		return
	}

	if err := s.pipeline.Run(ctx, upload, reader); err != nil {
		log.Warn("push ingestion failed", zap.Error(err))
	}
}

func (s *Server) failUpload(ctx context.Context, upload *uploaddomain.BillingUpload, cause error, log *zap.Logger) {
	log.Warn("push ingestion could not start", zap.Error(cause))
	if _, err := s.uploadSvc.Transition(ctx, upload.ID, uploaddomain.StatusFailed, cause.Error()); err != nil {
		log.Error("failed transition after push error", zap.Error(err))
	}
}

func (s *Server) handleListUploads(c *gin.Context) {
	tenant, ok := requestTenant(c)
	if !ok {
		AbortWithError(c, uploaddomain.ErrInvalidTenant)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page", "invalid_pagination", "invalid pagination parameters"))
		return
	}

	req := uploaddomain.ListUploadRequest{
		TenantID: tenant,
		Page:     page,
		Filter: uploaddomain.ListUploadFilter{
			Status: uploaddomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
			Bucket: strings.TrimSpace(c.Query("bucket")),
		},
	}

	uploads, err := s.uploadSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}

func (s *Server) handleGetUpload(c *gin.Context) {
	tenant, ok := requestTenant(c)
	if !ok {
		AbortWithError(c, uploaddomain.ErrInvalidTenant)
		return
	}

	id, err := parseUploadID(c.Param("id"))
	if err != nil {
		AbortWithError(c, uploaddomain.ErrNotFound)
		return
	}

	upload, err := s.uploadSvc.GetByID(c.Request.Context(), tenant, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	factRows, err := s.factRepo.CountByUpload(c.Request.Context(), s.db, upload.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload": upload, "fact_rows": factRows})
}

func (s *Server) handleRetryUpload(c *gin.Context) {
	tenant, ok := requestTenant(c)
	if !ok {
		AbortWithError(c, uploaddomain.ErrInvalidTenant)
		return
	}

	id, err := parseUploadID(c.Param("id"))
	if err != nil {
		AbortWithError(c, uploaddomain.ErrNotFound)
		return
	}

	retried, err := s.uploadSvc.Retry(c.Request.Context(), tenant, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, retried)
}

func parseUploadID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
