package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/costwise/internal/cache"
	"github.com/smallbiznis/costwise/internal/clock"
	"github.com/smallbiznis/costwise/internal/config"
	factdomain "github.com/smallbiznis/costwise/internal/fact/domain"
	factrepository "github.com/smallbiznis/costwise/internal/fact/repository"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	uploadrepository "github.com/smallbiznis/costwise/internal/upload/repository"
	uploadservice "github.com/smallbiznis/costwise/internal/upload/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type serverFixture struct {
	db        *gorm.DB
	engine    *gin.Engine
	uploadSvc uploaddomain.Service
	gen       *snowflake.Node
}

func newServerFixture(t *testing.T, cfg config.Config) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&uploaddomain.BillingUpload{},
		&factdomain.BillingUsageFact{},
	))

	gen, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))

	uploadSvc := uploadservice.New(uploadservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: gen,
		Clock: fake,
		Repo:  uploadrepository.Provide(),
	})

	engine := NewEngine()
	srv := NewServer(ServerParams{
		Engine:    engine,
		Log:       zap.NewNop(),
		DB:        db,
		Clock:     fake,
		Config:    cfg,
		UploadSvc: uploadSvc,
		FactRepo:  factrepository.Provide(),
		Overview:  cache.NewOverviewCache(fake),
	})
	srv.RegisterRoutes()

	return &serverFixture{db: db, engine: engine, uploadSvc: uploadSvc, gen: gen}
}

func (f *serverFixture) request(t *testing.T, method, target, tenant, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetUploadIncludesFactRowCount(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	ctx := context.Background()

	upload, err := f.uploadSvc.Create(ctx, uploaddomain.CreateUploadRequest{
		TenantID:    "tenant-a",
		Bucket:      "acme-billing-exports",
		ObjectKey:   "reports/cur.csv",
		Size:        100,
		Fingerprint: "fp-1",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.db.Create(&factdomain.BillingUsageFact{
			ID:       f.gen.Generate(),
			TenantID: "tenant-a",
			UploadID: upload.ID,
			Provider: "aws",
		}).Error)
	}

	rec := f.request(t, http.MethodGet, "/v1/uploads/"+upload.ID.String(), "tenant-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["fact_rows"])
	got, ok := body["upload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "reports/cur.csv", got["object_key"])
}

func TestGetUploadRequiresTenantHeader(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	rec := f.request(t, http.MethodGet, "/v1/uploads/123", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUploadsRejectsBadPagination(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	rec := f.request(t, http.MethodGet, "/v1/uploads?page_size=abc", "tenant-a", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "validation_error", errObj["type"])
	errs, ok := errObj["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, "invalid_pagination", first["code"])
}

func TestS3EventHonorsConfiguredSizeCap(t *testing.T) {
	f := newServerFixture(t, config.Config{Ingest: config.IngestConfig{MaxObjectSize: 100}})

	evt := `{
		"account": "123456789012",
		"region": "us-east-1",
		"detail": {
			"bucket": {"name": "acme-billing-exports"},
			"object": {"key": "reports/cur.csv", "size": 101, "etag": "abc", "sequencer": "005F"}
		}
	}`
	rec := f.request(t, http.MethodPost, "/v1/ingest/s3-events", "tenant-a", evt)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]any)
	errs := errObj["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "invalid_object_size", errs[0].(map[string]any)["code"])
}
