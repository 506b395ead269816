package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/costwise/internal/clock"
	"github.com/smallbiznis/costwise/internal/config"
	dimensiondomain "github.com/smallbiznis/costwise/internal/dimension/domain"
	dimensionrepository "github.com/smallbiznis/costwise/internal/dimension/repository"
	factdomain "github.com/smallbiznis/costwise/internal/fact/domain"
	factrepository "github.com/smallbiznis/costwise/internal/fact/repository"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	uploadrepository "github.com/smallbiznis/costwise/internal/upload/repository"
	uploadservice "github.com/smallbiznis/costwise/internal/upload/service"
	"github.com/smallbiznis/costwise/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const awsCSV = `lineItem/UsageAccountId,lineItem/ProductCode,product/region,lineItem/UnblendedCost,lineItem/UsageAmount,lineItem/CurrencyCode,lineItem/UsageStartDate,lineItem/UsageEndDate
111122223333,AmazonEC2,us-east-1,1.50,24,USD,2026-08-01T00:00:00Z,2026-08-01T01:00:00Z
111122223333,AmazonEC2,us-east-1,2.25,36,USD,2026-08-01T01:00:00Z,2026-08-01T02:00:00Z
111122223333,AmazonS3,us-east-1,0.10,5,USD,2026-08-02T00:00:00Z,2026-08-02T01:00:00Z
`

type pipelineFixture struct {
	db        *gorm.DB
	pipeline  *Pipeline
	uploadSvc uploaddomain.Service
	clock     *clock.FakeClock
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	return newPipelineFixtureWithConfig(t, config.IngestConfig{FactBatchSize: 100})
}

func newPipelineFixtureWithConfig(t *testing.T, ingestCfg config.IngestConfig) *pipelineFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&uploaddomain.BillingUpload{},
		&dimensiondomain.CloudAccount{},
		&dimensiondomain.Service{},
		&dimensiondomain.Region{},
		&dimensiondomain.Sku{},
		&dimensiondomain.Resource{},
		&dimensiondomain.SubAccount{},
		&dimensiondomain.CommitmentDiscount{},
		&factdomain.BillingUsageFact{},
	))

	gen, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))

	uploadSvc := uploadservice.New(uploadservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: gen,
		Clock: fake,
		Repo:  uploadrepository.Provide(),
	})

	pipeline := NewPipeline(PipelineParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     gen,
		Clock:     fake,
		Config:    config.Config{Ingest: ingestCfg},
		UploadSvc: uploadSvc,
		DimRepo:   dimensionrepository.Provide(),
		FactRepo:  factrepository.Provide(),
	})

	return &pipelineFixture{db: db, pipeline: pipeline, uploadSvc: uploadSvc, clock: fake}
}

func (f *pipelineFixture) newUpload(t *testing.T, fingerprint string) *uploaddomain.BillingUpload {
	t.Helper()
	upload, err := f.uploadSvc.Create(context.Background(), uploaddomain.CreateUploadRequest{
		TenantID:    "tenant-a",
		Bucket:      "acme-billing-exports",
		ObjectKey:   "reports/cur.csv",
		Size:        int64(len(awsCSV)),
		Fingerprint: fingerprint,
	})
	require.NoError(t, err)
	return upload
}

func TestPipelineIngestsAwsExport(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	upload := f.newUpload(t, "fp-1")

	err := f.pipeline.Run(ctx, upload, strings.NewReader(awsCSV))
	require.NoError(t, err)

	got, err := f.uploadSvc.GetByID(ctx, "tenant-a", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaddomain.StatusCompleted, got.Status)

	var facts []*factdomain.BillingUsageFact
	require.NoError(t, f.db.Where("upload_id = ?", upload.ID).Find(&facts).Error)
	require.Len(t, facts, 3)

	for _, fact := range facts {
		assert.Equal(t, "aws", fact.Provider)
		assert.Equal(t, "tenant-a", fact.TenantID)
		assert.NotNil(t, fact.ServiceID, "service resolved")
		assert.NotNil(t, fact.RegionID, "region resolved")
		assert.NotNil(t, fact.SubAccountID, "usage account resolved")
		assert.Equal(t, "USD", fact.Currency)
	}

	// Billing period spans min/max charge periods across rows.
	require.NotNil(t, got.BillingPeriodStart)
	require.NotNil(t, got.BillingPeriodEnd)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), got.BillingPeriodStart.UTC())
	assert.Equal(t, time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC), got.BillingPeriodEnd.UTC())
}

func TestPipelineReusesDimensionsAcrossRuns(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	first := f.newUpload(t, "fp-1")
	require.NoError(t, f.pipeline.Run(ctx, first, strings.NewReader(awsCSV)))

	second := f.newUpload(t, "fp-2")
	require.NoError(t, f.pipeline.Run(ctx, second, strings.NewReader(awsCSV)))

	var regionCount int64
	require.NoError(t, f.db.Model(&dimensiondomain.Region{}).Count(&regionCount).Error)
	assert.Equal(t, int64(1), regionCount)

	var serviceCount int64
	require.NoError(t, f.db.Model(&dimensiondomain.Service{}).Count(&serviceCount).Error)
	assert.Equal(t, int64(2), serviceCount, "EC2 and S3")

	// Both runs resolve to the same persisted region row.
	var facts []*factdomain.BillingUsageFact
	require.NoError(t, f.db.Find(&facts).Error)
	require.Len(t, facts, 6)
	regionID := facts[0].RegionID
	require.NotNil(t, regionID)
	for _, fact := range facts[1:] {
		require.NotNil(t, fact.RegionID)
		assert.Equal(t, *regionID, *fact.RegionID)
	}
}

func TestPipelineGzipInput(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	upload := f.newUpload(t, "fp-gz")
	upload.ObjectKey = "reports/cur.csv.gz"

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(awsCSV))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	reader, err := WrapReader(&buf, upload.ObjectKey)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Run(ctx, upload, reader))

	var count int64
	require.NoError(t, f.db.Model(&factdomain.BillingUsageFact{}).Where("upload_id = ?", upload.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestPipelineEmptyFileFails(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	upload := f.newUpload(t, "fp-empty")

	err := f.pipeline.Run(ctx, upload, strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)

	got, err := f.uploadSvc.GetByID(ctx, "tenant-a", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaddomain.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "no header row")
}

func TestPipelineMalformedRowFails(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	upload := f.newUpload(t, "fp-bad")

	bad := "a,b\n\"unterminated\n"
	err := f.pipeline.Run(ctx, upload, strings.NewReader(bad))
	require.Error(t, err)

	got, err := f.uploadSvc.GetByID(ctx, "tenant-a", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaddomain.StatusFailed, got.Status)
}

func TestPipelineUnmappedColumnsDegradeToNullRefs(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	upload := f.newUpload(t, "fp-generic")

	csv := "mystery_a,mystery_b\nfoo,bar\n"
	require.NoError(t, f.pipeline.Run(ctx, upload, strings.NewReader(csv)))

	var facts []*factdomain.BillingUsageFact
	require.NoError(t, f.db.Where("upload_id = ?", upload.ID).Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, "generic", facts[0].Provider)
	assert.Nil(t, facts[0].ServiceID)
	assert.Nil(t, facts[0].RegionID)
	assert.Zero(t, facts[0].BilledCost)
}

func TestPipelineRejectsForeignTenantContext(t *testing.T) {
	f := newPipelineFixture(t)
	upload := f.newUpload(t, "fp-guard")

	ctx := tenantctx.WithTenantID(context.Background(), "tenant-b")
	err := f.pipeline.Run(ctx, upload, strings.NewReader(awsCSV))
	require.ErrorIs(t, err, ErrTenantMismatch)

	// The guard fires before any status write.
	got, err := f.uploadSvc.GetByID(context.Background(), "tenant-a", upload.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaddomain.StatusPending, got.Status)
}

func TestPipelineBillingPeriodExtendsFromStartOnlyRows(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	upload := f.newUpload(t, "fp-period")

	// The last row has a start past every known end, and no end of its own.
	csv := "lineItem/UnblendedCost,lineItem/UsageStartDate,lineItem/UsageEndDate\n" +
		"1.00,2026-08-01T00:00:00Z,2026-08-02T00:00:00Z\n" +
		"2.00,2026-08-05T00:00:00Z,\n"
	require.NoError(t, f.pipeline.Run(ctx, upload, strings.NewReader(csv)))

	got, err := f.uploadSvc.GetByID(ctx, "tenant-a", upload.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BillingPeriodEnd)
	assert.Equal(t, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC), got.BillingPeriodEnd.UTC())
}

func TestPipelineMappingOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"billed_cost": "TotalSpend"}`), 0o644))

	f := newPipelineFixtureWithConfig(t, config.IngestConfig{FactBatchSize: 100, MappingFile: path})
	ctx := context.Background()
	upload := f.newUpload(t, "fp-override")

	csv := "TotalSpend,lineItem/CurrencyCode\n3.50,USD\n"
	require.NoError(t, f.pipeline.Run(ctx, upload, strings.NewReader(csv)))

	var facts []*factdomain.BillingUsageFact
	require.NoError(t, f.db.Where("upload_id = ?", upload.ID).Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, 3.5, facts[0].BilledCost)
	assert.Equal(t, "USD", facts[0].Currency)
}

func TestPipelineBrokenMappingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	f := newPipelineFixtureWithConfig(t, config.IngestConfig{FactBatchSize: 100, MappingFile: path})
	ctx := context.Background()
	upload := f.newUpload(t, "fp-fallback")

	require.NoError(t, f.pipeline.Run(ctx, upload, strings.NewReader(awsCSV)))

	var count int64
	require.NoError(t, f.db.Model(&factdomain.BillingUsageFact{}).Where("upload_id = ?", upload.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestWrapReaderRejectsCorruptGzip(t *testing.T) {
	_, err := WrapReader(strings.NewReader("not gzip"), "reports/cur.csv.gz")
	assert.Error(t, err)
}
