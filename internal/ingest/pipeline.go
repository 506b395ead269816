// Package ingest runs the per-file billing ingestion pipeline.
package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/clock"
	"github.com/smallbiznis/costwise/internal/config"
	"github.com/smallbiznis/costwise/internal/dimension"
	dimensiondomain "github.com/smallbiznis/costwise/internal/dimension/domain"
	factdomain "github.com/smallbiznis/costwise/internal/fact/domain"
	factrepository "github.com/smallbiznis/costwise/internal/fact/repository"
	"github.com/smallbiznis/costwise/internal/mapping"
	"github.com/smallbiznis/costwise/internal/observability"
	"github.com/smallbiznis/costwise/internal/provider"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	"github.com/smallbiznis/costwise/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrEmptyFile      = errors.New("billing file has no header row")
	ErrTenantMismatch = errors.New("upload does not belong to the calling tenant")
)

type PipelineParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	UploadSvc uploaddomain.Service
	DimRepo   dimensiondomain.Repository
	FactRepo  factrepository.Repository
}

// Pipeline ingests one billing export file end to end: detect provider, map
// headers, collect dimensions, bulk upsert, resolve foreign keys, write facts
// and drive the upload status lifecycle. All per-run state lives on the stack
// of Run; a Pipeline value is safe for concurrent runs.
type Pipeline struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	cfg       config.IngestConfig
	table     mapping.Table
	uploadSvc uploaddomain.Service
	dimRepo   dimensiondomain.Repository
	factRepo  factrepository.Repository
}

func NewPipeline(p PipelineParam) *Pipeline {
	log := p.Log.Named("ingest.pipeline")
	return &Pipeline{
		db:        p.DB,
		log:       log,
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Config.Ingest,
		table:     loadMappingTable(p.Config.Ingest, log),
		uploadSvc: p.UploadSvc,
		dimRepo:   p.DimRepo,
		factRepo:  p.FactRepo,
	}
}

// loadMappingTable lays operator-supplied mapping overrides over the built-in
// dialect table. A broken override file must not take ingestion down, so it
// degrades to the defaults with a warning.
func loadMappingTable(cfg config.IngestConfig, log *zap.Logger) mapping.Table {
	table := mapping.DefaultTable()
	if cfg.MappingFile == "" {
		return table
	}
	overrides, err := mapping.LoadFile(cfg.MappingFile)
	if err != nil {
		log.Warn("mapping override file rejected, using defaults",
			zap.String("path", cfg.MappingFile),
			zap.Error(err),
		)
		return table
	}
	return mapping.Merge(table, overrides)
}

// Run ingests the file behind r for the given upload. The PROCESSING
// transition commits before any fact is written, so a crash mid-run is
// observable as a stuck PROCESSING row rather than silently lost. On success
// the upload lands in COMPLETED, on any error in FAILED; there is no same-run
// retry.
func (p *Pipeline) Run(ctx context.Context, upload *uploaddomain.BillingUpload, r io.Reader) error {
	if tenant, ok := tenantctx.TenantID(ctx); ok && tenant != upload.TenantID {
		return fmt.Errorf("%w: context tenant %s, upload tenant %s",
			ErrTenantMismatch, tenant, upload.TenantID)
	}

	start := p.clock.Now()
	log := p.log.With(
		zap.String("upload_id", upload.ID.String()),
		zap.String("tenant_id", upload.TenantID),
		zap.String("object_key", upload.ObjectKey),
	)

	if _, err := p.uploadSvc.Transition(ctx, upload.ID, uploaddomain.StatusProcessing, ""); err != nil {
		return err
	}

	prov, rowsWritten, err := p.ingest(ctx, upload, r)
	duration := p.clock.Now().Sub(start)

	if err != nil {
		log.Warn("ingestion run failed", zap.Error(err), zap.Duration("duration", duration))
		observability.Ingest().ObserveRun(prov.String(), string(uploaddomain.StatusFailed), duration)
		if _, trErr := p.uploadSvc.Transition(ctx, upload.ID, uploaddomain.StatusFailed, err.Error()); trErr != nil {
			log.Error("failed transition after ingestion error", zap.Error(trErr))
		}
		return err
	}

	if _, err := p.uploadSvc.Transition(ctx, upload.ID, uploaddomain.StatusCompleted, ""); err != nil {
		return err
	}

	observability.Ingest().ObserveRun(prov.String(), string(uploaddomain.StatusCompleted), duration)
	observability.Ingest().AddRows(prov.String(), rowsWritten)
	log.Info("ingestion run completed",
		zap.String("provider", prov.String()),
		zap.Int("rows", rowsWritten),
		zap.Duration("duration", duration),
	)
	return nil
}

func (p *Pipeline) ingest(ctx context.Context, upload *uploaddomain.BillingUpload, r io.Reader) (provider.Provider, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return provider.Generic, 0, ErrEmptyFile
		}
		return provider.Generic, 0, fmt.Errorf("read header row: %w", err)
	}

	prov := provider.Detect(headers)
	resolved := mapping.ResolveHeaders(p.table, headers)

	columnIdx := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, seen := columnIdx[h]; !seen {
			columnIdx[h] = i
		}
	}
	fieldIdx := make(map[string]int, len(resolved))
	for field, rawHeader := range resolved {
		if rawHeader == "" {
			continue
		}
		if idx, ok := columnIdx[rawHeader]; ok {
			fieldIdx[field] = idx
		}
	}

	collector := dimension.NewCollector()
	var mapped []map[string]string

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return prov, 0, fmt.Errorf("read data row: %w", err)
		}

		row := make(map[string]string, len(fieldIdx))
		for field, idx := range fieldIdx {
			if idx < len(record) {
				row[field] = record[idx]
			}
		}
		// Files whose dialect was detected but which carry no provider
		// column inherit the detected provider token.
		if strings.TrimSpace(row[mapping.FieldProvider]) == "" {
			row[mapping.FieldProvider] = prov.String()
		}

		collector.Collect(row)
		mapped = append(mapped, row)
	}

	rowsWritten := 0
	var periodStart, periodEnd *time.Time

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		collected := collector.KeySets()
		now := p.clock.Now()

		// A failed preload degrades to empty maps: the file still lands, with
		// the affected foreign keys left null.
		ids, preloadErr := p.dimRepo.PreloadExisting(ctx, tx, collected)
		if preloadErr != nil {
			p.log.Warn("dimension preload failed, degrading to unattributed rows", zap.Error(preloadErr))
		}

		missing := dimension.MissingRows(collected, ids, p.genID, now)
		if err := p.dimRepo.UpsertMissing(ctx, tx, missing); err != nil {
			return fmt.Errorf("upsert dimensions: %w", err)
		}

		refreshed, reloadErr := p.dimRepo.PreloadExisting(ctx, tx, collected)
		if reloadErr != nil {
			p.log.Warn("dimension reload failed, using generated ids", zap.Error(reloadErr))
			refreshed = dimension.MergeIDs(ids, missing)
		}
		resolver := dimension.NewResolver(refreshed)

		facts := make([]*factdomain.BillingUsageFact, 0, len(mapped))
		for _, row := range mapped {
			fact := p.buildFact(upload, prov, resolver, row, now)
			facts = append(facts, fact)
			periodStart = minTime(periodStart, fact.ChargePeriodStart)
			// A row without an end still extends the period to its start.
			end := fact.ChargePeriodEnd
			if end == nil {
				end = fact.ChargePeriodStart
			}
			periodEnd = maxTime(periodEnd, end)
		}

		if err := p.factRepo.BulkInsert(ctx, tx, facts, p.cfg.FactBatchSize); err != nil {
			return fmt.Errorf("insert facts: %w", err)
		}
		rowsWritten = len(facts)
		return nil
	})
	if err != nil {
		return prov, 0, err
	}

	if periodStart != nil && periodEnd != nil {
		if err := p.uploadSvc.SetBillingPeriod(ctx, upload.ID, *periodStart, *periodEnd); err != nil {
			p.log.Warn("set billing period failed", zap.Error(err))
		}
	}

	return prov, rowsWritten, nil
}

func (p *Pipeline) buildFact(
	upload *uploaddomain.BillingUpload,
	prov provider.Provider,
	resolver *dimension.Resolver,
	row map[string]string,
	now time.Time,
) *factdomain.BillingUsageFact {
	refs := resolver.Resolve(row)

	fact := &factdomain.BillingUsageFact{
		ID:                   p.genID.Generate(),
		TenantID:             upload.TenantID,
		UploadID:             upload.ID,
		Provider:             prov.String(),
		CloudAccountID:       refs.CloudAccountID,
		ServiceID:            refs.ServiceID,
		RegionID:             refs.RegionID,
		SkuID:                refs.SkuID,
		ResourceID:           refs.ResourceID,
		SubAccountID:         refs.SubAccountID,
		CommitmentDiscountID: refs.CommitmentDiscountID,
		BilledCost:           parseFloat(row[mapping.FieldBilledCost]),
		EffectiveCost:        parseFloat(row[mapping.FieldEffectiveCost]),
		UsageAmount:          parseFloat(row[mapping.FieldUsageAmount]),
		UsageUnit:            strings.TrimSpace(row[mapping.FieldUsageUnit]),
		Currency:             strings.TrimSpace(row[mapping.FieldCurrency]),
		ChargeDescription:    strings.TrimSpace(row[mapping.FieldChargeDescription]),
		ChargePeriodStart:    parseTime(row[mapping.FieldChargePeriodStart]),
		ChargePeriodEnd:      parseTime(row[mapping.FieldChargePeriodEnd]),
		CreatedAt:            now,
	}

	if raw := strings.TrimSpace(row[mapping.FieldTags]); raw != "" {
		fact.Tags = parseTags(raw)
	}
	return fact
}

func parseFloat(raw string) float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseTags(raw string) datatypes.JSONMap {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return datatypes.JSONMap(parsed)
	}
	// Non-JSON tag payloads are preserved verbatim.
	return datatypes.JSONMap{"raw": raw}
}

func minTime(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.Before(*current) {
		return candidate
	}
	return current
}

func maxTime(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		return candidate
	}
	return current
}
