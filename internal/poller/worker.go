package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/costwise/internal/clock"
	"github.com/smallbiznis/costwise/internal/config"
	"github.com/smallbiznis/costwise/internal/ingest"
	"github.com/smallbiznis/costwise/internal/observability"
	"github.com/smallbiznis/costwise/internal/storage/s3"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("poller: missing required dependency")

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Repo      Repository
	UploadSvc uploaddomain.Service
	Pipeline  *ingest.Pipeline
	Stores    s3.Factory
}

// Worker walks every eligible integration each tick, fingerprints new
// objects and ingests them inline. One tick finishes before the next starts;
// a slow file delays polling rather than piling up goroutines.
type Worker struct {
	log       *zap.Logger
	clock     clock.Clock
	cfg       config.PollConfig
	repo      Repository
	uploadSvc uploaddomain.Service
	pipeline  *ingest.Pipeline
	stores    s3.Factory
}

func NewWorker(p Params) (*Worker, error) {
	if p.Log == nil || p.Clock == nil || p.Repo == nil || p.UploadSvc == nil || p.Pipeline == nil || p.Stores == nil {
		return nil, ErrInvalidConfig
	}
	return &Worker{
		log:       p.Log.Named("poller").With(zap.String("component", "poller")),
		clock:     p.Clock,
		cfg:       p.Config.Poll,
		repo:      p.Repo,
		uploadSvc: p.UploadSvc,
		pipeline:  p.Pipeline,
		stores:    p.Stores,
	}, nil
}

func (w *Worker) RunForever(ctx context.Context) {
	for {
		start := w.clock.Now()
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("poll tick failed", zap.Error(err))
		}
		elapsed := w.clock.Now().Sub(start)

		timer := time.NewTimer(SleepFor(w.cfg.Interval, elapsed, w.cfg.MinimumSleep))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

const (
	processingStaleAfter = 2 * time.Hour
	staleSweepBatchSize  = 100
)

func (w *Worker) RunOnce(ctx context.Context) error {
	cutoff := w.clock.Now().Add(-processingStaleAfter)
	if n, err := w.uploadSvc.FailStale(ctx, cutoff, staleSweepBatchSize); err != nil {
		w.log.Warn("stale upload sweep failed", zap.Error(err))
	} else if n > 0 {
		w.log.Info("stale uploads failed", zap.Int("count", n))
	}

	integrations, err := w.repo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list integrations: %w", err)
	}

	eligible := integrations[:0]
	for _, integration := range integrations {
		if integration.Eligible() {
			eligible = append(eligible, integration)
		}
	}
	OrderForPolling(eligible)

	var tickErr error
	for _, integration := range eligible {
		if ctx.Err() != nil {
			return errors.Join(tickErr, ctx.Err())
		}
		if err := w.pollIntegration(ctx, integration); err != nil {
			tickErr = errors.Join(tickErr, err)
			w.log.Warn("integration poll failed",
				zap.String("integration_id", integration.ID),
				zap.String("tenant_id", integration.TenantID),
				zap.String("bucket", integration.Bucket),
				zap.Error(err),
			)
		}
		if err := w.repo.MarkPolled(ctx, integration.ID, w.clock.Now()); err != nil {
			tickErr = errors.Join(tickErr, err)
		}
	}
	return tickErr
}

func (w *Worker) pollIntegration(ctx context.Context, integration S3Integration) error {
	observability.Ingest().IncPollTick(integration.TenantID)

	store, err := w.stores(ctx, s3.ClientConfig{
		Region:   integration.Region,
		RoleARN:  integration.RoleARN,
		PageSize: w.cfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("build object store: %w", err)
	}

	infos, err := store.List(ctx, integration.Bucket, integration.Prefix)
	if err != nil {
		return fmt.Errorf("list %s/%s: %w", integration.Bucket, integration.Prefix, err)
	}

	var pollErr error
	for _, info := range infos {
		if ctx.Err() != nil {
			return errors.Join(pollErr, ctx.Err())
		}
		if !Candidate(info) {
			continue
		}
		if err := w.processObject(ctx, integration, info, store); err != nil {
			pollErr = errors.Join(pollErr, err)
		}
	}
	return pollErr
}

func (w *Worker) processObject(ctx context.Context, integration S3Integration, info s3.ObjectInfo, store s3.ObjectStore) error {
	size, lastModified := info.Size, *info.LastModified

	// Listings can lag behind overwrites; head is authoritative when it
	// disagrees.
	meta, err := store.Head(ctx, integration.Bucket, info.Key)
	if err != nil {
		return fmt.Errorf("head %s: %w", info.Key, err)
	}
	if meta.ContentLength > 0 {
		size = meta.ContentLength
	}
	if meta.LastModified != nil {
		lastModified = *meta.LastModified
	}

	fp := Fingerprint(info.Key, size, lastModified)

	existing, err := w.uploadSvc.FindByFingerprint(ctx, integration.TenantID, fp)
	if err != nil && !errors.Is(err, uploaddomain.ErrNotFound) {
		return fmt.Errorf("lookup fingerprint %s: %w", fp, err)
	}
	if existing != nil {
		observability.Ingest().IncObjectSkipped("duplicate_fingerprint")
		return nil
	}

	upload, err := w.uploadSvc.Create(ctx, uploaddomain.CreateUploadRequest{
		TenantID:    integration.TenantID,
		UploaderID:  "poller:" + integration.ID,
		Bucket:      integration.Bucket,
		ObjectKey:   info.Key,
		Size:        size,
		Fingerprint: fp,
		ObservedAt:  w.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, uploaddomain.ErrDuplicateFingerprint) {
			observability.Ingest().IncObjectSkipped("duplicate_fingerprint")
			return nil
		}
		return fmt.Errorf("create upload for %s: %w", info.Key, err)
	}

	w.log.Info("new billing object discovered",
		zap.String("tenant_id", integration.TenantID),
		zap.String("bucket", integration.Bucket),
		zap.String("object_key", info.Key),
		zap.String("upload_id", upload.ID.String()),
	)

	body, err := store.Open(ctx, integration.Bucket, info.Key)
	if err != nil {
		if _, trErr := w.uploadSvc.Transition(ctx, upload.ID, uploaddomain.StatusFailed, err.Error()); trErr != nil {
			w.log.Error("failed transition after open error", zap.Error(trErr))
		}
		return fmt.Errorf("open %s: %w", info.Key, err)
	}
	defer body.Close()

	reader, err := ingest.WrapReader(body, info.Key)
	if err != nil {
		if _, trErr := w.uploadSvc.Transition(ctx, upload.ID, uploaddomain.StatusFailed, err.Error()); trErr != nil {
			w.log.Error("failed transition after decode error", zap.Error(trErr))
		}
		return err
	}

	return w.pipeline.Run(ctx, upload, reader)
}
