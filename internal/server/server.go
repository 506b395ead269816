// Package server exposes the HTTP ingestion and upload-management surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/costwise/internal/cache"
	"github.com/smallbiznis/costwise/internal/clock"
	"github.com/smallbiznis/costwise/internal/config"
	factrepository "github.com/smallbiznis/costwise/internal/fact/repository"
	"github.com/smallbiznis/costwise/internal/ingest"
	"github.com/smallbiznis/costwise/internal/observability"
	"github.com/smallbiznis/costwise/internal/storage/s3"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke((*Server).RegisterRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.GinTracingMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Engine    *gin.Engine
	Log       *zap.Logger
	DB        *gorm.DB
	Clock     clock.Clock
	Config    config.Config
	UploadSvc uploaddomain.Service
	FactRepo  factrepository.Repository
	Pipeline  *ingest.Pipeline
	Overview  *cache.OverviewCache
	Stores    s3.Factory
}

type Server struct {
	engine    *gin.Engine
	log       *zap.Logger
	db        *gorm.DB
	clock     clock.Clock
	cfg       config.Config
	uploadSvc uploaddomain.Service
	factRepo  factrepository.Repository
	pipeline  *ingest.Pipeline
	overview  *cache.OverviewCache
	stores    s3.Factory
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:    p.Engine,
		log:       p.Log.Named("http"),
		db:        p.DB,
		clock:     p.Clock,
		cfg:       p.Config,
		uploadSvc: p.UploadSvc,
		factRepo:  p.FactRepo,
		pipeline:  p.Pipeline,
		overview:  p.Overview,
		stores:    p.Stores,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/ingest/s3-events", s.handleS3Event)
	v1.GET("/uploads", s.handleListUploads)
	v1.GET("/uploads/:id", s.handleGetUpload)
	v1.POST("/uploads/:id/retry", s.handleRetryUpload)
	v1.GET("/overview", s.handleOverview)
}
