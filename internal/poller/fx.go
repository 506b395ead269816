package poller

import (
	"context"

	"github.com/smallbiznis/costwise/internal/config"
	"github.com/smallbiznis/costwise/internal/storage/s3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("poller",
	fx.Provide(ProvideRepository),
	fx.Provide(ProvideStoreFactory),
	fx.Provide(NewWorker),
	fx.Invoke(StartWorker),
)

func ProvideStoreFactory(log *zap.Logger) s3.Factory {
	return func(ctx context.Context, cfg s3.ClientConfig) (s3.ObjectStore, error) {
		return s3.NewAWSStore(ctx, cfg, log)
	}
}

func StartWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker) {
	if !cfg.Poll.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
