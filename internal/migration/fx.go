package migration

import (
	"strings"

	"github.com/smallbiznis/costwise/internal/config"
	dimensiondomain "github.com/smallbiznis/costwise/internal/dimension/domain"
	factdomain "github.com/smallbiznis/costwise/internal/fact/domain"
	"github.com/smallbiznis/costwise/internal/poller"
	uploaddomain "github.com/smallbiznis/costwise/internal/upload/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The embedded SQL targets postgres. Other dialects (sqlite for local
		// smoke runs) fall back to AutoMigrate.
		if !strings.EqualFold(cfg.DBType, "postgres") {
			return conn.AutoMigrate(
				&uploaddomain.BillingUpload{},
				&poller.S3Integration{},
				&dimensiondomain.CloudAccount{},
				&dimensiondomain.Service{},
				&dimensiondomain.Region{},
				&dimensiondomain.Sku{},
				&dimensiondomain.Resource{},
				&dimensiondomain.SubAccount{},
				&dimensiondomain.CommitmentDiscount{},
				&factdomain.BillingUsageFact{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
