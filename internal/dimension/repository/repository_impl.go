package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/dimension/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) PreloadExisting(ctx context.Context, db *gorm.DB, keys domain.KeySets) (domain.IDMaps, error) {
	maps := domain.IDMaps{
		CloudAccounts:       make(map[string]snowflake.ID),
		Services:            make(map[string]snowflake.ID),
		Regions:             make(map[string]snowflake.ID),
		Skus:                make(map[string]snowflake.ID),
		Resources:           make(map[string]snowflake.ID),
		SubAccounts:         make(map[string]snowflake.ID),
		CommitmentDiscounts: make(map[string]snowflake.ID),
	}

	if len(keys.CloudAccounts) > 0 {
		var conds *gorm.DB
		for _, k := range keys.CloudAccounts {
			cond := db.Where("provider = ? AND billing_account_id = ?", k.Provider, k.BillingAccountID)
			if conds == nil {
				conds = cond
			} else {
				conds = conds.Or(cond)
			}
		}
		var rows []domain.CloudAccount
		if err := db.WithContext(ctx).Model(&domain.CloudAccount{}).Where(conds).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.CloudAccounts[row.NaturalKey()] = row.ID
		}
	}

	if len(keys.Services) > 0 {
		var conds *gorm.DB
		for _, k := range keys.Services {
			cond := db.Where("provider = ? AND name = ?", k.Provider, k.Name)
			if conds == nil {
				conds = cond
			} else {
				conds = conds.Or(cond)
			}
		}
		var rows []domain.Service
		if err := db.WithContext(ctx).Model(&domain.Service{}).Where(conds).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.Services[row.NaturalKey()] = row.ID
		}
	}

	if len(keys.Regions) > 0 {
		var conds *gorm.DB
		for _, k := range keys.Regions {
			cond := db.Where("provider = ? AND region_id = ?", k.Provider, k.RegionID)
			if conds == nil {
				conds = cond
			} else {
				conds = conds.Or(cond)
			}
		}
		var rows []domain.Region
		if err := db.WithContext(ctx).Model(&domain.Region{}).Where(conds).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.Regions[row.NaturalKey()] = row.ID
		}
	}

	if len(keys.Skus) > 0 {
		ids := make([]string, 0, len(keys.Skus))
		for _, k := range keys.Skus {
			ids = append(ids, k.SkuID)
		}
		var rows []domain.Sku
		if err := db.WithContext(ctx).Where("sku_id IN ?", ids).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.Skus[row.SkuID] = row.ID
		}
	}

	if len(keys.Resources) > 0 {
		ids := make([]string, 0, len(keys.Resources))
		for _, k := range keys.Resources {
			ids = append(ids, k.ResourceID)
		}
		var rows []domain.Resource
		if err := db.WithContext(ctx).Where("resource_id IN ?", ids).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.Resources[row.ResourceID] = row.ID
		}
	}

	if len(keys.SubAccounts) > 0 {
		ids := make([]string, 0, len(keys.SubAccounts))
		for _, k := range keys.SubAccounts {
			ids = append(ids, k.SubAccountID)
		}
		var rows []domain.SubAccount
		if err := db.WithContext(ctx).Where("sub_account_id IN ?", ids).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.SubAccounts[row.SubAccountID] = row.ID
		}
	}

	if len(keys.CommitmentDiscounts) > 0 {
		ids := make([]string, 0, len(keys.CommitmentDiscounts))
		for _, k := range keys.CommitmentDiscounts {
			ids = append(ids, k.DiscountID)
		}
		var rows []domain.CommitmentDiscount
		if err := db.WithContext(ctx).Where("discount_id IN ?", ids).Find(&rows).Error; err != nil {
			return maps, err
		}
		for _, row := range rows {
			maps.CommitmentDiscounts[row.DiscountID] = row.ID
		}
	}

	return maps, nil
}

func (r *repo) UpsertMissing(ctx context.Context, db *gorm.DB, rows domain.KeySets) error {
	if len(rows.CloudAccounts) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "billing_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
		}).Create(&rows.CloudAccounts).Error
		if err != nil {
			return err
		}
	}
	if len(rows.Services) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "updated_at"}),
		}).Create(&rows.Services).Error
		if err != nil {
			return err
		}
	}
	if len(rows.Regions) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "region_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&rows.Regions).Error
		if err != nil {
			return err
		}
	}
	if len(rows.Skus) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_id", "updated_at"}),
		}).Create(&rows.Skus).Error
		if err != nil {
			return err
		}
	}
	if len(rows.Resources) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "type", "updated_at"}),
		}).Create(&rows.Resources).Error
		if err != nil {
			return err
		}
	}
	if len(rows.SubAccounts) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sub_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&rows.SubAccounts).Error
		if err != nil {
			return err
		}
	}
	if len(rows.CommitmentDiscounts) > 0 {
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "discount_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
		}).Create(&rows.CommitmentDiscounts).Error
		if err != nil {
			return err
		}
	}
	return nil
}
