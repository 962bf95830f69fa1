package services

import (
	"context"
	"errors"
	"fmt"

	"wildlife-challenge-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ManifestStore persists one Region (and its manifest) per region key.
type ManifestStore interface {
	FindByKey(ctx context.Context, regionKey string) (*models.Region, error)
	// FindNear returns the region whose center is closest to (lat, lng) among
	// those within threshold degrees on both axes.
	FindNear(ctx context.Context, lat, lng, threshold float64) (*models.Region, error)
	// CreateIfAbsent inserts region unless its key already exists, in which
	// case the stored row is returned with created=false.
	CreateIfAbsent(ctx context.Context, region *models.Region) (stored *models.Region, created bool, err error)
	DeleteByKey(ctx context.Context, regionKey string) error
}

type GormManifestStore struct {
	DB *gorm.DB
}

func NewGormManifestStore(db *gorm.DB) *GormManifestStore {
	return &GormManifestStore{DB: db}
}

func (s *GormManifestStore) FindByKey(ctx context.Context, regionKey string) (*models.Region, error) {
	var region models.Region
	if err := s.DB.WithContext(ctx).Where("region_key = ?", regionKey).First(&region).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("region %q: %w", regionKey, ErrNotFound)
		}
		return nil, err
	}
	return &region, nil
}

func (s *GormManifestStore) FindNear(ctx context.Context, lat, lng, threshold float64) (*models.Region, error) {
	var region models.Region
	err := s.DB.WithContext(ctx).
		Where("center_lat BETWEEN ? AND ?", lat-threshold, lat+threshold).
		Where("center_lng BETWEEN ? AND ?", lng-threshold, lng+threshold).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "ABS(center_lat - ?) + ABS(center_lng - ?)",
			Vars:               []interface{}{lat, lng},
			WithoutParentheses: true,
		}}).
		Take(&region).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("region near %.4f,%.4f: %w", lat, lng, ErrNotFound)
		}
		return nil, err
	}
	return &region, nil
}

func (s *GormManifestStore) CreateIfAbsent(ctx context.Context, region *models.Region) (*models.Region, bool, error) {
	if region.ID == "" {
		region.ID = uuid.NewString()
	}

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "region_key"}},
			DoNothing: true,
		}).
		Create(region)
	if res.Error != nil {
		return nil, false, res.Error
	}

	if res.RowsAffected == 0 {
		// lost the race: someone else created this key first
		existing, err := s.FindByKey(ctx, region.RegionKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return region, true, nil
}

func (s *GormManifestStore) DeleteByKey(ctx context.Context, regionKey string) error {
	return s.DB.WithContext(ctx).Where("region_key = ?", regionKey).Delete(&models.Region{}).Error
}
