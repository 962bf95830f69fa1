package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wildlife-challenge-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeMutator edits a locked UserChallenge and reports whether it changed.
type ChallengeMutator func(uc *models.UserChallenge) (changed bool, err error)

// ChallengeStore persists UserChallenge documents keyed by (user, region).
type ChallengeStore interface {
	Find(ctx context.Context, userID, regionKey string) (*models.UserChallenge, error)
	// ListByUser returns the user's challenges, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]models.UserChallenge, error)
	// Upsert writes uc keyed by (UserID, RegionKey). On conflict only the
	// challenge kinds listed are overwritten; the stored row is returned.
	Upsert(ctx context.Context, uc *models.UserChallenge, kinds []models.ChallengeKind) (*models.UserChallenge, error)
	// UpdateActive runs fn on the user's active challenge under a row lock
	// and saves it when fn reports a change.
	UpdateActive(ctx context.Context, userID string, now time.Time, fn ChallengeMutator) (*models.UserChallenge, error)
	// UpdateByID runs fn on one challenge under a row lock.
	UpdateByID(ctx context.Context, id string, fn ChallengeMutator) error
}

type GormChallengeStore struct {
	DB *gorm.DB
}

func NewGormChallengeStore(db *gorm.DB) *GormChallengeStore {
	return &GormChallengeStore{DB: db}
}

func (s *GormChallengeStore) Find(ctx context.Context, userID, regionKey string) (*models.UserChallenge, error) {
	var uc models.UserChallenge
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND region_key = ?", userID, regionKey).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("challenge for %s in %s: %w", userID, regionKey, ErrNotFound)
		}
		return nil, err
	}
	return &uc, nil
}

func (s *GormChallengeStore) ListByUser(ctx context.Context, userID string) ([]models.UserChallenge, error) {
	var rows []models.UserChallenge
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

func (s *GormChallengeStore) Upsert(ctx context.Context, uc *models.UserChallenge, kinds []models.ChallengeKind) (*models.UserChallenge, error) {
	columns := []string{"region_id", "location", "updated_at"}
	for _, k := range kinds {
		columns = append(columns, string(k))
	}

	db := s.DB.WithContext(ctx)
	if uc.ID != "" {
		// known row: only the regenerated kinds are written
		res := db.Model(&models.UserChallenge{ID: uc.ID}).Select(columns).Updates(uc)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			return s.Find(ctx, uc.UserID, uc.RegionKey)
		}
	}

	uc.ID = uuid.NewString()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "region_key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(uc).Error
	if err != nil {
		return nil, err
	}
	return s.Find(ctx, uc.UserID, uc.RegionKey)
}

func (s *GormChallengeStore) UpdateActive(ctx context.Context, userID string, now time.Time, fn ChallengeMutator) (*models.UserChallenge, error) {
	var result *models.UserChallenge
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.UserChallenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Order("updated_at DESC").
			Find(&rows).Error; err != nil {
			return err
		}

		uc := PickActive(rows, now)
		if uc == nil {
			return fmt.Errorf("active challenge for %s: %w", userID, ErrNotFound)
		}

		changed, err := fn(uc)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Save(uc).Error; err != nil {
				return err
			}
		}
		result = uc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormChallengeStore) UpdateByID(ctx context.Context, id string, fn ChallengeMutator) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var uc models.UserChallenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&uc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("challenge %s: %w", id, ErrNotFound)
			}
			return err
		}

		changed, err := fn(&uc)
		if err != nil || !changed {
			return err
		}
		return tx.Save(&uc).Error
	})
}
