package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wildlife-challenge-service/models"
	"wildlife-challenge-service/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// SeedBadgeTypes upserts models.BadgeTriggers by code.
func (s *BadgeService) SeedBadgeTypes(ctx context.Context) error {
	for _, trigger := range models.BadgeTriggers {
		bt := trigger
		bt.ID = uuid.NewString()
		err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rarity", "threshold"}),
		}).Create(&bt).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// AutoAwardBadges checks all badge triggers for a user after a progress update
func (s *BadgeService) AutoAwardBadges(ctx context.Context, externalUserID string) error {
	db := s.DB.WithContext(ctx)

	var prog models.UserProgress
	if err := db.Where("external_user_id = ?", externalUserID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // nothing earned yet
		}
		return err
	}

	var types []models.BadgeType
	if err := db.Find(&types).Error; err != nil {
		return err
	}

	for _, bt := range types {
		if !meetsThreshold(&prog, bt.Threshold) {
			continue
		}

		meta, err := json.Marshal(map[string]int64{
			"level":            int64(prog.Level),
			"total_challenges": prog.TotalChallenges,
		})
		if err != nil {
			return fmt.Errorf("badge metadata: %w", err)
		}
		userBadge := models.UserBadge{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			BadgeTypeID:    bt.ID,
			Metadata:       datatypes.JSON(meta),
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&userBadge)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			utils.Logger.Info("🎖️ Badge awarded",
				zap.String("badge", bt.Name),
				zap.String("user_id", externalUserID))
		}
	}
	return nil
}

// ListUserBadges returns the badges a user holds with their type.
func (s *BadgeService) ListUserBadges(ctx context.Context, externalUserID string) ([]UserBadgeView, error) {
	var out []UserBadgeView
	err := s.DB.WithContext(ctx).
		Table("user_badges").
		Select("user_badges.id, user_badges.badge_type_id, badge_types.code, badge_types.name, badge_types.description, badge_types.icon_url, badge_types.rarity, user_badges.awarded_at").
		Joins("JOIN badge_types ON badge_types.id = user_badges.badge_type_id").
		Where("user_badges.external_user_id = ?", externalUserID).
		Order("user_badges.awarded_at DESC").
		Scan(&out).Error
	return out, err
}

type UserBadgeView struct {
	ID          string    `json:"id"`
	BadgeTypeID string    `json:"badge_type_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url"`
	Rarity      string    `json:"rarity"`
	AwardedAt   time.Time `json:"awarded_at"`
}

func meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case "total_challenges":
			if prog.TotalChallenges < required {
				return false
			}
		case "daily_completed":
			if prog.DailyCompleted < required {
				return false
			}
		case "weekly_completed":
			if prog.WeeklyCompleted < required {
				return false
			}
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "rank":
			if int64(prog.Rank) < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}
