package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"wildlife-challenge-service/models"
	"wildlife-challenge-service/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
// e.g., xpForNextLevel(1) = XP to go from L1 → L2
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BaseXPPerLevel * n^1.2)
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// LevelForXP returns the level reached with totalXP accumulated from level 1.
func LevelForXP(totalXP int64) int {
	level := 1
	needed := xpForNextLevel(level)
	for totalXP >= needed {
		level++
		needed += xpForNextLevel(level)
	}
	return level
}

// RankThresholds: levels required before rank-up
var RankThresholds = map[int]int{ // rank → min level
	1: 1,  // Rookie
	2: 5,  // Tracker
	3: 15, // Ranger
	4: 30, // Warden
	5: 50, // Naturalist
}

func determineRank(level int) int {
	for rank := 5; rank >= 1; rank-- {
		if level >= RankThresholds[rank] {
			return rank
		}
	}
	return 1
}

// ProgressionService is the XP ledger challenges pay into.
type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(ctx context.Context, externalUserID string) (*models.UserProgress, error) {
	var prog *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProgress(tx, externalUserID)
		prog = p
		return err
	})
	return prog, err
}

// lockProgress loads (creating if needed) the user's row under FOR UPDATE.
func lockProgress(tx *gorm.DB, externalUserID string) (*models.UserProgress, error) {
	fresh := models.UserProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Level:          1,
		Rank:           1,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}

	var prog models.UserProgress
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ?", externalUserID).
		First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("progress record for %s: %w", externalUserID, ErrNotFound)
		}
		return nil, err
	}
	return &prog, nil
}

// AwardXP atomically updates XP, level and rank, returning the updated progress.
func (s *ProgressionService) AwardXP(ctx context.Context, externalUserID string, xp int64, reason string) (*models.UserProgress, error) {
	var updated *models.UserProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prog, err := lockProgress(tx, externalUserID)
		if err != nil {
			return err
		}

		now := time.Now()
		prog.TotalXP += xp

		if level := LevelForXP(prog.TotalXP); level > prog.Level {
			prog.Level = level
			prog.LastLevelUpAt = &now
		}
		if rank := determineRank(prog.Level); rank > prog.Rank {
			prog.Rank = rank
			prog.LastRankUpAt = &now
		}

		if err := tx.Save(prog).Error; err != nil {
			return err
		}
		updated = prog
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("🎮 XP Awarded",
		zap.String("user_id", externalUserID),
		zap.Int64("xp", xp),
		zap.Int64("total_xp", updated.TotalXP),
		zap.Int("level", updated.Level),
		zap.Int("rank", updated.Rank),
		zap.String("reason", reason))
	return updated, nil
}

// IncrementChallengeCompletions bumps the user's completion counters.
func (s *ProgressionService) IncrementChallengeCompletions(ctx context.Context, externalUserID string, kind models.ChallengeKind) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prog, err := lockProgress(tx, externalUserID)
		if err != nil {
			return err
		}

		now := time.Now()
		prog.TotalChallenges++
		switch kind {
		case models.ChallengeDaily:
			prog.DailyCompleted++
		case models.ChallengeWeekly:
			prog.WeeklyCompleted++
		}
		prog.LastChallengeAt = &now
		return tx.Save(prog).Error
	})
}

// GetProgress returns the user's progress, creating an empty record if needed.
func (s *ProgressionService) GetProgress(ctx context.Context, externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", externalUserID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.EnsureProgressRecord(ctx, externalUserID)
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}
