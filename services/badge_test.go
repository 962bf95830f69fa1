package services

import (
	"context"
	"encoding/json"
	"testing"

	"wildlife-challenge-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func badgeCodes(views []UserBadgeView) []string {
	codes := make([]string, 0, len(views))
	for _, v := range views {
		codes = append(codes, v.Code)
	}
	return codes
}

func TestBadgeAutoAward(t *testing.T) {
	db := newTestDB(t)
	badges := NewBadgeService(db)
	progression := NewProgressionService(db)
	ctx := context.Background()

	require.NoError(t, badges.SeedBadgeTypes(ctx))
	require.NoError(t, badges.SeedBadgeTypes(ctx), "seeding is idempotent")

	var count int64
	require.NoError(t, db.Model(&models.BadgeType{}).Count(&count).Error)
	assert.Equal(t, int64(len(models.BadgeTriggers)), count)

	// no progress yet
	require.NoError(t, badges.AutoAwardBadges(ctx, "user-1"))
	views, err := badges.ListUserBadges(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, views)

	require.NoError(t, progression.IncrementChallengeCompletions(ctx, "user-1", models.ChallengeWeekly))
	require.NoError(t, badges.AutoAwardBadges(ctx, "user-1"))
	require.NoError(t, badges.AutoAwardBadges(ctx, "user-1"))

	views, err = badges.ListUserBadges(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"FIRST_CHALLENGE", "WEEKLY_1"}, badgeCodes(views))
	for _, v := range views {
		assert.False(t, v.AwardedAt.IsZero())
	}

	prog, err := progression.GetProgress(ctx, "user-1")
	require.NoError(t, err)
	var held []models.UserBadge
	require.NoError(t, db.Where("external_user_id = ?", "user-1").Find(&held).Error)
	require.NotEmpty(t, held)
	for _, ub := range held {
		var meta map[string]int64
		require.NoError(t, json.Unmarshal(ub.Metadata, &meta))
		assert.Equal(t, map[string]int64{
			"level":            int64(prog.Level),
			"total_challenges": 1,
		}, meta)
	}
}

func TestMeetsThreshold(t *testing.T) {
	prog := &models.UserProgress{Level: 12, Rank: 2, TotalChallenges: 8, DailyCompleted: 7, WeeklyCompleted: 1}

	assert.True(t, meetsThreshold(prog, map[string]int64{"daily_completed": 7}))
	assert.True(t, meetsThreshold(prog, map[string]int64{"level": 10, "total_challenges": 8}))
	assert.False(t, meetsThreshold(prog, map[string]int64{"level": 10, "weekly_completed": 2}))
	assert.False(t, meetsThreshold(prog, map[string]int64{"rank": 3}))
	assert.False(t, meetsThreshold(prog, map[string]int64{"bounties": 1}))
	assert.False(t, meetsThreshold(prog, nil))
}
