package models

import (
	"time"

	"gorm.io/datatypes"
)

// BadgeType: static config (seeded from BadgeTriggers)
type BadgeType struct {
	ID          string           `gorm:"primaryKey;type:uuid"`
	Code        string           `gorm:"uniqueIndex;not null"` // e.g., "FIRST_CHALLENGE", "WEEKLY_10"
	Name        string           `gorm:"not null"`
	Description string
	IconURL     string           `gorm:"type:text"`
	Rarity      string           `gorm:"type:varchar(16);default:'common'"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"serializer:json"`                   // e.g., {"weekly_completed": 10}
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
}

// UserBadge: awarded instance (many-to-many)
type UserBadge struct {
	ID             string         `gorm:"primaryKey;type:uuid"`
	ExternalUserID string         `gorm:"uniqueIndex:idx_user_badge;not null"`
	BadgeTypeID    string         `gorm:"uniqueIndex:idx_user_badge;not null"`
	AwardedAt      time.Time      `gorm:"autoCreateTime"`
	Metadata       datatypes.JSON // e.g., {"level": 12, "total_challenges": 5}
}

// BadgeTriggers are the challenge badges evaluated after every completion.
var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_CHALLENGE",
		Name:        "First Tracks",
		Description: "Completed your first challenge",
		Rarity:      "common",
		Threshold:   map[string]int64{"total_challenges": 1},
	},
	{
		Code:        "DAILY_7",
		Name:        "Early Riser",
		Description: "Completed 7 daily challenges",
		Rarity:      "common",
		Threshold:   map[string]int64{"daily_completed": 7},
	},
	{
		Code:        "DAILY_30",
		Name:        "Field Regular",
		Description: "Completed 30 daily challenges",
		Rarity:      "rare",
		Threshold:   map[string]int64{"daily_completed": 30},
	},
	{
		Code:        "WEEKLY_1",
		Name:        "Week in the Wild",
		Description: "Completed your first weekly challenge",
		Rarity:      "common",
		Threshold:   map[string]int64{"weekly_completed": 1},
	},
	{
		Code:        "WEEKLY_10",
		Name:        "Seasoned Spotter",
		Description: "Completed 10 weekly challenges",
		Rarity:      "epic",
		Threshold:   map[string]int64{"weekly_completed": 10},
	},
	{
		Code:        "LEVEL_25",
		Name:        "Trail Veteran",
		Description: "Reached Level 25",
		Rarity:      "epic",
		Threshold:   map[string]int64{"level": 25},
	},
}
