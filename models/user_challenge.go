package models

import "time"

type ChallengeKind string

const (
	ChallengeDaily  ChallengeKind = "daily"
	ChallengeWeekly ChallengeKind = "weekly"
)

// AnimalTask is one "spot this animal N times" goal inside a challenge.
type AnimalTask struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
	Count       int    `json:"count"`
	Progress    int    `json:"progress"`
}

// Done reports whether the task reached its required count.
func (t AnimalTask) Done() bool {
	return t.Progress >= t.Count
}

// ChallengeInstance is a daily or weekly set of tasks. Completed is only ever
// flipped to true, and only when every task is done.
type ChallengeInstance struct {
	Animals     []AnimalTask `json:"animals"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Completed   bool         `json:"completed"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	XPPotential int64        `json:"xp_potential"`
	XPAwarded   int64        `json:"xp_awarded"`
}

// AllDone reports whether every task reached its count. An instance without
// tasks is never considered done.
func (c *ChallengeInstance) AllDone() bool {
	if c == nil || len(c.Animals) == 0 {
		return false
	}
	for _, a := range c.Animals {
		if !a.Done() {
			return false
		}
	}
	return true
}

// UserChallenge holds a user's current daily and weekly challenge for one region.
type UserChallenge struct {
	ID        string             `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string             `gorm:"uniqueIndex:idx_user_region;not null" json:"user_id"`
	RegionKey string             `gorm:"uniqueIndex:idx_user_region;not null" json:"region_key"`
	RegionID  string             `gorm:"type:uuid;index" json:"region_id"`
	Location  string             `json:"location"`
	Daily     *ChallengeInstance `gorm:"serializer:json" json:"daily"`
	Weekly    *ChallengeInstance `gorm:"serializer:json" json:"weekly"`
	CreatedAt time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// Instance returns the challenge of the given kind (nil when absent).
func (u *UserChallenge) Instance(kind ChallengeKind) *ChallengeInstance {
	if kind == ChallengeWeekly {
		return u.Weekly
	}
	return u.Daily
}
