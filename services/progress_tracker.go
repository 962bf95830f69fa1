package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wildlife-challenge-service/models"
	"wildlife-challenge-service/utils"

	"go.uber.org/zap"
)

// RewardLedger credits XP and counts completed challenges.
type RewardLedger interface {
	AwardXP(ctx context.Context, userID string, xp int64, reason string) (*models.UserProgress, error)
	IncrementChallengeCompletions(ctx context.Context, userID string, kind models.ChallengeKind) error
}

// BadgeEvaluator re-checks which achievements a user has unlocked.
type BadgeEvaluator interface {
	AutoAwardBadges(ctx context.Context, userID string) error
}

// ProgressResult describes what a sighting did to the active challenge.
type ProgressResult struct {
	Updated        bool `json:"updated"`
	DailyAdvanced  bool `json:"daily_advanced"`
	WeeklyAdvanced bool `json:"weekly_advanced"`
	DailyComplete  bool `json:"daily_complete"`
	WeeklyComplete bool `json:"weekly_complete"`
}

type ProgressTracker struct {
	Store  ChallengeStore
	Ledger RewardLedger
	Badges BadgeEvaluator
	Now    func() time.Time

	wg sync.WaitGroup
}

func NewProgressTracker(store ChallengeStore, ledger RewardLedger, badges BadgeEvaluator) *ProgressTracker {
	return &ProgressTracker{Store: store, Ledger: ledger, Badges: badges, Now: time.Now}
}

type completion struct {
	challengeID string
	regionKey   string
	userID      string
	kind        models.ChallengeKind
	expiresAt   time.Time
	xp          int64
}

// RecordSighting counts one sighting of animalName toward the user's active
// daily and weekly challenges. Completing a challenge is persisted first;
// XP, counters and badges are settled afterwards in the background and
// their failures are only logged.
func (t *ProgressTracker) RecordSighting(ctx context.Context, userID, animalName string) (ProgressResult, error) {
	var (
		res         ProgressResult
		completions []completion
	)
	now := t.Now()

	_, err := t.Store.UpdateActive(ctx, userID, now, func(uc *models.UserChallenge) (bool, error) {
		res = ProgressResult{}
		completions = completions[:0]

		for _, kind := range []models.ChallengeKind{models.ChallengeDaily, models.ChallengeWeekly} {
			inst := uc.Instance(kind)
			advanced, completed := advance(inst, animalName, now)
			if !advanced {
				continue
			}
			res.Updated = true
			if kind == models.ChallengeDaily {
				res.DailyAdvanced, res.DailyComplete = true, completed
			} else {
				res.WeeklyAdvanced, res.WeeklyComplete = true, completed
			}
			if completed {
				completions = append(completions, completion{
					challengeID: uc.ID,
					regionKey:   uc.RegionKey,
					userID:      uc.UserID,
					kind:        kind,
					expiresAt:   inst.ExpiresAt,
					xp:          inst.XPPotential,
				})
			}
		}
		return res.Updated, nil
	})
	if errors.Is(err, ErrNotFound) {
		return ProgressResult{}, nil
	}
	if err != nil {
		return ProgressResult{}, err
	}

	for _, c := range completions {
		utils.Logger.Info("🏁 [PROGRESS] challenge completed",
			zap.String("user_id", c.userID),
			zap.String("kind", string(c.kind)),
			zap.Int64("xp", c.xp))
		t.dispatch(ctx, c)
	}
	return res, nil
}

// advance bumps the first unfinished task named animalName. It reports
// whether a task moved and whether that finished the whole challenge.
func advance(inst *models.ChallengeInstance, animalName string, now time.Time) (advanced, completed bool) {
	if inst == nil || inst.Completed || IsExpired(inst, now) {
		return false, false
	}

	target := foldName(animalName)
	for i := range inst.Animals {
		task := &inst.Animals[i]
		if task.Progress < task.Count && foldName(task.Name) == target {
			task.Progress++
			advanced = true
			break
		}
	}
	if !advanced {
		return false, false
	}

	if inst.AllDone() {
		at := now
		inst.Completed = true
		inst.CompletedAt = &at
		return true, true
	}
	return true, false
}

func (t *ProgressTracker) dispatch(ctx context.Context, c completion) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				utils.Logger.Error("[PROGRESS] reward dispatch panicked",
					zap.String("user_id", c.userID), zap.Any("panic", r))
			}
		}()
		t.settle(ctx, c)
	}()
}

func (t *ProgressTracker) settle(ctx context.Context, c completion) {
	log := utils.Logger.With(
		zap.String("user_id", c.userID),
		zap.String("challenge_id", c.challengeID),
		zap.String("kind", string(c.kind)))

	reason := fmt.Sprintf("%s_challenge_%s", c.kind, c.regionKey)
	if _, err := t.Ledger.AwardXP(ctx, c.userID, c.xp, reason); err != nil {
		log.Warn("[PROGRESS] XP award failed", zap.Error(err))
	} else if err := t.Store.UpdateByID(ctx, c.challengeID, markAwarded(c)); err != nil {
		log.Warn("[PROGRESS] failed to record awarded XP", zap.Error(err))
	}

	if err := t.Ledger.IncrementChallengeCompletions(ctx, c.userID, c.kind); err != nil {
		log.Warn("[PROGRESS] completion counter failed", zap.Error(err))
	}
	if t.Badges != nil {
		if err := t.Badges.AutoAwardBadges(ctx, c.userID); err != nil {
			log.Warn("[PROGRESS] badge evaluation failed", zap.Error(err))
		}
	}
}

// markAwarded sets XPAwarded once, and only on the same completed instance
// (it may have been regenerated since).
func markAwarded(c completion) ChallengeMutator {
	return func(uc *models.UserChallenge) (bool, error) {
		inst := uc.Instance(c.kind)
		if inst == nil || !inst.Completed || !inst.ExpiresAt.Equal(c.expiresAt) || inst.XPAwarded != 0 {
			return false, nil
		}
		inst.XPAwarded = c.xp
		return true, nil
	}
}

// Wait blocks until in-flight reward dispatches finish.
func (t *ProgressTracker) Wait() {
	t.wg.Wait()
}
