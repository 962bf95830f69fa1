package services

import (
	"context"
	"errors"
	"time"

	"wildlife-challenge-service/models"
	"wildlife-challenge-service/utils"

	"go.uber.org/zap"
)

// RegionSource resolves coordinates to a region with a manifest.
type RegionSource interface {
	Resolve(ctx context.Context, lat, lng float64) (*models.Region, error)
}

type ChallengeService struct {
	Regions  RegionSource
	Store    ChallengeStore
	Rand     RandomSource
	Now      func() time.Time
	Location *time.Location // calendar used for day/week boundaries
}

func NewChallengeService(regions RegionSource, store ChallengeStore, rng RandomSource, loc *time.Location) *ChallengeService {
	if rng == nil {
		rng = NewRandomSource()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ChallengeService{Regions: regions, Store: store, Rand: rng, Now: time.Now, Location: loc}
}

func (s *ChallengeService) now() time.Time {
	return s.Now().In(s.Location)
}

// EndOfDay is 23:59:59.999 on t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// EndOfWeek is 23:59:59.999 on the next Sunday after t's day. A challenge
// created on a Sunday runs until the following Sunday.
func EndOfWeek(t time.Time) time.Time {
	days := 7 - int(t.Weekday())
	return EndOfDay(t.AddDate(0, 0, days))
}

// IsExpired reports whether inst must be regenerated: absent, or past its
// expiry at now.
func IsExpired(inst *models.ChallengeInstance, now time.Time) bool {
	return inst == nil || inst.ExpiresAt.Before(now)
}

// PickActive returns the first challenge in rows with an unexpired daily or
// weekly instance. rows are expected most recently updated first.
func PickActive(rows []models.UserChallenge, now time.Time) *models.UserChallenge {
	for i := range rows {
		if !IsExpired(rows[i].Daily, now) || !IsExpired(rows[i].Weekly, now) {
			return &rows[i]
		}
	}
	return nil
}

// NewChallengeInstance freezes a selection into a fresh challenge.
func NewChallengeInstance(selection []Selection, expiresAt time.Time) *models.ChallengeInstance {
	tasks := make([]models.AnimalTask, 0, len(selection))
	for _, sel := range selection {
		tasks = append(tasks, models.AnimalTask{
			Name:        sel.Name,
			Probability: sel.Probability,
			Count:       sel.Count,
			Progress:    0,
		})
	}
	return &models.ChallengeInstance{
		Animals:     tasks,
		ExpiresAt:   expiresAt,
		Completed:   false,
		XPPotential: XPPotential(selection),
	}
}

// GetOrCreate returns the user's challenges for the region containing
// (lat, lng), regenerating the daily and weekly instances independently
// when they are missing or expired. When neither needs regeneration nothing
// is written unless the region was regenerated under the same key.
func (s *ChallengeService) GetOrCreate(ctx context.Context, userID string, lat, lng float64) (*models.UserChallenge, error) {
	region, err := s.Regions.Resolve(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	existing, err := s.Store.Find(ctx, userID, region.RegionKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now()
	uc := &models.UserChallenge{
		UserID:    userID,
		RegionKey: region.RegionKey,
		RegionID:  region.ID,
		Location:  region.Location,
	}
	if existing != nil {
		uc.ID = existing.ID
		uc.Daily = existing.Daily
		uc.Weekly = existing.Weekly
	}

	var kinds []models.ChallengeKind
	if IsExpired(uc.Daily, now) {
		uc.Daily = NewChallengeInstance(SelectDaily(region.Manifest, s.Rand), EndOfDay(now))
		kinds = append(kinds, models.ChallengeDaily)
	}
	if IsExpired(uc.Weekly, now) {
		uc.Weekly = NewChallengeInstance(SelectWeekly(region.Manifest, s.Rand), EndOfWeek(now))
		kinds = append(kinds, models.ChallengeWeekly)
	}

	if len(kinds) == 0 && existing.RegionID == region.ID {
		return existing, nil
	}

	// with no kinds only region_id and location are written
	stored, err := s.Store.Upsert(ctx, uc, kinds)
	if err != nil {
		return nil, err
	}

	if len(kinds) > 0 {
		utils.Logger.Info("[CHALLENGE] regenerated",
			zap.String("user_id", userID),
			zap.String("region_key", region.RegionKey),
			zap.Any("kinds", kinds))
	}
	return stored, nil
}

// GetActive returns the user's current challenge with expired instances
// cleared, or nil when nothing is active. It never writes or resolves regions.
func (s *ChallengeService) GetActive(ctx context.Context, userID string) (*models.UserChallenge, error) {
	rows, err := s.Store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := PickActive(rows, now)
	if active == nil {
		return nil, nil
	}

	out := *active
	if IsExpired(out.Daily, now) {
		out.Daily = nil
	}
	if IsExpired(out.Weekly, now) {
		out.Weekly = nil
	}
	return &out, nil
}

// RegionPreview is a sample of what a region's challenges look like.
type RegionPreview struct {
	Daily        []Selection `json:"daily"`
	DailyXP      int64       `json:"daily_xp_potential"`
	Weekly       []Selection `json:"weekly"`
	WeeklyXP     int64       `json:"weekly_xp_potential"`
	ManifestSize int         `json:"manifest_size"`
}

// Preview runs both selectors against region's manifest without persisting.
func (s *ChallengeService) Preview(region *models.Region) RegionPreview {
	daily := SelectDaily(region.Manifest, s.Rand)
	weekly := SelectWeekly(region.Manifest, s.Rand)
	return RegionPreview{
		Daily:        daily,
		DailyXP:      XPPotential(daily),
		Weekly:       weekly,
		WeeklyXP:     XPPotential(weekly),
		ManifestSize: len(region.Manifest),
	}
}
