package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"wildlife-challenge-service/models"

	"github.com/google/uuid"
)

// seqRand replays fixed values; exhausted sequences yield zero.
type seqRand struct {
	floats []float64
	ints   []int
}

func (s *seqRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *seqRand) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

type fakeGeocoder struct {
	mu    sync.Mutex
	addrs map[string]*Address
	err   error
	calls int
}

func coordKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	addr, ok := g.addrs[coordKey(lat, lng)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown coordinate", ErrGeocode)
	}
	return addr, nil
}

type fakeOracle struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
}

func (o *fakeOracle) Complete(ctx context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.prompts = append(o.prompts, prompt)
	return o.reply, o.err
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type fakeCatalog struct {
	names []string
	err   error
}

func (c *fakeCatalog) ListCatalogNames(ctx context.Context) ([]string, error) {
	return c.names, c.err
}

// memManifestStore is an in-memory ManifestStore.
type memManifestStore struct {
	mu      sync.Mutex
	regions map[string]*models.Region
	creates int
}

func newMemManifestStore() *memManifestStore {
	return &memManifestStore{regions: map[string]*models.Region{}}
}

func (s *memManifestStore) FindByKey(ctx context.Context, key string) (*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[key]
	if !ok {
		return nil, fmt.Errorf("region %q: %w", key, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *memManifestStore) FindNear(ctx context.Context, lat, lng, threshold float64) (*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Region
	bestDist := math.Inf(1)
	for _, r := range s.regions {
		dLat, dLng := math.Abs(r.CenterLat-lat), math.Abs(r.CenterLng-lng)
		if dLat > threshold || dLng > threshold {
			continue
		}
		if d := dLat + dLng; d < bestDist {
			best, bestDist = r, d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("region near: %w", ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (s *memManifestStore) CreateIfAbsent(ctx context.Context, region *models.Region) (*models.Region, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.regions[region.RegionKey]; ok {
		cp := *existing
		return &cp, false, nil
	}
	if region.ID == "" {
		region.ID = uuid.NewString()
	}
	cp := *region
	s.regions[region.RegionKey] = &cp
	s.creates++
	return region, true, nil
}

func (s *memManifestStore) DeleteByKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regions, key)
	return nil
}

// memChallengeStore is an in-memory ChallengeStore. Rows are cloned so
// callers never alias stored state.
type memChallengeStore struct {
	mu      sync.Mutex
	rows    map[string]*models.UserChallenge
	clock   time.Time
	upserts int
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{rows: map[string]*models.UserChallenge{}, clock: time.Unix(1_700_000_000, 0)}
}

func cloneInstance(in *models.ChallengeInstance) *models.ChallengeInstance {
	if in == nil {
		return nil
	}
	out := *in
	out.Animals = append([]models.AnimalTask(nil), in.Animals...)
	if in.CompletedAt != nil {
		at := *in.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

func cloneChallenge(uc *models.UserChallenge) *models.UserChallenge {
	out := *uc
	out.Daily = cloneInstance(uc.Daily)
	out.Weekly = cloneInstance(uc.Weekly)
	return &out
}

func (s *memChallengeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memChallengeStore) Find(ctx context.Context, userID, regionKey string) (*models.UserChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uc := range s.rows {
		if uc.UserID == userID && uc.RegionKey == regionKey {
			return cloneChallenge(uc), nil
		}
	}
	return nil, fmt.Errorf("challenge: %w", ErrNotFound)
}

func (s *memChallengeStore) ListByUser(ctx context.Context, userID string) ([]models.UserChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(userID), nil
}

func (s *memChallengeStore) listLocked(userID string) []models.UserChallenge {
	var out []models.UserChallenge
	for _, uc := range s.rows {
		if uc.UserID == userID {
			out = append(out, *cloneChallenge(uc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (s *memChallengeStore) Upsert(ctx context.Context, uc *models.UserChallenge, kinds []models.ChallengeKind) (*models.UserChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++

	var row *models.UserChallenge
	for _, existing := range s.rows {
		if existing.UserID == uc.UserID && existing.RegionKey == uc.RegionKey {
			row = existing
		}
	}
	if row == nil {
		row = cloneChallenge(uc)
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CreatedAt = s.tick()
		s.rows[row.ID] = row
	} else {
		row.RegionID, row.Location = uc.RegionID, uc.Location
		for _, k := range kinds {
			if k == models.ChallengeDaily {
				row.Daily = cloneInstance(uc.Daily)
			} else {
				row.Weekly = cloneInstance(uc.Weekly)
			}
		}
	}
	row.UpdatedAt = s.tick()
	return cloneChallenge(row), nil
}

func (s *memChallengeStore) UpdateActive(ctx context.Context, userID string, now time.Time, fn ChallengeMutator) (*models.UserChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := PickActive(s.listLocked(userID), now)
	if active == nil {
		return nil, fmt.Errorf("active challenge: %w", ErrNotFound)
	}
	changed, err := fn(active)
	if err != nil {
		return nil, err
	}
	if changed {
		active.UpdatedAt = s.tick()
		s.rows[active.ID] = cloneChallenge(active)
	}
	return active, nil
}

func (s *memChallengeStore) UpdateByID(ctx context.Context, id string, fn ChallengeMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("challenge %s: %w", id, ErrNotFound)
	}
	uc := cloneChallenge(row)
	changed, err := fn(uc)
	if err != nil || !changed {
		return err
	}
	uc.UpdatedAt = s.tick()
	s.rows[id] = uc
	return nil
}

func (s *memChallengeStore) get(id string) *models.UserChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChallenge(s.rows[id])
}

type fakeLedger struct {
	mu        sync.Mutex
	awards    []int64
	reasons   []string
	completed []models.ChallengeKind
	err       error
}

func (l *fakeLedger) AwardXP(ctx context.Context, userID string, xp int64, reason string) (*models.UserProgress, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.awards = append(l.awards, xp)
	l.reasons = append(l.reasons, reason)
	return &models.UserProgress{ExternalUserID: userID, TotalXP: xp}, nil
}

func (l *fakeLedger) IncrementChallengeCompletions(ctx context.Context, userID string, kind models.ChallengeKind) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, kind)
	return nil
}

type fakeBadges struct {
	mu    sync.Mutex
	calls int
}

func (b *fakeBadges) AutoAwardBadges(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return nil
}
