package services

import (
	"math/rand/v2"
	"sync"

	"wildlife-challenge-service/models"
)

// RandomSource is the randomness used by the challenge selectors.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

// NewRandomSource returns a PCG-backed source seeded from the runtime,
// safe for concurrent use.
func NewRandomSource() RandomSource {
	return &lockedSource{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Selection is one picked animal with the number of times it must be spotted.
type Selection struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
	Count       int    `json:"count"`
}

const (
	dailyHardChance   = 0.3
	dailyEasyDraws    = 3
	weeklyVeryRareCut = 0.2
	weeklyRareCut     = 0.7
)

// SelectDaily picks today's animals: usually three weighted draws among easy
// animals (p >= 50), sometimes a single moderate one (40 <= p < 50).
func SelectDaily(manifest []models.ManifestEntry, rng RandomSource) []Selection {
	var moderate, easy []models.ManifestEntry
	for _, e := range manifest {
		switch {
		case e.Probability >= 50:
			easy = append(easy, e)
		case e.Probability >= 40:
			moderate = append(moderate, e)
		}
	}
	if len(moderate) == 0 && len(easy) == 0 {
		return []Selection{}
	}

	if rng.Float64() < dailyHardChance && len(moderate) > 0 {
		pick := moderate[rng.IntN(len(moderate))]
		return []Selection{{Name: pick.Name, Probability: pick.Probability, Count: 1}}
	}

	return consolidate(weightedDraws(easy, dailyEasyDraws, rng))
}

// SelectWeekly picks the week's animals. One roll chooses the tier mix:
// a very rare animal (5 <= p <= 10), one or two rare ones (10 < p < 50), or
// common animals (p >= 50) only. A tier with an empty pool contributes nothing.
func SelectWeekly(manifest []models.ManifestEntry, rng RandomSource) []Selection {
	var veryRare, rare, common []models.ManifestEntry
	for _, e := range manifest {
		switch {
		case e.Probability >= 50:
			common = append(common, e)
		case e.Probability > 10:
			rare = append(rare, e)
		case e.Probability >= 5:
			veryRare = append(veryRare, e)
		}
	}

	var picks []models.ManifestEntry
	r := rng.Float64()
	switch {
	case r < weeklyVeryRareCut && len(veryRare) > 0:
		picks = append(picks, uniformDraws(veryRare, 1, rng)...)
		picks = append(picks, weightedDraws(common, 2, rng)...)
	case r < weeklyRareCut && len(rare) > 0:
		picks = append(picks, uniformDraws(rare, 1+rng.IntN(2), rng)...)
		picks = append(picks, weightedDraws(common, 3+rng.IntN(2), rng)...)
	default:
		picks = append(picks, weightedDraws(common, 5+rng.IntN(3), rng)...)
	}

	return consolidate(picks)
}

func uniformDraws(pool []models.ManifestEntry, n int, rng RandomSource) []models.ManifestEntry {
	if len(pool) == 0 {
		return nil
	}
	out := make([]models.ManifestEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, pool[rng.IntN(len(pool))])
	}
	return out
}

// weightedDraws samples n entries with replacement, using each probability
// as its weight. A pool whose weights are all zero is sampled uniformly.
func weightedDraws(pool []models.ManifestEntry, n int, rng RandomSource) []models.ManifestEntry {
	if len(pool) == 0 {
		return nil
	}
	total := 0
	for _, e := range pool {
		total += e.Probability
	}
	if total <= 0 {
		return uniformDraws(pool, n, rng)
	}

	out := make([]models.ManifestEntry, 0, n)
	for i := 0; i < n; i++ {
		target := rng.Float64() * float64(total)
		pick := pool[len(pool)-1]
		acc := 0.0
		for _, e := range pool {
			acc += float64(e.Probability)
			if target < acc {
				pick = e
				break
			}
		}
		out = append(out, pick)
	}
	return out
}

// consolidate merges repeated names into one selection, keeping first-seen order.
func consolidate(picks []models.ManifestEntry) []Selection {
	out := make([]Selection, 0, len(picks))
	index := make(map[string]int, len(picks))
	for _, p := range picks {
		if i, ok := index[p.Name]; ok {
			out[i].Count++
			continue
		}
		index[p.Name] = len(out)
		out = append(out, Selection{Name: p.Name, Probability: p.Probability, Count: 1})
	}
	return out
}
