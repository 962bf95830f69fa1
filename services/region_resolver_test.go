package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wildlife-challenge-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOracleReply = `[{"name": "Blue Jay", "probability": 62}, {"name": "Red Fox", "probability": 8}]`

type recordingArchiver struct {
	mu   sync.Mutex
	keys []string
	raws []string
	err  error
}

func (a *recordingArchiver) ArchiveManifest(ctx context.Context, region *models.Region, raw string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, region.RegionKey)
	a.raws = append(a.raws, raw)
	return a.err
}

type resolverFixture struct {
	resolver *RegionResolver
	geocoder *fakeGeocoder
	oracle   *fakeOracle
	store    *memManifestStore
}

func newResolverFixture() *resolverFixture {
	geocoder := &fakeGeocoder{addrs: map[string]*Address{
		coordKey(37.77, -122.42): {City: "San Francisco", State: "California", Country: "United States"},
		coordKey(37.87, -122.27): {City: "Berkeley", State: "California", Country: "United States"},
		coordKey(40.01, -105.27): {City: "Boulder", State: "Colorado", Country: "United States"},
	}}
	oracle := &fakeOracle{reply: testOracleReply}
	store := newMemManifestStore()
	gen := NewManifestGenerator(oracle, &fakeCatalog{names: []string{"Blue Jay", "Red Fox", "Moose"}})
	return &resolverFixture{
		resolver: NewRegionResolver(geocoder, store, gen, nil),
		geocoder: geocoder,
		oracle:   oracle,
		store:    store,
	}
}

func TestRegionKey(t *testing.T) {
	cases := []struct {
		city, state string
		want        string
	}{
		{"San Francisco", "California", "san_francisco_california"},
		{"St. Paul", "Minnesota", "st_paul_minnesota"},
		{"Saint-Louis", "Île-de-France", "saint_louis_ile_de_france"},
		{"Kings & Queens", "New York", "kings_queens_new_york"},
		{"Lake @ Bay", "Oregon", "lake_bay_oregon"},
		{"", "Texas", "texas"},
		{"  ", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RegionKey(tc.city, tc.state), "%s/%s", tc.city, tc.state)
	}
}

func TestLocationName(t *testing.T) {
	assert.Equal(t, "San Francisco, California", LocationName(&Address{City: "San Francisco", State: "California"}))
	assert.Equal(t, "Texas", LocationName(&Address{State: " Texas "}))
}

func TestResolveCreatesThenReusesExactKey(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, 37.77, -122.42)
	require.NoError(t, err)
	assert.Equal(t, "san_francisco_california", first.RegionKey)
	assert.Equal(t, "San Francisco, California", first.Location)
	assert.Len(t, first.Manifest, 3)

	second, err := f.resolver.Resolve(ctx, 37.77, -122.42)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.oracle.callCount())
}

func TestResolveReusesNearbyRegion(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()

	sf, err := f.resolver.Resolve(ctx, 37.77, -122.42)
	require.NoError(t, err)

	berkeley, err := f.resolver.Resolve(ctx, 37.87, -122.27)
	require.NoError(t, err)
	assert.Equal(t, sf.ID, berkeley.ID)
	assert.Equal(t, "san_francisco_california", berkeley.RegionKey)
	assert.Equal(t, 1, f.oracle.callCount())

	boulder, err := f.resolver.Resolve(ctx, 40.01, -105.27)
	require.NoError(t, err)
	assert.Equal(t, "boulder_colorado", boulder.RegionKey)
	assert.Equal(t, 2, f.oracle.callCount())
}

func TestResolveConcurrentFirstRequestsGenerateOnce(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			region, err := f.resolver.Resolve(ctx, 37.77, -122.42)
			errs[i] = err
			if err == nil {
				ids[i] = region.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.oracle.callCount())
	assert.Equal(t, 1, f.store.creates)
}

func TestResolveGeocodeFailure(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, 0, 0)
	assert.ErrorIs(t, err, ErrGeocode)

	f.geocoder.err = errors.New("connection refused")
	_, err = f.resolver.Resolve(ctx, 37.77, -122.42)
	assert.ErrorIs(t, err, ErrGeocode)
	assert.Zero(t, f.oracle.callCount())

	f.geocoder.err = nil
	f.geocoder.addrs[coordKey(1, 1)] = &Address{Country: "Atlantis"}
	_, err = f.resolver.Resolve(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrGeocode)
}

func TestResolveOracleFailureStoresNothing(t *testing.T) {
	f := newResolverFixture()
	f.oracle.reply = "I'd rather not."

	_, err := f.resolver.Resolve(context.Background(), 37.77, -122.42)
	assert.ErrorIs(t, err, ErrManifestParse)
	assert.Empty(t, f.store.regions)
}

func TestRegenerateReplacesManifest(t *testing.T) {
	f := newResolverFixture()
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, 37.77, -122.42)
	require.NoError(t, err)

	f.oracle.reply = `[{"name": "Moose", "probability": 30}]`
	regenerated, err := f.resolver.Regenerate(ctx, 37.77, -122.42)
	require.NoError(t, err)
	assert.Equal(t, 2, f.oracle.callCount())
	assert.Equal(t, models.ManifestEntry{Name: "Moose", Probability: 30}, regenerated.Manifest[0])

	stored, err := f.store.FindByKey(ctx, "san_francisco_california")
	require.NoError(t, err)
	assert.Equal(t, regenerated.ID, stored.ID)
}

func TestResolveArchivesNewManifests(t *testing.T) {
	f := newResolverFixture()
	archiver := &recordingArchiver{err: errors.New("bucket missing")}
	f.resolver.Archiver = archiver
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, 37.77, -122.42)
	require.NoError(t, err, "archive failures are not fatal")
	_, err = f.resolver.Resolve(ctx, 37.77, -122.42)
	require.NoError(t, err)

	assert.Equal(t, []string{"san_francisco_california"}, archiver.keys)
	assert.Equal(t, []string{testOracleReply}, archiver.raws)
}
