package services

import (
	"context"
	"testing"

	"wildlife-challenge-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormManifestStoreCreateIfAbsent(t *testing.T) {
	store := NewGormManifestStore(newTestDB(t))
	ctx := context.Background()

	first, created, err := store.CreateIfAbsent(ctx, &models.Region{
		RegionKey: "san_francisco_california",
		Location:  "San Francisco, California",
		CenterLat: 37.77,
		CenterLng: -122.42,
		Manifest:  []models.ManifestEntry{{Name: "Blue Jay", Probability: 62}, {Name: "Red Fox", Probability: 8}},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	second, created, err := store.CreateIfAbsent(ctx, &models.Region{
		RegionKey: "san_francisco_california",
		Location:  "San Francisco, California",
		Manifest:  []models.ManifestEntry{{Name: "Moose", Probability: 99}},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []models.ManifestEntry{{Name: "Blue Jay", Probability: 62}, {Name: "Red Fox", Probability: 8}}, []models.ManifestEntry(second.Manifest))
}

func TestGormManifestStoreFindAndDelete(t *testing.T) {
	store := NewGormManifestStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.FindByKey(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = store.CreateIfAbsent(ctx, &models.Region{RegionKey: "boulder_colorado", Location: "Boulder, Colorado"})
	require.NoError(t, err)

	found, err := store.FindByKey(ctx, "boulder_colorado")
	require.NoError(t, err)
	assert.Equal(t, "Boulder, Colorado", found.Location)

	require.NoError(t, store.DeleteByKey(ctx, "boulder_colorado"))
	_, err = store.FindByKey(ctx, "boulder_colorado")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormManifestStoreFindNear(t *testing.T) {
	store := NewGormManifestStore(newTestDB(t))
	ctx := context.Background()

	for _, r := range []models.Region{
		{RegionKey: "san_francisco_california", CenterLat: 37.77, CenterLng: -122.42},
		{RegionKey: "napa_california", CenterLat: 38.30, CenterLng: -122.00},
	} {
		r := r
		_, _, err := store.CreateIfAbsent(ctx, &r)
		require.NoError(t, err)
	}

	near, err := store.FindNear(ctx, 37.90, -122.30, DefaultProximityThreshold)
	require.NoError(t, err)
	assert.Equal(t, "san_francisco_california", near.RegionKey)

	near, err = store.FindNear(ctx, 38.40, -121.90, DefaultProximityThreshold)
	require.NoError(t, err)
	assert.Equal(t, "napa_california", near.RegionKey)

	_, err = store.FindNear(ctx, 45.0, 0.0, DefaultProximityThreshold)
	assert.ErrorIs(t, err, ErrNotFound)

	// the threshold bounds each axis
	_, err = store.FindNear(ctx, 37.77, -123.22, DefaultProximityThreshold)
	assert.ErrorIs(t, err, ErrNotFound)
}
