package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"wildlife-challenge-service/models"
	"wildlife-challenge-service/utils"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// DefaultProximityThreshold is how far (in degrees, on each axis) a point may
// be from an existing region's center and still reuse its manifest. Roughly
// 50 miles at mid latitudes.
const DefaultProximityThreshold = 0.7

// ManifestArchiver stores a copy of newly generated manifests.
type ManifestArchiver interface {
	ArchiveManifest(ctx context.Context, region *models.Region, raw string) error
}

type RegionResolver struct {
	Geocoder  ReverseGeocoder
	Store     ManifestStore
	Generator *ManifestGenerator
	Locker    RegionLocker
	Archiver  ManifestArchiver // optional
	Threshold float64
}

func NewRegionResolver(geocoder ReverseGeocoder, store ManifestStore, generator *ManifestGenerator, locker RegionLocker) *RegionResolver {
	if locker == nil {
		locker = NewLocalRegionLocker()
	}
	return &RegionResolver{
		Geocoder:  geocoder,
		Store:     store,
		Generator: generator,
		Locker:    locker,
		Threshold: DefaultProximityThreshold,
	}
}

var (
	separatorRunRe = regexp.MustCompile(`_+`)
	nonAlnumRunRe  = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// RegionKey derives the stable key of a locality, e.g. "san_francisco_california".
// Symbols are dropped rather than spelled out, so "Kings & Queens" keys as
// "kings_queens".
func RegionKey(city, state string) string {
	key := regionKeyPart(city) + "_" + regionKeyPart(state)
	key = strings.ReplaceAll(key, "-", "_")
	key = separatorRunRe.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

func regionKeyPart(s string) string {
	return slug.Make(nonAlnumRunRe.ReplaceAllString(s, " "))
}

// LocationName formats an address as "City, State".
func LocationName(addr *Address) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{addr.City, addr.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve maps a coordinate to its region: exact key first, then any region
// whose center is within the proximity threshold, and only then a freshly
// generated manifest.
func (r *RegionResolver) Resolve(ctx context.Context, lat, lng float64) (*models.Region, error) {
	addr, key, err := r.locate(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	region, err := r.Store.FindByKey(ctx, key)
	if err == nil {
		return region, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	region, err = r.Store.FindNear(ctx, lat, lng, r.threshold())
	if err == nil {
		utils.Logger.Debug("[REGION] reusing nearby region",
			zap.String("requested_key", key),
			zap.String("region_key", region.RegionKey))
		return region, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return r.create(ctx, key, LocationName(addr), lat, lng, false)
}

// Regenerate drops the stored region for the coordinate's key and builds a
// new manifest for it. Nearby regions are not consulted.
func (r *RegionResolver) Regenerate(ctx context.Context, lat, lng float64) (*models.Region, error) {
	addr, key, err := r.locate(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	return r.create(ctx, key, LocationName(addr), lat, lng, true)
}

func (r *RegionResolver) locate(ctx context.Context, lat, lng float64) (*Address, string, error) {
	addr, err := r.Geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		if errors.Is(err, ErrGeocode) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", ErrGeocode, err)
	}
	if addr == nil {
		return nil, "", fmt.Errorf("%w: no address for %.4f,%.4f", ErrGeocode, lat, lng)
	}

	key := RegionKey(addr.City, addr.State)
	if key == "" {
		return nil, "", fmt.Errorf("%w: empty locality for %.4f,%.4f", ErrGeocode, lat, lng)
	}
	return addr, key, nil
}

func (r *RegionResolver) create(ctx context.Context, key, location string, lat, lng float64, bust bool) (*models.Region, error) {
	unlock, err := r.Locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if bust {
		if err := r.Store.DeleteByKey(ctx, key); err != nil {
			return nil, fmt.Errorf("delete region %s: %w", key, err)
		}
	} else {
		// another request may have created it while we waited for the lock
		if region, err := r.Store.FindByKey(ctx, key); err == nil {
			return region, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	result, err := r.Generator.Generate(ctx, location)
	if err != nil {
		return nil, err
	}

	region, created, err := r.Store.CreateIfAbsent(ctx, &models.Region{
		RegionKey: key,
		Location:  location,
		CenterLat: lat,
		CenterLng: lng,
		Manifest:  result.Entries,
	})
	if err != nil {
		return nil, fmt.Errorf("store region %s: %w", key, err)
	}
	if !created {
		return region, nil
	}

	utils.Logger.Info("🗺️ [REGION] manifest generated",
		zap.String("region_key", key),
		zap.String("location", location),
		zap.Int("entries", len(region.Manifest)))

	if r.Archiver != nil {
		if err := r.Archiver.ArchiveManifest(ctx, region, result.Raw); err != nil {
			utils.Logger.Warn("[REGION] manifest archive failed", zap.String("region_key", key), zap.Error(err))
		}
	}
	return region, nil
}

func (r *RegionResolver) threshold() float64 {
	if r.Threshold <= 0 {
		return DefaultProximityThreshold
	}
	return r.Threshold
}
