package models

import (
	"time"

	"gorm.io/datatypes"
)

// ManifestEntry is the sighting probability (0-100) of one catalog animal in a region.
type ManifestEntry struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
}

// Region caches one probability manifest per locality. Rows are only replaced
// by an explicit regeneration (delete + create), never updated in place.
type Region struct {
	ID        string                             `gorm:"primaryKey;type:uuid" json:"id"`
	RegionKey string                             `gorm:"uniqueIndex;not null" json:"region_key"`
	Location  string                             `gorm:"not null" json:"location"` // "City, State"
	CenterLat float64                            `gorm:"index:idx_region_center" json:"center_lat"`
	CenterLng float64                            `gorm:"index:idx_region_center" json:"center_lng"`
	Manifest  datatypes.JSONSlice[ManifestEntry] `json:"manifest"`
	CreatedAt time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}
