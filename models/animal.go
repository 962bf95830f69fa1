package models

import "time"

// Animal is one entry of the canonical catalog. Manifests are validated
// against the set of names in this table.
type Animal struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id" yaml:"-"`
	Name           string    `gorm:"uniqueIndex;not null" json:"name" yaml:"name"`
	ScientificName string    `json:"scientific_name,omitempty" yaml:"scientific_name"`
	Category       string    `gorm:"type:varchar(32);index" json:"category,omitempty" yaml:"category"` // bird, mammal, reptile...
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at" yaml:"-"`
}
