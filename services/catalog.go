package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"wildlife-challenge-service/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogService serves the canonical animal names from an in-memory copy of
// the animals table.
type CatalogService struct {
	DB *gorm.DB

	mu    sync.RWMutex
	names []string
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// ListCatalogNames returns the cached names, loading them on first use.
func (s *CatalogService) ListCatalogNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	names := s.names
	s.mu.RUnlock()

	if names == nil {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		s.mu.RLock()
		names = s.names
		s.mu.RUnlock()
	}

	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// Refresh reloads the cache from the database.
func (s *CatalogService) Refresh(ctx context.Context) error {
	var animals []models.Animal
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&animals).Error; err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	names := make([]string, 0, len(animals))
	for _, a := range animals {
		names = append(names, a.Name)
	}

	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

type catalogFile struct {
	Animals []models.Animal `yaml:"animals"`
}

// SeedFromFile upserts the animals listed in a YAML file:
//
//	animals:
//	  - name: Blue Jay
//	    scientific_name: Cyanocitta cristata
//	    category: bird
func (s *CatalogService) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse catalog file %s: %w", path, err)
	}

	animals := make([]models.Animal, 0, len(file.Animals))
	seen := make(map[string]bool, len(file.Animals))
	for _, a := range file.Animals {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" || seen[foldName(a.Name)] {
			continue
		}
		seen[foldName(a.Name)] = true
		a.ID = uuid.NewString()
		animals = append(animals, a)
	}
	if len(animals) == 0 {
		return 0, nil
	}

	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"scientific_name", "category", "updated_at"}),
	}).Create(&animals).Error
	if err != nil {
		return 0, err
	}

	return len(animals), s.Refresh(ctx)
}
