package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"poimap-server/models"
)

type categoriesFile struct {
	Categories []models.Category `yaml:"categories"`
}

// LoadCategoriesFile reads the default category definitions.
func LoadCategoriesFile(path string) ([]models.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse categories file %s: %w", path, err)
	}
	return f.Categories, nil
}

// LoadSnapshotFile reads an exported snapshot. A bare JSON array is accepted
// as a list of points.
func LoadSnapshotFile(path string) (models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	return DecodeSnapshot(data)
}

func DecodeSnapshot(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err == nil {
		return snap, nil
	}
	var points []models.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return models.Snapshot{Version: models.SnapshotVersion, Points: points}, nil
}

// Seed loads categories and sample points into an empty database.
func (s *AdminService) Seed(ctx context.Context, categories []models.Category, snap models.Snapshot) (ImportReport, bool, error) {
	existing, err := s.store.ListCategories(ctx)
	if err != nil {
		return ImportReport{}, false, err
	}
	if len(existing) > 0 {
		s.logger.Debug("categories present, skipping seed", zap.Int("categories", len(existing)))
		return ImportReport{}, false, nil
	}
	s.logger.Info("no categories found, seeding sample data...")
	snap.Categories = append(categories, snap.Categories...)
	report, err := s.Import(ctx, snap, ImportMerge)
	if err != nil {
		return report, false, err
	}
	return report, true, nil
}
