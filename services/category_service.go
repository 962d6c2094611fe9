package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
)

type CategoryService struct {
	store  store.Store
	logger *zap.Logger
}

func NewCategoryService(st store.Store, logger *zap.Logger) *CategoryService {
	return &CategoryService{store: st, logger: logger}
}

// List returns every category with the number of live points the caller can see in it.
func (s *CategoryService) List(ctx context.Context) ([]models.CategoryWithCount, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load categories", http.StatusInternalServerError)
	}
	points, err := s.store.FindPoints(ctx, store.PointQuery{Deleted: store.Live()})
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	pr := PrincipalFromContext(ctx)
	counts := map[string]int{}
	for _, p := range points {
		if Visible(pr, p, false) {
			counts[p.Category]++
		}
	}
	out := make([]models.CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.CategoryWithCount{Category: c, Count: counts[c.ID]})
	}
	return out, nil
}

func (s *CategoryService) Create(ctx context.Context, c models.Category) (models.Category, error) {
	if _, err := authorize(ctx, ActManageCategories); err != nil {
		return models.Category{}, err
	}
	c = NormalizeCategory(c)
	if fields := ValidateCategory(c); len(fields) > 0 {
		return models.Category{}, errors.Validation(fields)
	}
	c.CreatedAt = time.Now().UTC()
	if err := s.store.InsertCategory(ctx, c); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return models.Category{}, errors.ErrConflict.WithDetails("category " + c.ID + " already exists")
		}
		return models.Category{}, errors.Wrap(err, "DB_ERROR", "failed to save category", http.StatusInternalServerError)
	}
	s.logger.Info("category created", zap.String("id", c.ID))
	return c, nil
}

// Update changes name, color and icon. Empty fields keep their value.
func (s *CategoryService) Update(ctx context.Context, id string, patch models.Category) (models.Category, error) {
	if _, err := authorize(ctx, ActManageCategories); err != nil {
		return models.Category{}, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return models.Category{}, categoryStoreError(err)
	}
	if patch.Name != "" {
		c.Name = patch.Name
	}
	if patch.Color != "" {
		c.Color = patch.Color
	}
	if patch.Icon != "" {
		c.Icon = patch.Icon
	}
	c = NormalizeCategory(c)
	if fields := ValidateCategory(c); len(fields) > 0 {
		return models.Category{}, errors.Validation(fields)
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return models.Category{}, categoryStoreError(err)
	}
	return c, nil
}

// Delete refuses while live points still use the category.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if _, err := authorize(ctx, ActManageCategories); err != nil {
		return err
	}
	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return categoryStoreError(err)
	}
	inUse, err := s.store.FindPoints(ctx, store.PointQuery{Categories: []string{id}, Deleted: store.Live()})
	if err != nil {
		return errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	if len(inUse) > 0 {
		return errors.ErrConflict.WithDetails(fmt.Sprintf("category %s is used by %d points", id, len(inUse)))
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return categoryStoreError(err)
	}
	s.logger.Info("category deleted", zap.String("id", id))
	return nil
}

func categoryStoreError(err error) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.ErrNotFound
	}
	return errors.Wrap(err, "DB_ERROR", "category store failure", http.StatusInternalServerError)
}
