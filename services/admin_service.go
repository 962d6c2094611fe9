package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
	"poimap-server/utils/textnorm"
)

type ImportMode string

const (
	ImportMerge   ImportMode = "merge"
	ImportReplace ImportMode = "replace"
)

type AdminService struct {
	store  store.Store
	points *PointService
	logger *zap.Logger
}

func NewAdminService(st store.Store, points *PointService, logger *zap.Logger) *AdminService {
	return &AdminService{store: st, points: points, logger: logger}
}

type PointStats struct {
	Total      int                        `json:"total"`
	ByStatus   map[models.PointStatus]int `json:"by_status"`
	ByCategory map[string]int             `json:"by_category"`
	Hidden     int                        `json:"hidden"`
	Deleted    int                        `json:"deleted"`
}

type Stats struct {
	Points PointStats          `json:"points"`
	Users  map[models.Role]int `json:"users"`
}

// Stats counts live points by status and category; deleted points are only counted in Deleted.
func (s *AdminService) Stats(ctx context.Context) (Stats, error) {
	if _, err := authorize(ctx, ActManageUsers); err != nil {
		return Stats{}, err
	}
	points, err := s.store.FindPoints(ctx, store.PointQuery{})
	if err != nil {
		return Stats{}, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "DB_ERROR", "failed to load users", http.StatusInternalServerError)
	}

	st := Stats{
		Points: PointStats{ByStatus: map[models.PointStatus]int{}, ByCategory: map[string]int{}},
		Users:  map[models.Role]int{},
	}
	for _, p := range points {
		if p.Deleted {
			st.Points.Deleted++
			continue
		}
		st.Points.Total++
		st.Points.ByStatus[p.Status]++
		st.Points.ByCategory[p.Category]++
		if p.Hidden {
			st.Points.Hidden++
		}
	}
	for _, u := range users {
		st.Users[u.Role]++
	}
	return st, nil
}

// PendingQueue lists live points waiting for review, oldest first.
func (s *AdminService) PendingQueue(ctx context.Context) ([]models.Point, error) {
	if _, err := authorize(ctx, ActApprove); err != nil {
		return nil, err
	}
	points, err := s.store.FindPoints(ctx, store.PointQuery{
		Statuses: []models.PointStatus{models.StatusPending},
		Deleted:  store.Live(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	return points, nil
}

func (s *AdminService) Export(ctx context.Context) (models.Snapshot, error) {
	if _, err := authorize(ctx, ActExport); err != nil {
		return models.Snapshot{}, err
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return models.Snapshot{}, errors.Wrap(err, "DB_ERROR", "failed to load categories", http.StatusInternalServerError)
	}
	points, err := s.store.FindPoints(ctx, store.PointQuery{})
	if err != nil {
		return models.Snapshot{}, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	return models.Snapshot{
		Version:    models.SnapshotVersion,
		ExportedAt: time.Now().UTC(),
		Categories: categories,
		Points:     points,
	}, nil
}

type ImportIssue struct {
	Kind   string `json:"kind"`
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Mode            ImportMode    `json:"mode"`
	CategoriesAdded int           `json:"categories_added"`
	PointsAdded     int           `json:"points_added"`
	PointsPurged    int           `json:"points_purged"`
	Skipped         []ImportIssue `json:"skipped"`
}

// Import loads a snapshot. Merge keeps existing data and skips conflicts;
// replace purges every point first. Invalid records are reported, not fatal.
func (s *AdminService) Import(ctx context.Context, snap models.Snapshot, mode ImportMode) (ImportReport, error) {
	pr, err := authorize(ctx, ActImport)
	if err != nil {
		return ImportReport{}, err
	}
	if mode == "" {
		mode = ImportMerge
	}
	if mode != ImportMerge && mode != ImportReplace {
		return ImportReport{}, errors.ErrInvalidInput.WithDetails("mode must be merge or replace")
	}
	if snap.Version != 0 && snap.Version != models.SnapshotVersion {
		return ImportReport{}, errors.ErrInvalidInput.WithDetails(fmt.Sprintf("unsupported snapshot version %d", snap.Version))
	}
	report := ImportReport{Mode: mode, Skipped: []ImportIssue{}}

	for i, c := range snap.Categories {
		c = NormalizeCategory(c)
		if fields := ValidateCategory(c); len(fields) > 0 {
			report.Skipped = append(report.Skipped, ImportIssue{Kind: "category", Index: i, ID: c.ID, Reason: firstField(fields)})
			continue
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		if err := s.store.InsertCategory(ctx, c); err != nil {
			if stderrors.Is(err, store.ErrDuplicate) {
				continue
			}
			return report, errors.Wrap(err, "DB_ERROR", "failed to import category", http.StatusInternalServerError)
		}
		report.CategoriesAdded++
	}

	if mode == ImportReplace {
		existing, err := s.store.FindPoints(ctx, store.PointQuery{})
		if err != nil {
			return report, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
		}
		for _, p := range existing {
			if err := s.store.DeletePoint(ctx, p.ID); err != nil && !stderrors.Is(err, store.ErrNotFound) {
				return report, errors.Wrap(err, "DB_ERROR", "failed to purge points", http.StatusInternalServerError)
			}
			report.PointsPurged++
		}
	}

	for i, p := range snap.Points {
		reason, err := s.importPoint(ctx, pr, p)
		if err != nil {
			return report, err
		}
		if reason != "" {
			report.Skipped = append(report.Skipped, ImportIssue{Kind: "point", Index: i, ID: p.ID, Reason: reason})
			continue
		}
		report.PointsAdded++
	}

	if mode == ImportReplace {
		if err := s.points.SyncIndex(ctx); err != nil {
			s.logger.Warn("failed to rebuild geo index after import", zap.Error(err))
		}
	}
	s.logger.Info("import finished",
		zap.String("mode", string(mode)),
		zap.Int("categories", report.CategoriesAdded),
		zap.Int("points", report.PointsAdded),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// importPoint returns a skip reason, or an error when the store fails.
func (s *AdminService) importPoint(ctx context.Context, pr models.Principal, p models.Point) (string, error) {
	in := NormalizePoint(p.Input())
	if fields := ValidatePoint(in, s.points.bbox); len(fields) > 0 {
		return firstField(fields), nil
	}
	if _, err := s.store.GetCategory(ctx, in.Category); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return "unknown category " + in.Category, nil
		}
		return "", errors.Wrap(err, "DB_ERROR", "failed to load category", http.StatusInternalServerError)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	} else if _, err := s.store.GetPoint(ctx, p.ID); err == nil {
		return "id already exists", nil
	}
	if !p.Deleted {
		defer s.points.nameLocks.Lock(textnorm.Fold(in.Name))()
		dup, found, err := s.points.findDuplicate(ctx, textnorm.Fold(in.Name), in.Lat, in.Lon, p.ID)
		if err != nil {
			return "", err
		}
		if found {
			return "duplicate of " + dup.ID, nil
		}
	}

	now := time.Now().UTC()
	if !p.Status.Valid() {
		p.Status = models.StatusPending
	}
	if p.CreatedBy == "" {
		p.CreatedBy = pr.UserID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	applyInput(&p, in, now)
	if p.Deleted && p.DeletedAt == nil {
		p.DeletedAt = &now
	}

	if err := s.store.InsertPoint(ctx, p); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return "id already exists", nil
		}
		return "", errors.Wrap(err, "DB_ERROR", "failed to import point", http.StatusInternalServerError)
	}
	if !p.Deleted {
		s.points.indexUpsert(ctx, p)
	}
	return "", nil
}

func firstField(fields map[string]string) string {
	for _, key := range []string{"id", "name", "category", "location", "color", "description", "address", "phone", "website", "tags"} {
		if msg, ok := fields[key]; ok {
			return key + " " + msg
		}
	}
	for key, msg := range fields {
		return key + " " + msg
	}
	return ""
}
