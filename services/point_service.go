package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poimap-server/events"
	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
	"poimap-server/utils/geo"
	"poimap-server/utils/textnorm"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

var (
	ErrDuplicatePoint = errors.NewAPIError("DUPLICATE_POINT", "A point with the same name already exists nearby", http.StatusConflict)
	ErrNotPending     = errors.NewAPIError("NOT_PENDING", "Only pending points can be changed this way", http.StatusConflict)
	ErrNotDeleted     = errors.NewAPIError("NOT_DELETED", "Point is not deleted", http.StatusConflict)
)

// PointService is the point database: validation, dedup, soft delete and review.
type PointService struct {
	store       store.Store
	index       GeoIndexer
	events      events.Publisher
	logger      *zap.Logger
	bbox        geo.BBox
	dedupRadius float64
	// nameLocks covers dedup check and write for one folded name within this process.
	nameLocks *keyLock
	now       func() time.Time
}

type PointOptions struct {
	BBox        geo.BBox
	DedupRadius float64
	// Index may be nil; nearby queries then scan the store.
	Index GeoIndexer
}

func NewPointService(st store.Store, pub events.Publisher, logger *zap.Logger, opts PointOptions) *PointService {
	return &PointService{
		store:       st,
		index:       opts.Index,
		events:      pub,
		logger:      logger,
		bbox:        opts.BBox,
		dedupRadius: opts.DedupRadius,
		nameLocks:   newKeyLock(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListFilter narrows List and Layers.
type ListFilter struct {
	Categories     []string
	Statuses       []models.PointStatus
	Query          string
	BBox           *geo.BBox
	IncludeDeleted bool
	Mine           bool
	Limit          int
	Offset         int
}

type ListResult struct {
	Points []models.Point `json:"points"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *PointService) Create(ctx context.Context, in models.PointInput) (models.Point, error) {
	pr, err := authorize(ctx, ActCreate)
	if err != nil {
		return models.Point{}, err
	}
	defer s.nameLocks.Lock(textnorm.Fold(in.Name))()
	in, err = s.checkInput(ctx, in, "")
	if err != nil {
		return models.Point{}, err
	}

	now := s.now()
	p := models.Point{
		ID:        uuid.New().String(),
		Status:    models.StatusPending,
		CreatedBy: pr.UserID,
		CreatedAt: now,
	}
	applyInput(&p, in, now)
	if pr.IsAdmin() {
		p.Status = models.StatusApproved
		p.ReviewedBy = pr.UserID
		p.ReviewedAt = &now
	}

	if err := s.store.InsertPoint(ctx, p); err != nil {
		return models.Point{}, errors.Wrap(err, "DB_ERROR", "failed to save point", http.StatusInternalServerError)
	}
	s.indexUpsert(ctx, p)
	s.publish(ctx, events.PointCreated, pr, p.ID, map[string]any{"status": p.Status, "category": p.Category})
	s.logger.Info("point created", zap.String("id", p.ID), zap.String("by", pr.Username), zap.String("status", string(p.Status)))
	return p, nil
}

func (s *PointService) Get(ctx context.Context, id string) (models.Point, error) {
	pr := PrincipalFromContext(ctx)
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Point{}, err
	}
	if !Visible(pr, p, true) {
		return models.Point{}, errors.ErrNotFound
	}
	return p, nil
}

func (s *PointService) List(ctx context.Context, f ListFilter) (ListResult, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return ListResult{}, errors.ErrInvalidInput.WithDetails("limit and offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	points, err := s.visiblePoints(ctx, f)
	if err != nil {
		return ListResult{}, err
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].NameKey != points[j].NameKey {
			return points[i].NameKey < points[j].NameKey
		}
		return points[i].ID < points[j].ID
	})

	res := ListResult{Total: len(points), Limit: f.Limit, Offset: f.Offset, Points: []models.Point{}}
	if f.Offset < len(points) {
		end := f.Offset + f.Limit
		if end > len(points) {
			end = len(points)
		}
		res.Points = points[f.Offset:end]
	}
	return res, nil
}

// visiblePoints pushes the coarse filter down to the store, then applies
// visibility and the free-text query.
func (s *PointService) visiblePoints(ctx context.Context, f ListFilter) ([]models.Point, error) {
	pr := PrincipalFromContext(ctx)
	if f.IncludeDeleted && !pr.IsAdmin() {
		return nil, errors.ErrForbidden.WithDetails("only administrators can list deleted points")
	}
	q := store.PointQuery{Categories: f.Categories, Statuses: f.Statuses, BBox: f.BBox}
	if !f.IncludeDeleted {
		q.Deleted = store.Live()
	}
	if f.Mine {
		if !pr.IsAuthenticated() {
			return nil, errors.ErrUnauthorized
		}
		q.CreatedBy = pr.UserID
	}

	all, err := s.store.FindPoints(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load points", http.StatusInternalServerError)
	}
	query := textnorm.Fold(f.Query)
	out := make([]models.Point, 0, len(all))
	for _, p := range all {
		if !Visible(pr, p, f.IncludeDeleted) {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesQuery(p models.Point, folded string) bool {
	fields := append([]string{p.Name, p.Description, p.Address}, p.Tags...)
	for _, field := range fields {
		if textnorm.Contains(field, folded) {
			return true
		}
	}
	return false
}

func (s *PointService) Update(ctx context.Context, id string, in models.PointInput) (models.Point, error) {
	pr, err := authorize(ctx, ActUpdate)
	if err != nil {
		return models.Point{}, err
	}
	p, err := s.loadLive(ctx, id)
	if err != nil {
		return models.Point{}, err
	}
	if !pr.IsAdmin() {
		if err := ownerOnly(pr, p); err != nil {
			return models.Point{}, err
		}
	}
	defer s.nameLocks.Lock(textnorm.Fold(in.Name))()
	in, err = s.checkInput(ctx, in, p.ID)
	if err != nil {
		return models.Point{}, err
	}

	applyInput(&p, in, s.now())
	if err := s.save(ctx, p); err != nil {
		return models.Point{}, err
	}
	s.indexUpsert(ctx, p)
	s.publish(ctx, events.PointUpdated, pr, p.ID, nil)
	return p, nil
}

// ownerOnly lets a regular user touch their own points while they wait for review.
func ownerOnly(pr models.Principal, p models.Point) error {
	if p.CreatedBy != pr.UserID {
		if Visible(pr, p, false) {
			return errors.ErrForbidden
		}
		return errors.ErrNotFound
	}
	if p.Status != models.StatusPending {
		return errors.ErrForbidden.WithDetails("only pending points can be changed by their author")
	}
	return nil
}

func (s *PointService) Approve(ctx context.Context, id, note string) (models.Point, error) {
	return s.review(ctx, id, note, models.StatusApproved, events.PointApproved, ActApprove)
}

func (s *PointService) Reject(ctx context.Context, id, note string) (models.Point, error) {
	return s.review(ctx, id, note, models.StatusRejected, events.PointRejected, ActReject)
}

func (s *PointService) review(ctx context.Context, id, note string, to models.PointStatus, ev events.Type, action Action) (models.Point, error) {
	pr, err := authorize(ctx, action)
	if err != nil {
		return models.Point{}, err
	}
	p, err := s.loadLive(ctx, id)
	if err != nil {
		return models.Point{}, err
	}
	// approved is terminal; rejected points may still be approved later
	allowed := p.Status == models.StatusPending || (to == models.StatusApproved && p.Status == models.StatusRejected)
	if !allowed {
		return models.Point{}, ErrNotPending.WithDetails("point is " + string(p.Status))
	}

	now := s.now()
	p.Status = to
	p.ReviewedBy = pr.UserID
	p.ReviewedAt = &now
	p.ReviewNote = strings.TrimSpace(note)
	p.UpdatedAt = now
	if err := s.save(ctx, p); err != nil {
		return models.Point{}, err
	}
	s.publish(ctx, ev, pr, p.ID, map[string]any{"note": p.ReviewNote})
	return p, nil
}

func (s *PointService) SetHidden(ctx context.Context, id string, hidden bool) (models.Point, error) {
	pr, err := authorize(ctx, ActHide)
	if err != nil {
		return models.Point{}, err
	}
	p, err := s.loadLive(ctx, id)
	if err != nil {
		return models.Point{}, err
	}
	if p.Hidden == hidden {
		return p, nil
	}
	p.Hidden = hidden
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p); err != nil {
		return models.Point{}, err
	}
	ev := events.PointUnhidden
	if hidden {
		ev = events.PointHidden
	}
	s.publish(ctx, ev, pr, p.ID, nil)
	return p, nil
}

// Delete is a soft delete; the point can be restored or purged afterwards.
func (s *PointService) Delete(ctx context.Context, id string) error {
	pr, err := authorize(ctx, ActDelete)
	if err != nil {
		return err
	}
	p, err := s.loadLive(ctx, id)
	if err != nil {
		return err
	}
	if !pr.IsAdmin() {
		if err := ownerOnly(pr, p); err != nil {
			return err
		}
	}
	now := s.now()
	p.Deleted = true
	p.DeletedAt = &now
	p.UpdatedAt = now
	if err := s.save(ctx, p); err != nil {
		return err
	}
	s.indexRemove(ctx, p.ID)
	s.publish(ctx, events.PointDeleted, pr, p.ID, nil)
	return nil
}

func (s *PointService) Restore(ctx context.Context, id string) (models.Point, error) {
	pr, err := authorize(ctx, ActRestore)
	if err != nil {
		return models.Point{}, err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Point{}, err
	}
	if !p.Deleted {
		return models.Point{}, ErrNotDeleted
	}
	defer s.nameLocks.Lock(p.NameKey)()
	if dup, found, err := s.findDuplicate(ctx, p.NameKey, p.Lat(), p.Lon(), p.ID); err != nil {
		return models.Point{}, err
	} else if found {
		return models.Point{}, ErrDuplicatePoint.WithDetails(dup.ID)
	}
	p.Deleted = false
	p.DeletedAt = nil
	p.UpdatedAt = s.now()
	if err := s.save(ctx, p); err != nil {
		return models.Point{}, err
	}
	s.indexUpsert(ctx, p)
	s.publish(ctx, events.PointRestored, pr, p.ID, nil)
	return p, nil
}

// Purge removes a soft-deleted point for good.
func (s *PointService) Purge(ctx context.Context, id string) error {
	pr, err := authorize(ctx, ActPurge)
	if err != nil {
		return err
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !p.Deleted {
		return ErrNotDeleted.WithDetails("delete the point before purging it")
	}
	if err := s.store.DeletePoint(ctx, id); err != nil {
		return s.storeError(err, "failed to purge point")
	}
	s.indexRemove(ctx, id)
	s.publish(ctx, events.PointPurged, pr, id, nil)
	return nil
}

// checkInput normalizes and validates in, checks the category and runs dedup.
func (s *PointService) checkInput(ctx context.Context, in models.PointInput, selfID string) (models.PointInput, error) {
	in = NormalizePoint(in)
	if fields := ValidatePoint(in, s.bbox); len(fields) > 0 {
		return in, errors.Validation(fields)
	}
	if _, err := s.store.GetCategory(ctx, in.Category); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return in, errors.Validation(map[string]string{"category": "unknown category " + in.Category})
		}
		return in, errors.Wrap(err, "DB_ERROR", "failed to load category", http.StatusInternalServerError)
	}
	dup, found, err := s.findDuplicate(ctx, textnorm.Fold(in.Name), in.Lat, in.Lon, selfID)
	if err != nil {
		return in, err
	}
	if found {
		return in, ErrDuplicatePoint.WithDetails(dup.ID)
	}
	return in, nil
}

// findDuplicate looks for a live point with the same folded name within the dedup radius.
func (s *PointService) findDuplicate(ctx context.Context, nameKey string, lat, lon float64, selfID string) (models.Point, bool, error) {
	candidates, err := s.store.FindPoints(ctx, store.PointQuery{NameKey: nameKey, Deleted: store.Live()})
	if err != nil {
		return models.Point{}, false, errors.Wrap(err, "DB_ERROR", "failed to check duplicates", http.StatusInternalServerError)
	}
	for _, c := range candidates {
		if c.ID == selfID {
			continue
		}
		if geo.DistanceMeters(lat, lon, c.Lat(), c.Lon()) <= s.dedupRadius {
			return c, true, nil
		}
	}
	return models.Point{}, false, nil
}

func applyInput(p *models.Point, in models.PointInput, now time.Time) {
	p.Name = in.Name
	p.NameKey = textnorm.Fold(in.Name)
	p.Category = in.Category
	p.Location = models.NewGeoPoint(in.Lat, in.Lon)
	p.Description = in.Description
	p.Address = in.Address
	p.Phone = in.Phone
	p.Website = in.Website
	p.Tags = in.Tags
	p.UpdatedAt = now
}

func (s *PointService) load(ctx context.Context, id string) (models.Point, error) {
	p, err := s.store.GetPoint(ctx, id)
	if err != nil {
		return models.Point{}, s.storeError(err, "failed to load point")
	}
	return p, nil
}

func (s *PointService) loadLive(ctx context.Context, id string) (models.Point, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return models.Point{}, err
	}
	if p.Deleted {
		return models.Point{}, errors.ErrNotFound
	}
	return p, nil
}

func (s *PointService) save(ctx context.Context, p models.Point) error {
	if err := s.store.UpdatePoint(ctx, p); err != nil {
		return s.storeError(err, "failed to save point")
	}
	return nil
}

func (s *PointService) storeError(err error, message string) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.ErrNotFound
	}
	return errors.Wrap(err, "DB_ERROR", message, http.StatusInternalServerError)
}

func (s *PointService) publish(ctx context.Context, t events.Type, pr models.Principal, pointID string, payload map[string]any) {
	publish(ctx, s.events, s.logger, events.Event{Type: t, At: s.now(), Actor: pr.UserID, PointID: pointID, Payload: payload})
}

// publish never fails the operation that triggered the event.
func publish(ctx context.Context, pub events.Publisher, logger *zap.Logger, e events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		logger.Warn("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
