package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poimap-server/events"
	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/geo"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store      *store.SQLStore
	events     *recorder
	points     *PointService
	categories *CategoryService
	admin      *AdminService
	users      *UserService

	adminCtx   context.Context
	userCtx    context.Context
	otherCtx   context.Context
	visitorCtx context.Context
}

var (
	adminPrincipal = models.Principal{UserID: "admin-1", Username: "root", Role: models.RoleAdmin}
	userPrincipal  = models.Principal{UserID: "user-1", Username: "ana", Role: models.RoleUser}
	otherPrincipal = models.Principal{UserID: "user-2", Username: "bia", Role: models.RoleUser}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLStore("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close(context.Background()) })

	rec := &recorder{}
	logger := zap.NewNop()
	points := NewPointService(st, rec, logger, PointOptions{
		BBox:        geo.BBox{MinLat: -33.75, MinLon: -73.99, MaxLat: 5.27, MaxLon: -34.79},
		DedupRadius: 100,
	})
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	points.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	env := &testEnv{
		store:      st,
		events:     rec,
		points:     points,
		categories: NewCategoryService(st, logger),
		admin:      NewAdminService(st, points, logger),
		users:      NewUserService(st, logger),
		adminCtx:   WithPrincipal(context.Background(), adminPrincipal),
		userCtx:    WithPrincipal(context.Background(), userPrincipal),
		otherCtx:   WithPrincipal(context.Background(), otherPrincipal),
		visitorCtx: context.Background(),
	}
	for _, c := range []models.Category{
		{ID: "parques", Name: "Parques", Color: "#43a047"},
		{ID: "museus", Name: "Museus", Color: "#1e88e5"},
	} {
		c.CreatedAt = time.Now()
		require.NoError(t, st.InsertCategory(context.Background(), c))
	}
	return env
}

func validInput(name string) models.PointInput {
	return models.PointInput{
		Name:        name,
		Category:    "parques",
		Lat:         -23.5874,
		Lon:         -46.6576,
		Description: "Um parque bem grande no centro",
	}
}

func (e *testEnv) mustCreate(t *testing.T, ctx context.Context, in models.PointInput) models.Point {
	t.Helper()
	p, err := e.points.Create(ctx, in)
	require.NoError(t, err)
	return p
}
