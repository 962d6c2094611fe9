package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poimap-server/models"
	"poimap-server/utils/errors"
)

func TestStatsAndPendingQueue(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))
	second := validInput("Parque do Carmo")
	second.Lat, second.Lon = -23.57, -46.47
	env.mustCreate(t, env.userCtx, second)
	museum := validInput("MASP")
	museum.Category = "museus"
	hidden := env.mustCreate(t, env.adminCtx, museum)
	_, err := env.points.SetHidden(env.adminCtx, hidden.ID, true)
	require.NoError(t, err)

	queue, err := env.admin.PendingQueue(env.adminCtx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)

	require.NoError(t, env.points.Delete(env.adminCtx, first.ID))

	stats, err := env.admin.Stats(env.adminCtx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Points.Total)
	assert.Equal(t, 1, stats.Points.Deleted)
	assert.Equal(t, 1, stats.Points.Hidden)
	assert.Equal(t, 1, stats.Points.ByStatus[models.StatusPending])
	assert.Equal(t, 1, stats.Points.ByStatus[models.StatusApproved])
	assert.Equal(t, 1, stats.Points.ByCategory["museus"])

	_, err = env.admin.Stats(env.userCtx)
	assert.Equal(t, errors.ErrForbidden, err)
	_, err = env.admin.PendingQueue(env.visitorCtx)
	assert.Equal(t, errors.ErrUnauthorized, err)
}

func TestExportImportMerge(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.adminCtx, validInput("Parque Ibirapuera"))

	snap, err := env.admin.Export(env.adminCtx)
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotVersion, snap.Version)
	assert.Len(t, snap.Categories, 2)
	require.Len(t, snap.Points, 1)

	bad := models.Point{Name: "x", Category: "parques", Location: models.NewGeoPoint(-23, -46)}
	dup := models.Point{Name: "PARQUE IBIRAPUERA", Category: "parques", Location: p.Location}
	fresh := models.Point{Name: "Jardim Botânico", Category: "parques", Location: models.NewGeoPoint(-22.9674, -43.2292), Status: "bogus"}
	unknown := models.Point{Name: "Lugar Misterioso", Category: "sumiu", Location: models.NewGeoPoint(-22, -43)}
	snap.Points = append(snap.Points, bad, dup, fresh, unknown)
	snap.Categories = append(snap.Categories, models.Category{ID: "praias", Name: "Praias", Color: "#fdd835"}, models.Category{ID: "??", Name: "x"})

	report, err := env.admin.Import(env.adminCtx, snap, ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CategoriesAdded)
	assert.Equal(t, 1, report.PointsAdded)

	reasons := map[int]string{}
	for _, issue := range report.Skipped {
		if issue.Kind == "point" {
			reasons[issue.Index] = issue.Reason
		}
	}
	assert.Equal(t, "id already exists", reasons[0])
	assert.Contains(t, reasons[1], "name")
	assert.Equal(t, "duplicate of "+p.ID, reasons[2])
	assert.Contains(t, reasons[4], "unknown category")
	assert.NotContains(t, reasons, 3)

	res, err := env.points.List(env.adminCtx, ListFilter{Query: "jardim"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, models.StatusPending, res.Points[0].Status)
	assert.Equal(t, "admin-1", res.Points[0].CreatedBy)
}

func TestImportReplace(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, env.adminCtx, validInput("Parque Ibirapuera"))
	snap := models.Snapshot{Version: 1, Points: []models.Point{
		{ID: "keep-me", Name: "Parque Ibirapuera", Category: "parques", Location: models.NewGeoPoint(-23.5874, -46.6576), Status: models.StatusApproved},
	}}

	report, err := env.admin.Import(env.adminCtx, snap, ImportReplace)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PointsPurged)
	assert.Equal(t, 1, report.PointsAdded)

	p, err := env.points.Get(env.visitorCtx, "keep-me")
	require.NoError(t, err)
	assert.Equal(t, "parque ibirapuera", p.NameKey)
}

func TestImportRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.admin.Import(env.userCtx, models.Snapshot{}, ImportMerge)
	assert.Equal(t, errors.ErrForbidden, err)
	_, err = env.admin.Import(env.adminCtx, models.Snapshot{}, "upsert")
	assert.True(t, errors.Is(err, "INVALID_INPUT"))
	_, err = env.admin.Import(env.adminCtx, models.Snapshot{Version: 7}, ImportMerge)
	assert.True(t, errors.Is(err, "INVALID_INPUT"))
}

func TestSeedOnlyIntoEmptyDatabase(t *testing.T) {
	env := newTestEnv(t)
	_, seeded, err := env.admin.Seed(WithPrincipal(env.visitorCtx, SystemPrincipal), nil, models.Snapshot{})
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestDecodeSnapshotAcceptsBareArray(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`[{"name":"Parque","category":"parques","location":{"type":"Point","coordinates":[-46.6,-23.5]}}]`))
	require.NoError(t, err)
	require.Len(t, snap.Points, 1)
	assert.Equal(t, -23.5, snap.Points[0].Lat())

	snap, err = DecodeSnapshot([]byte(`{"version":1,"points":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)

	_, err = DecodeSnapshot([]byte(`"nope"`))
	assert.Error(t, err)
}

func TestLoadSeedFiles(t *testing.T) {
	categories, err := LoadCategoriesFile("../data/categories.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	for _, c := range categories {
		assert.Empty(t, ValidateCategory(NormalizeCategory(c)), c.ID)
	}

	snap, err := LoadSnapshotFile("../data/pontos.json")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Points)
}
