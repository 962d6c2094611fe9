package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poimap-server/events"
	"poimap-server/models"
	"poimap-server/utils/errors"
)

func TestCreateStatusDependsOnRole(t *testing.T) {
	env := newTestEnv(t)

	byUser := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))
	assert.Equal(t, models.StatusPending, byUser.Status)
	assert.Equal(t, "user-1", byUser.CreatedBy)
	assert.Empty(t, byUser.ReviewedBy)

	in := validInput("Parque Villa-Lobos")
	in.Lat, in.Lon = -23.5453, -46.7241
	byAdmin := env.mustCreate(t, env.adminCtx, in)
	assert.Equal(t, models.StatusApproved, byAdmin.Status)
	assert.Equal(t, "admin-1", byAdmin.ReviewedBy)
	require.NotNil(t, byAdmin.ReviewedAt)

	assert.Equal(t, []events.Type{events.PointCreated, events.PointCreated}, env.events.types())
}

func TestCreateRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.points.Create(env.visitorCtx, validInput("Parque Ibirapuera"))
	assert.Equal(t, errors.ErrUnauthorized, err)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	in := validInput("ab")
	in.Lat, in.Lon = 40.7, -74.0
	in.Phone = "abc"
	_, err := env.points.Create(env.userCtx, in)
	require.Error(t, err)
	apiErr, ok := err.(*errors.APIError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Fields, "name")
	assert.Contains(t, apiErr.Fields, "location")
	assert.Contains(t, apiErr.Fields, "phone")

	in = validInput("Parque Ibirapuera")
	in.Category = "nope"
	_, err = env.points.Create(env.userCtx, in)
	require.Error(t, err)
	assert.Contains(t, err.(*errors.APIError).Fields, "category")
}

func TestCreateRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))

	// same folded name, about 20 m away
	in := validInput("  parque   IBIRAPUERÁ ")
	in.Lat += 0.0002
	_, err := env.points.Create(env.otherCtx, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "DUPLICATE_POINT"))
	assert.Equal(t, first.ID, err.(*errors.APIError).Details)

	// same name far away is fine
	in.Lat, in.Lon = -22.9711, -43.1822
	_, err = env.points.Create(env.otherCtx, in)
	assert.NoError(t, err)

	// a deleted point no longer blocks
	require.NoError(t, env.points.Delete(env.adminCtx, first.ID))
	env.mustCreate(t, env.otherCtx, validInput("Parque Ibirapuera"))
}

func TestVisibility(t *testing.T) {
	env := newTestEnv(t)
	pending := env.mustCreate(t, env.userCtx, validInput("Parque Pendente"))

	in := validInput("Museu Aprovado")
	in.Category = "museus"
	in.Lat, in.Lon = -23.5614, -46.6558
	approved := env.mustCreate(t, env.adminCtx, in)

	_, err := env.points.Get(env.visitorCtx, pending.ID)
	assert.Equal(t, errors.ErrNotFound, err)
	_, err = env.points.Get(env.otherCtx, pending.ID)
	assert.Equal(t, errors.ErrNotFound, err)
	_, err = env.points.Get(env.userCtx, pending.ID)
	assert.NoError(t, err)
	_, err = env.points.Get(env.adminCtx, pending.ID)
	assert.NoError(t, err)

	res, err := env.points.List(env.visitorCtx, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, approved.ID, res.Points[0].ID)

	res, err = env.points.List(env.userCtx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	_, err = env.points.SetHidden(env.adminCtx, approved.ID, true)
	require.NoError(t, err)
	res, err = env.points.List(env.visitorCtx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	res, err = env.points.List(env.adminCtx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	a := validInput("Parque da Água Branca")
	a.Tags = []string{"galinhas"}
	env.mustCreate(t, env.adminCtx, a)

	b := validInput("Museu do Ipiranga")
	b.Category = "museus"
	b.Lat, b.Lon = -23.5855, -46.6096
	env.mustCreate(t, env.adminCtx, b)

	mine := validInput("Parque do Povo")
	mine.Lat, mine.Lon = -23.5845, -46.6880
	env.mustCreate(t, env.userCtx, mine)

	res, err := env.points.List(env.adminCtx, ListFilter{Query: "agua"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "Parque da Água Branca", res.Points[0].Name)

	res, err = env.points.List(env.adminCtx, ListFilter{Query: "  ÁGUA   branca "})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = env.points.List(env.adminCtx, ListFilter{Query: "GALINHAS"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = env.points.List(env.adminCtx, ListFilter{Categories: []string{"museus"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = env.points.List(env.adminCtx, ListFilter{Statuses: []models.PointStatus{models.StatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = env.points.List(env.userCtx, ListFilter{Mine: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = env.points.List(env.visitorCtx, ListFilter{Mine: true})
	assert.Equal(t, errors.ErrUnauthorized, err)

	// sorted by folded name, then paged
	res, err = env.points.List(env.adminCtx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Points, 2)
	assert.Equal(t, "Museu do Ipiranga", res.Points[0].Name)
	assert.Equal(t, "Parque da Água Branca", res.Points[1].Name)

	res, err = env.points.List(env.adminCtx, ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Points)

	_, err = env.points.List(env.adminCtx, ListFilter{Offset: -1})
	assert.Error(t, err)
}

func TestUpdateOwnership(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))

	in := validInput("Parque Ibirapuera Novo")
	updated, err := env.points.Update(env.userCtx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Parque Ibirapuera Novo", updated.Name)

	_, err = env.points.Update(env.otherCtx, p.ID, in)
	assert.Equal(t, errors.ErrNotFound, err)

	_, err = env.points.Approve(env.adminCtx, p.ID, "ok")
	require.NoError(t, err)

	// approved points are visible to others, but still not theirs
	_, err = env.points.Update(env.otherCtx, p.ID, in)
	assert.Equal(t, errors.ErrForbidden, err)

	// the author can no longer edit once reviewed
	_, err = env.points.Update(env.userCtx, p.ID, in)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	in.Description = "Descricao atualizada pelo admin"
	updated, err = env.points.Update(env.adminCtx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Descricao atualizada pelo admin", updated.Description)
	assert.Equal(t, models.StatusApproved, updated.Status)
}

func TestUpdateDoesNotCollideWithItself(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))
	in := validInput("Parque Ibirapuera")
	in.Address = "Av. Pedro Alvares Cabral"
	_, err := env.points.Update(env.userCtx, p.ID, in)
	assert.NoError(t, err)
}

func TestReviewWorkflow(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))

	_, err := env.points.Approve(env.userCtx, p.ID, "")
	assert.Equal(t, errors.ErrForbidden, err)

	rejected, err := env.points.Reject(env.adminCtx, p.ID, "  foto faltando ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "foto faltando", rejected.ReviewNote)

	_, err = env.points.Reject(env.adminCtx, p.ID, "")
	assert.True(t, errors.Is(err, "NOT_PENDING"))

	approved, err := env.points.Approve(env.adminCtx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	_, err = env.points.Approve(env.adminCtx, p.ID, "")
	assert.True(t, errors.Is(err, "NOT_PENDING"))

	assert.Equal(t, []events.Type{events.PointCreated, events.PointRejected, events.PointApproved}, env.events.types())
}

func TestSetHiddenIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.adminCtx, validInput("Parque Ibirapuera"))

	_, err := env.points.SetHidden(env.adminCtx, p.ID, true)
	require.NoError(t, err)
	_, err = env.points.SetHidden(env.adminCtx, p.ID, true)
	require.NoError(t, err)
	shown, err := env.points.SetHidden(env.adminCtx, p.ID, false)
	require.NoError(t, err)
	assert.False(t, shown.Hidden)

	assert.Equal(t, []events.Type{events.PointCreated, events.PointHidden, events.PointUnhidden}, env.events.types())

	_, err = env.points.SetHidden(env.userCtx, p.ID, true)
	assert.Equal(t, errors.ErrForbidden, err)
}

func TestSoftDeleteRestorePurge(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))

	require.NoError(t, env.points.Delete(env.userCtx, p.ID))
	assert.Equal(t, errors.ErrNotFound, env.points.Delete(env.userCtx, p.ID))

	_, err := env.points.Get(env.userCtx, p.ID)
	assert.Equal(t, errors.ErrNotFound, err)
	got, err := env.points.Get(env.adminCtx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	require.NotNil(t, got.DeletedAt)

	_, err = env.points.List(env.userCtx, ListFilter{IncludeDeleted: true})
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	res, err := env.points.List(env.adminCtx, ListFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	restored, err := env.points.Restore(env.adminCtx, p.ID)
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.Nil(t, restored.DeletedAt)

	_, err = env.points.Restore(env.adminCtx, p.ID)
	assert.True(t, errors.Is(err, "NOT_DELETED"))
	assert.True(t, errors.Is(env.points.Purge(env.adminCtx, p.ID), "NOT_DELETED"))

	require.NoError(t, env.points.Delete(env.adminCtx, p.ID))
	require.NoError(t, env.points.Purge(env.adminCtx, p.ID))
	_, err = env.points.Get(env.adminCtx, p.ID)
	assert.Equal(t, errors.ErrNotFound, err)
}

func TestRestoreBlockedByDuplicate(t *testing.T) {
	env := newTestEnv(t)
	old := env.mustCreate(t, env.adminCtx, validInput("Parque Ibirapuera"))
	require.NoError(t, env.points.Delete(env.adminCtx, old.ID))
	replacement := env.mustCreate(t, env.adminCtx, validInput("Parque Ibirapuera"))

	_, err := env.points.Restore(env.adminCtx, old.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "DUPLICATE_POINT"))
	assert.Equal(t, replacement.ID, err.(*errors.APIError).Details)
}

func TestUserCannotDeleteReviewedPoint(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustCreate(t, env.userCtx, validInput("Parque Ibirapuera"))
	_, err := env.points.Approve(env.adminCtx, p.ID, "")
	require.NoError(t, err)

	assert.True(t, errors.Is(env.points.Delete(env.userCtx, p.ID), "FORBIDDEN"))
	assert.Equal(t, errors.ErrUnauthorized, env.points.Delete(env.visitorCtx, p.ID))
}
