package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poimap-server/models"
	"poimap-server/utils/errors"
)

func TestSetRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.InsertUser(ctx, models.User{PublicID: "user-1", Username: "ana", PasswordHash: "h", Role: models.RoleUser, CreatedAt: time.Now()}))
	require.NoError(t, env.store.InsertUser(ctx, models.User{PublicID: "admin-1", Username: "root", PasswordHash: "h", Role: models.RoleAdmin, CreatedAt: time.Now()}))

	_, err := env.users.SetRole(env.userCtx, "admin-1", models.RoleUser)
	assert.Equal(t, errors.ErrForbidden, err)

	_, err = env.users.SetRole(env.adminCtx, "admin-1", models.RoleUser)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = env.users.SetRole(env.adminCtx, "user-1", models.RoleVisitor)
	assert.True(t, errors.Is(err, "INVALID_INPUT"))

	_, err = env.users.SetRole(env.adminCtx, "ghost", models.RoleAdmin)
	assert.Equal(t, errors.ErrNotFound, err)

	u, err := env.users.SetRole(env.adminCtx, "user-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	users, err := env.users.List(env.adminCtx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	me, err := env.users.Me(env.userCtx)
	require.NoError(t, err)
	assert.Equal(t, "ana", me.Username)
	_, err = env.users.Me(env.visitorCtx)
	assert.Equal(t, errors.ErrUnauthorized, err)
}
