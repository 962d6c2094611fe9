package services

import (
	"context"

	"poimap-server/models"
	"poimap-server/utils/errors"
)

// Action is something a role may or may not do.
type Action string

const (
	ActView             Action = "view"
	ActCreate           Action = "create"
	ActUpdate           Action = "update"
	ActApprove          Action = "approve"
	ActReject           Action = "reject"
	ActHide             Action = "hide"
	ActDelete           Action = "delete"
	ActRestore          Action = "restore"
	ActPurge            Action = "purge"
	ActManageCategories Action = "manage-categories"
	ActManageUsers      Action = "manage-users"
	ActImport           Action = "import"
	ActExport           Action = "export"
)

// Admins may do everything; ownership rules for users live in the point service.
var permissions = map[models.Role]map[Action]bool{
	models.RoleVisitor: {ActView: true},
	models.RoleUser:    {ActView: true, ActCreate: true, ActUpdate: true, ActDelete: true},
}

func Can(role models.Role, action Action) bool {
	if role == models.RoleAdmin {
		return true
	}
	return permissions[role][action]
}

// Visible reports whether p may see pt. Deleted points are only shown to
// admins that asked for them.
func Visible(p models.Principal, pt models.Point, includeDeleted bool) bool {
	if pt.Deleted {
		return includeDeleted && p.IsAdmin()
	}
	if p.IsAdmin() {
		return true
	}
	if p.IsAuthenticated() && pt.CreatedBy == p.UserID {
		return true
	}
	return pt.Status == models.StatusApproved && !pt.Hidden
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller, or a visitor when nobody logged in.
func PrincipalFromContext(ctx context.Context) models.Principal {
	if p, ok := ctx.Value(principalKey{}).(models.Principal); ok {
		return p
	}
	return models.Visitor
}

// authorize resolves the caller and checks action. Visitors get 401 so the
// client knows logging in may help, everyone else gets 403.
func authorize(ctx context.Context, action Action) (models.Principal, error) {
	p := PrincipalFromContext(ctx)
	if Can(p.Role, action) {
		return p, nil
	}
	if !p.IsAuthenticated() {
		return p, errors.ErrUnauthorized
	}
	return p, errors.ErrForbidden
}

// SystemPrincipal is used by the CLI for offline maintenance.
var SystemPrincipal = models.Principal{UserID: "system", Username: "system", Role: models.RoleAdmin}
