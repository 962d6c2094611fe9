package services

import (
	"context"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
)

type UserService struct {
	store  store.UserStore
	logger *zap.Logger
}

func NewUserService(users store.UserStore, logger *zap.Logger) *UserService {
	return &UserService{store: users, logger: logger}
}

// Me returns the logged in user.
func (s *UserService) Me(ctx context.Context) (models.User, error) {
	pr := PrincipalFromContext(ctx)
	if !pr.IsAuthenticated() {
		return models.User{}, errors.ErrUnauthorized
	}
	return s.get(ctx, pr.UserID)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	if _, err := authorize(ctx, ActManageUsers); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "DB_ERROR", "failed to load users", http.StatusInternalServerError)
	}
	return users, nil
}

// SetRole promotes or demotes a user. Administrators cannot change their own role.
func (s *UserService) SetRole(ctx context.Context, publicID string, role models.Role) (models.User, error) {
	pr, err := authorize(ctx, ActManageUsers)
	if err != nil {
		return models.User{}, err
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.User{}, errors.ErrInvalidInput.WithDetails("role must be user or admin")
	}
	if publicID == pr.UserID {
		return models.User{}, errors.ErrForbidden.WithDetails("administrators cannot change their own role")
	}
	if err := s.store.UpdateUserRole(ctx, publicID, role); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return models.User{}, errors.ErrNotFound
		}
		return models.User{}, errors.Wrap(err, "DB_ERROR", "failed to update role", http.StatusInternalServerError)
	}
	s.logger.Info("role changed", zap.String("user", publicID), zap.String("role", string(role)), zap.String("by", pr.Username))
	return s.get(ctx, publicID)
}

func (s *UserService) get(ctx context.Context, publicID string) (models.User, error) {
	user, err := s.store.GetUserByPublicID(ctx, publicID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return models.User{}, errors.ErrNotFound
		}
		return models.User{}, errors.Wrap(err, "DB_ERROR", "failed to load user", http.StatusInternalServerError)
	}
	return user, nil
}
