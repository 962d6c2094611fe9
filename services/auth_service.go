package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"poimap-server/events"
	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
)

var (
	ErrInvalidCredentials = errors.NewAPIError("INVALID_CREDENTIALS", "Invalid username or password", http.StatusUnauthorized)
	ErrUsernameTaken      = errors.NewAPIError("USERNAME_TAKEN", "Username is already registered", http.StatusConflict)
	ErrInvalidToken       = errors.NewAPIError("INVALID_TOKEN", "Session is invalid or expired", http.StatusUnauthorized)
)

// Revoker stores logged-out token ids (cache.Revocations in production).
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthService struct {
	store      store.UserStore
	revoker    Revoker
	events     events.Publisher
	logger     *zap.Logger
	jwtSecret  []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users store.UserStore, revoker Revoker, pub events.Publisher, logger *zap.Logger, jwtSecret string, ttl time.Duration) *AuthService {
	return &AuthService{
		store:      users,
		revoker:    revoker,
		events:     pub,
		logger:     logger,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: ttl,
		now:        time.Now,
	}
}

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Register creates a new user with the regular user role.
func (s *AuthService) Register(ctx context.Context, username, password string) (models.User, error) {
	return s.createUser(ctx, strings.TrimSpace(username), password, models.RoleUser)
}

func (s *AuthService) createUser(ctx context.Context, username, password string, role models.Role) (models.User, error) {
	if fields := ValidateCredentials(username, password); len(fields) > 0 {
		return models.User{}, errors.Validation(fields)
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}

	user := models.User{
		PublicID:     uuid.New().String(),
		Username:     username,
		PasswordHash: string(passwordHash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, errors.Wrap(err, "DB_ERROR", "failed to create user in database", http.StatusInternalServerError)
	}
	s.logger.Info("user registered", zap.String("username", username), zap.String("role", string(role)))
	return user, nil
}

// Login authenticates a user and returns a signed session token
func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, errors.Wrap(err, "DB_ERROR", "failed to load user", http.StatusInternalServerError)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.sessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userID":   user.PublicID,
		"username": user.Username,
		"role":     string(user.Role),
		"jti":      uuid.New().String(),
		"iat":      now.Unix(),
		"exp":      expires.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return Session{}, errors.Wrap(err, "JWT_ERROR", "Failed to generate token", http.StatusInternalServerError)
	}

	publish(ctx, s.events, s.logger, events.Event{
		Type:    events.Login,
		At:      now.UTC(),
		Actor:   user.PublicID,
		Payload: map[string]any{"username": user.Username, "role": user.Role},
	})
	return Session{Token: tokenString, ExpiresAt: time.Unix(expires.Unix(), 0).UTC(), User: user}, nil
}

// Authenticate verifies a token and resolves the caller. The role is read
// from the user record so role changes apply to existing sessions.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (models.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, ErrInvalidToken
	}
	userID, _ := claims["userID"].(string)
	tokenID, _ := claims["jti"].(string)
	if userID == "" || tokenID == "" {
		return models.Principal{}, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return models.Principal{}, ErrInvalidToken
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, tokenID)
		if err != nil {
			return models.Principal{}, errors.Wrap(err, "CACHE_ERROR", "failed to check session", http.StatusInternalServerError)
		}
		if revoked {
			return models.Principal{}, ErrInvalidToken
		}
	}

	user, err := s.store.GetUserByPublicID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return models.Principal{}, ErrInvalidToken
		}
		return models.Principal{}, errors.Wrap(err, "DB_ERROR", "failed to load user", http.StatusInternalServerError)
	}
	return models.Principal{
		UserID:   user.PublicID,
		Username: user.Username,
		Role:     user.Role,
		TokenID:  tokenID,
		Expires:  exp.Time,
	}, nil
}

// Logout revokes the caller's current token.
func (s *AuthService) Logout(ctx context.Context) error {
	pr := PrincipalFromContext(ctx)
	if !pr.IsAuthenticated() {
		return errors.ErrUnauthorized
	}
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, pr.TokenID, pr.Expires); err != nil {
			return errors.Wrap(err, "CACHE_ERROR", "failed to revoke session", http.StatusInternalServerError)
		}
	} else {
		s.logger.Warn("no revocation store configured, token stays valid until expiry", zap.String("user", pr.Username))
	}
	publish(ctx, s.events, s.logger, events.Event{Type: events.Logout, At: s.now().UTC(), Actor: pr.UserID})
	return nil
}

// EnsureAdmin creates the bootstrap administrator if it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	existing, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			s.logger.Warn("bootstrap admin name belongs to a non-admin user", zap.String("username", username))
		}
		return false, nil
	}
	if !stderrors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if _, err := s.createUser(ctx, username, password, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
