package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
	appErrors "github.com/noah-isme/checkin-sync-agent/pkg/errors"
)

type userLookup interface {
	FindUser(ctx context.Context, email, password string) (*models.User, error)
}

type sessionStore interface {
	SetSession(session models.Session)
	ClearSession()
	Session() (models.Session, bool)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService logs organizers in against the backend, keeps the backend session in
// the store and issues agent access tokens for the local API.
type AuthService struct {
	users     userLookup
	store     sessionStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig

	mu       sync.Mutex
	onLogout []func(reason string)
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users userLookup, store sessionStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{users: users, store: store, validator: validate, logger: logger, config: config}
}

// OnLogout registers a callback fired whenever the session is cleared.
func (s *AuthService) OnLogout(fn func(reason string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Login authenticates against the backend and returns an agent access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindUser(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if user.Role == "" {
		user.Role = models.RoleOrganizer
	}

	token := user.Token
	if token == "" {
		token = uuid.NewString()
	}
	issuedAt := time.Now().UTC()
	s.store.SetSession(models.Session{User: *user, Token: token, LoggedInAt: issuedAt})

	accessToken, err := s.generateAccessToken(user, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("organizer logged in", zap.Int64("user_id", user.ID))

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User: models.UserInfo{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

// Logout clears the backend session.
func (s *AuthService) Logout(reason string) {
	if _, ok := s.store.Session(); !ok {
		return
	}
	s.store.ClearSession()
	s.logger.Info("session cleared", zap.String("reason", reason))

	s.mu.Lock()
	hooks := append([]func(string){}, s.onLogout...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(reason)
	}
}

// HandleUnauthorized forces a logout after the backend rejected the session.
func (s *AuthService) HandleUnauthorized() {
	s.Logout("backend returned 401")
}

// BackendToken returns the bearer token for backend calls.
func (s *AuthService) BackendToken() string {
	session, ok := s.store.Session()
	if !ok {
		return ""
	}
	return session.Token
}

// CurrentUser returns the logged-in backend user.
func (s *AuthService) CurrentUser() (*models.UserInfo, error) {
	session, ok := s.store.Session()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not logged in")
	}
	return &models.UserInfo{ID: session.User.ID, Email: session.User.Email, Name: session.User.Name, Role: session.User.Role}, nil
}

// ValidateToken parses an agent access token. Tokens are only honoured while the
// backend session they were issued for is still present.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	session, ok := s.store.Session()
	if !ok || session.User.ID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
