package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

// AuthConfig defines the moderation-login configuration. The deployment
// carries a single bcrypt-hashed admin password rather than user accounts.
type AuthConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenExpiry  time.Duration
}

// AuthService issues and validates moderation tokens.
type AuthService struct {
	config AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(config AuthConfig, logger *zap.Logger) *AuthService {
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{config: config, logger: logger, now: time.Now}
}

// Login verifies the admin password and returns a signed token.
func (s *AuthService) Login(_ context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password is required")
	}
	if s.config.PasswordHash == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "moderation login is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("failed moderation login attempt")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid password")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.config.TokenExpiry)
	claims := models.AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return &dto.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses a moderation token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.AdminClaims, error) {
	claims := &models.AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if claims.Role != "admin" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "insufficient role")
	}
	return claims, nil
}
