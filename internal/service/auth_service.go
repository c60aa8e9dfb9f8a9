package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
	appErrors "github.com/noah-isme/edubot-api/pkg/errors"
)

// AuthConfig holds token inspection settings. An empty secret reads claims without verifying
// the signature; the external token service stays the authority.
type AuthConfig struct {
	AccessTokenSecret string
}

// AuthService inspects bearer tokens issued by the external token service.
type AuthService struct {
	config AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs the token inspector.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{config: config, logger: logger, now: time.Now}
}

// Verifies reports whether signatures are checked.
func (s *AuthService) Verifies() bool {
	return s.config.AccessTokenSecret != ""
}

// ValidateToken parses an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	if !s.Verifies() {
		return s.inspectUnverified(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) inspectUnverified(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// UserContextFromClaims builds the per-turn user description. Nil claims mean anonymous.
func UserContextFromClaims(claims *models.JWTClaims, token, displayName string) models.UserContext {
	if claims == nil {
		return models.UserContext{}
	}
	if displayName == "" {
		displayName = claims.Name
	}
	return models.UserContext{
		Authenticated: true,
		Token:         token,
		UserID:        string(claims.UserID),
		DisplayName:   displayName,
	}
}
