package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// Claims defines the structured data carried by the service-desk access token.
// Older tokens carry a single "role", newer ones a "roles" list.
type Claims struct {
	UserID string   `json:"user_id,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Role   string   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the principal used for room selection.
func (c *Claims) Identity() domain.Identity {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}

	roles := append([]string(nil), c.Roles...)
	if c.Role != "" {
		roles = append(roles, c.Role)
	}
	return domain.Identity{UserID: userID, Roles: roles}
}

// TokenManager reads identities out of access tokens. With a secret it also
// verifies HS256 signatures; without one the claims are read unverified,
// since the server remains the authority on token validity.
type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

var _ ports.IdentityResolver = (*TokenManager)(nil)

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// GenerateToken creates a signed access token. Requires a secret.
func (tm *TokenManager) GenerateToken(userID string, roles []string) (string, error) {
	if len(tm.secretKey) == 0 {
		return "", errors.New("token manager has no signing secret")
	}
	claims := &Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.ttl)),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Resolve implements ports.IdentityResolver.
func (tm *TokenManager) Resolve(accessToken string) (domain.Identity, error) {
	if accessToken == "" {
		return domain.Identity{}, errors.New("empty access token")
	}

	var claims *Claims
	if len(tm.secretKey) > 0 {
		validated, err := tm.ValidateToken(accessToken)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("validate access token: %w", err)
		}
		claims = validated
	} else {
		claims = &Claims{}
		if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
			return domain.Identity{}, fmt.Errorf("parse access token: %w", err)
		}
	}

	identity := claims.Identity()
	if identity.IsZero() {
		return domain.Identity{}, errors.New("access token carries no subject")
	}
	return identity, nil
}
