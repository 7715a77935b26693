package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// Claims defines the structured data we expect in the handshake JWT. The
// platform's auth service issues these tokens; the gateway only verifies.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	EmpresaID uuid.UUID `json:"empresa_id"`
	Role      string    `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

var _ ports.TokenVerifier = (*TokenManager)(nil)

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// GenerateToken creates a signed token. The gateway never issues tokens in
// production; this exists for tests and local tooling.
func (tm *TokenManager) GenerateToken(userID, empresaID uuid.UUID, role domain.Role) (string, error) {
	claims := &Claims{
		UserID:    userID,
		EmpresaID: empresaID,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.ttl)),
			Subject:   userID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// Verify parses and validates a handshake token and extracts the identity
// the gateway tracks per connection. A token without a tenant claim is
// rejected even when the signature is valid.
func (tm *TokenManager) Verify(tokenString string) (*ports.IdentityClaims, error) {
	if tokenString == "" {
		return nil, apperrors.ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	if claims.EmpresaID == uuid.Nil {
		return nil, apperrors.ErrMissingTenant
	}
	if claims.UserID == uuid.Nil {
		return nil, apperrors.ErrInvalidToken
	}

	return &ports.IdentityClaims{
		UserID:    claims.UserID,
		EmpresaID: claims.EmpresaID,
		Role:      domain.NormalizeRole(claims.Role),
	}, nil
}
