// Package tokens issues and verifies the signed access credential. The
// token encodes id, username and role at issuance; role changes after
// issuance only take effect once the token expires (admin routes re-check
// the stored role as a partial mitigation).
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ciata/ciata-cms/internal/models"
)

// ErrInvalidToken covers expired, malformed and badly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64       `json:"uid"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// Generate creates a signed HS256 access token for the user.
func Generate(secret []byte, u *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies the signature and expiry and returns the claims.
func Parse(secret []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
