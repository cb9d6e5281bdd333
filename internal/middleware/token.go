package middleware

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS256 token in the shape RequireAuth accepts. Production
// tokens come from the identity provider; this serves local tooling and tests.
func IssueToken(secret []byte, audience, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
