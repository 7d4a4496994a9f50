// Package auth provides concrete authorization gates for the driver-mode
// transition. The session controller only sees a predicate; the token
// mechanics live here so the policy stays swappable.
package auth

import (
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relabs-tech/shuttle_tracker/internal/session"
)

// Claims carried by a driver token.
type Claims struct {
	DriverID string `json:"driver_id"`
	jwt.RegisteredClaims
}

// GenerateDriverToken mints a token that authorizes driver mode for one
// driver identity. Used by the feed operator's tooling.
func GenerateDriverToken(secret, driverID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		DriverID: driverID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "shuttle-tracker",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateDriverToken parses and verifies a driver token.
func ValidateDriverToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}
	return claims, nil
}

// JWTAuthorizer returns an authorization gate that accepts a candidate
// driver ID only when the configured token is valid and names that exact
// driver.
func JWTAuthorizer(secret, tokenString string) session.Authorizer {
	return func(driverID string) bool {
		claims, err := ValidateDriverToken(secret, tokenString)
		if err != nil {
			log.Printf("auth: driver token rejected: %v", err)
			return false
		}
		return claims.DriverID == driverID
	}
}

// StaticAuthorizer accepts a fixed allow list. For development setups
// without a token issuer.
func StaticAuthorizer(allowed ...string) session.Authorizer {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	return func(driverID string) bool {
		_, ok := set[driverID]
		return ok
	}
}
