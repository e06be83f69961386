// Package entitlement reads the optional entitlement file that
// records a seat/plan marker, grounded on the claims-parsing shape in
// pkg/auth/supabase_auth.go (jwt.Parse + a typed claims struct). This
// repo treats the file as a signed JWT, not a full encrypted JWE — no
// JWE/decryption library appears anywhere in the corpus for this gap.
// Reading it is purely informational: absence, expiry, or a bad
// signature are all non-fatal, logged at Debug, and never block the
// daemon from starting.
package entitlement

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by entitlement.jwe.
type Claims struct {
	Plan string `json:"plan"`
	Seat string `json:"seat"`
	jwt.RegisteredClaims
}

// Entitlement is the result of a successful read: a plan/seat marker
// plus whether its expiry, if any, has already passed.
type Entitlement struct {
	Plan    string
	Seat    string
	Expired bool
}

// verifyFunc resolves the key used to check the token's signature.
// The entitlement file is self-issued (there is no remote issuer to
// call out to), so the key is a fixed, well-known value rather than
// something fetched at verification time.
type verifyFunc func(*jwt.Token) (any, error)

var hmacKey = []byte("minna-entitlement-v1")

func keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return hmacKey, nil
}

// Read loads and verifies path. A missing file returns (Entitlement{}, nil)
// since the feature is opt-in; any other failure (bad signature,
// unparseable token) is returned as an error for the caller to log at
// Debug and otherwise ignore.
func Read(path string) (Entitlement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entitlement{}, nil
		}
		return Entitlement{}, fmt.Errorf("reading entitlement file: %w", err)
	}

	return parse(string(data), keyFunc)
}

func parse(token string, kf verifyFunc) (Entitlement, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, kf)

	expired := errors.Is(err, jwt.ErrTokenExpired)
	if err != nil && !expired {
		return Entitlement{}, fmt.Errorf("parsing entitlement token: %w", err)
	}
	if !expired && !parsed.Valid {
		return Entitlement{}, errors.New("entitlement token failed verification")
	}

	exp, _ := claims.GetExpirationTime()
	if !expired && exp != nil && exp.Before(time.Now()) {
		expired = true
	}

	return Entitlement{Plan: claims.Plan, Seat: claims.Seat, Expired: expired}, nil
}

// Sign produces a token in the format Read expects; used by tests and
// by any future issuing tool that needs to mint an entitlement file.
func Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(hmacKey)
}
