// Package auth holds everything between a browser and an authenticated user
// id: the Google OAuth client, the server-side session store, the signed
// session cookie, and the middleware that guards protected routes.
//
// SESSION FLOW OVERVIEW:
//  1. LoadSession reads the "ecosphere_session" cookie on every request
//  2. The cookie value is a JWT whose subject is an opaque session id
//  3. The session id keys an entry in MemoryStore holding the session values
//     (userId, loggedIn, likedPosts, pending registration data)
//  4. Handlers mutate the *Session from the context and call Save, which
//     writes the values back and refreshes the cookie
//
// WHY SIGN A SESSION ID?
// The id alone would already be unguessable (xid), but signing it lets the
// store reject forged or expired cookies without a map lookup, and gives the
// cookie an expiry the server enforces rather than trusting the browser.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"<session id>","iss":"ecosphere","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "ecosphere"

// ErrTokenExpired is returned by Verify for a well-formed token whose
// expiry has passed.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies session cookies.
//
// It holds the HMAC secret key. The same secret must be used for both
// operations, so restarting with a new SESSION_SECRET logs everyone out.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. The session id travels in "sub" (Subject).
type claims struct {
	jwt.RegisteredClaims
}

// Sign issues a token for sessionID that expires after ttl.
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric, which is all a single
// server needs.
func (s *TokenService) Sign(sessionID string, ttl time.Duration) (string, error) {
	if sessionID == "" {
		return "", errors.New("auth: cannot sign an empty session id")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses a token and returns the session id stored in its subject.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer is "ecosphere"
//   - Algorithm is HS256 (prevents "alg":"none" confusion attacks)
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
