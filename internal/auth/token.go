package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
)

// Claims holds the JWT claims bound to an issued token.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

// TokenProvider issues and verifies HS256 tokens for both the HTTP surface
// and the live websocket coordinator.
type TokenProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenProvider(secret, issuer string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue signs a token for u.
func (p *TokenProvider) Issue(u domain.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Name: u.Name,
		Role: u.Role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Verify validates token and returns the identity it carries. Failures are
// reported as unauthenticated with a human-readable reason.
func (p *TokenProvider) Verify(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("No token provided"))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("Invalid token: %v", err),
			errors.WithCause(err))
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Identity{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("Invalid token subject"),
			errors.WithCause(err))
	}

	return domain.Identity{
		UserID: id,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
