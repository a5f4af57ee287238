// Package auth resolves the current user from HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"livrocaixa/internal/core"
)

// RoleAdmin is the privileged role: it may manage accounts and categories.
const RoleAdmin = "admin"

// User is the authenticated caller.
type User struct {
	ID   string
	Role string
}

// IsPrivileged reports whether u may run administrative operations.
func IsPrivileged(u User) bool {
	return u.Role == RoleAdmin
}

// Claims is the token payload: sub, role and exp.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIssuer(secret, issuer string) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("missing JWT_SECRET")
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl.
func (i *Issuer) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token. An expired token yields core.ErrSessionExpired; any
// other failure yields core.ErrUnauthenticated.
func (i *Issuer) Verify(token string) (User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, fmt.Errorf("verify token: %w", core.ErrSessionExpired)
		}
		return User{}, fmt.Errorf("verify token: %w: %v", core.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return User{}, fmt.Errorf("verify token: %w: missing subject", core.ErrUnauthenticated)
	}
	return User{ID: claims.Subject, Role: claims.Role}, nil
}

type ctxKey struct{}

type identity struct {
	user User
	err  error
}

// WithUser stores u as the current user.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity{user: u})
}

// CurrentUser returns the caller stored by Middleware or WithUser.
func CurrentUser(ctx context.Context) (User, error) {
	id, ok := ctx.Value(ctxKey{}).(identity)
	if !ok {
		return User{}, core.ErrUnauthenticated
	}
	if id.err != nil {
		return User{}, id.err
	}
	return id.user, nil
}

// Middleware resolves the bearer token of every request. It never rejects;
// handlers ask CurrentUser and map its error.
func Middleware(iss *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				next.ServeHTTP(w, r)
				return
			}
			u, err := iss.Verify(strings.TrimSpace(token))
			ctx := context.WithValue(r.Context(), ctxKey{}, identity{user: u, err: err})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
