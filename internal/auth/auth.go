// Package auth issues and verifies the HS256 bearer tokens that identify
// API users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func New(secret, issuer string, ttl time.Duration) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for u valid for the configured TTL.
func (a *Authenticator) Issue(u core.User) (string, error) {
	if strings.TrimSpace(u.UID) == "" {
		return "", errors.New("user id required")
	}
	if !validUID(u.UID) {
		return "", errors.New("user id contains control characters")
	}
	now := a.now()
	claims := Claims{
		Email:   u.Email,
		Name:    u.DisplayName,
		Picture: u.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies raw and returns the user it names. Every failure wraps
// ErrUnauthenticated.
func (a *Authenticator) Parse(raw string) (*core.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}
	if !validUID(claims.Subject) {
		return nil, fmt.Errorf("%w: malformed subject", ErrUnauthenticated)
	}
	return &core.User{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}, nil
}

// validUID rejects control characters; cache keys use NUL as a separator.
func validUID(uid string) bool {
	return !strings.ContainsFunc(uid, unicode.IsControl)
}

type userKey struct{}

func WithUser(ctx context.Context, u *core.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the authenticated user stored by Middleware.
func UserFrom(ctx context.Context) (*core.User, bool) {
	u, ok := ctx.Value(userKey{}).(*core.User)
	return u, ok && u != nil
}

// TokenFromRequest reads the bearer token from the Authorization header, or
// the token query parameter browsers use for WebSocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token and stores the user in
// the request context. onFail writes the 401 response.
func (a *Authenticator) Middleware(logger *log.Logger, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAuth)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				onFail(w, r, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated))
				return
			}
			u, err := a.Parse(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "Rejected token", log.FieldPath, r.URL.Path, log.FieldError, err)
				onFail(w, r, err)
				return
			}
			ctx := log.WithAttrs(WithUser(r.Context(), u), log.FieldUserID, u.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
