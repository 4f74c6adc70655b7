package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// Principal is the authenticated caller
type Principal struct {
	ID   uuid.UUID
	Role string
}

type principalKey struct{}

// PrincipalFromContext extracts the authenticated caller from the request
// context. The auth middleware guarantees it is present on protected routes.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator verifies bearer tokens and stamps the principal on requests
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator over an HMAC signing secret
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates a signed token and returns its principal
func (a *Authenticator) ParseToken(tokenString string) (Principal, error) {
	var claims authClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, shared.NewUnauthorizedError("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, shared.NewUnauthorizedError("invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, shared.NewUnauthorizedError("invalid subject claim")
	}
	if claims.Role == "" {
		return Principal{}, shared.NewUnauthorizedError("missing role claim")
	}
	return Principal{ID: id, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			respondError(w, r, shared.NewUnauthorizedError("missing bearer token"))
			return
		}

		principal, err := a.ParseToken(tokenString)
		if err != nil {
			respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// requireRole returns the principal when it carries the expected role
func requireRole(r *http.Request, role string) (Principal, error) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		return Principal{}, shared.NewUnauthorizedError("missing bearer token")
	}
	if p.Role != role {
		return Principal{}, shared.NewForbiddenError("requires " + role + " role")
	}
	return p, nil
}
