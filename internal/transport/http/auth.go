package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"exam-prep-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the bearer token claims; the subject is the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type userKey struct{}

// Authenticator resolves the current user from a bearer token. Requests
// without a token stay anonymous; a token that fails validation is rejected.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || len(a.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := a.validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}

func (a *Authenticator) validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// WithUser attaches an authenticated user id to ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the authenticated user, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// actingUser picks the user an unauthenticated client claims in its body. A
// signed-in user may only act as themself.
func actingUser(ctx context.Context, claimed string) (string, error) {
	if id := UserID(ctx); id != "" {
		if claimed != "" && claimed != id {
			return "", domain.ErrForbidden
		}
		return id, nil
	}
	if claimed == "" {
		return "", domain.ErrUnauthenticated
	}
	return claimed, nil
}
