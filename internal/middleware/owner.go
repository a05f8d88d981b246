package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// GuestCookie names the cookie that carries an anonymous session id.
const GuestCookie = "trip_guest"

const guestCookieMaxAge = 365 * 24 * 60 * 60

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying owner.
func WithOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner resolved for the request, if any.
func OwnerFrom(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerKey{}).(domain.Owner)
	return owner, ok
}

// NewOwnerResolver returns a middleware that identifies who is calling.
//
// A valid HS256 bearer token yields its "sub" claim as an authenticated owner.
// A present but invalid token is rejected with 401. Without a token the
// caller is a guest: the id comes from the guest cookie, and a fresh random
// one is issued when the cookie is missing or malformed. An empty secret
// disables token auth and every caller is a guest.
func NewOwnerResolver(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok && len(secret) > 0 {
				sub, err := subjectFrom(token, secret)
				if err != nil {
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), domain.Owner{ID: sub})))
				return
			}

			id := guestID(r)
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     GuestCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   guestCookieMaxAge,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Secure:   r.TLS != nil,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), domain.Owner{ID: id, Guest: true})))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func subjectFrom(token string, secret []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func guestID(r *http.Request) string {
	c, err := r.Cookie(GuestCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}
