// Package api implements the Ansuz REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Auth modes accepted by AuthMiddleware.
const (
	AuthDisabled = "disabled"
	AuthToken    = "token"
	AuthJWT      = "jwt"
)

// AuthOptions configures request authentication.
type AuthOptions struct {
	Mode      string // disabled, token, or jwt
	Token     string // static bearer token (token mode)
	JWTSecret string // HS256 signing secret (jwt mode)
}

// AuthMiddleware returns middleware enforcing the configured auth mode.
// Token mode compares the bearer token against a shared static value; jwt
// mode verifies an HS256-signed JWT against the shared secret.
func AuthMiddleware(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Mode == "" || opts.Mode == AuthDisabled {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			bearer := strings.TrimPrefix(auth, "Bearer ")

			switch opts.Mode {
			case AuthToken:
				if bearer != opts.Token {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
			case AuthJWT:
				_, err := jwt.Parse(bearer, func(t *jwt.Token) (any, error) {
					return []byte(opts.JWTSecret), nil
				}, jwt.WithValidMethods([]string{"HS256"}))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
			default:
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
