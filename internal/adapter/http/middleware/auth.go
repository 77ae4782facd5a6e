package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/infrastructure/auth"
)

// OwnerIDHeader names the owner when authentication is disabled.
const OwnerIDHeader = "X-Owner-ID"

type ownerKey struct{}

// OwnerAuth resolves the owner of every request. With a JWT manager the
// owner comes from the bearer token's owner_id claim; without one the
// X-Owner-ID header is trusted, which is only meant for development.
func OwnerAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				ownerID int64
				msg     string
			)

			if jwtManager != nil {
				ownerID, msg = ownerFromToken(jwtManager, r.Header.Get("Authorization"))
			} else {
				ownerID, msg = ownerFromHeader(r.Header.Get(OwnerIDHeader))
			}

			if msg != "" {
				writeUnauthorized(w, msg)
				return
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("owner_id", ownerID)
			})

			ctx := context.WithValue(r.Context(), ownerKey{}, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ownerFromToken(jwtManager *auth.JWTManager, header string) (int64, string) {
	if header == "" {
		return 0, "missing authorization header"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, "invalid authorization header format"
	}

	claims, err := jwtManager.Verify(parts[1])
	if err != nil {
		return 0, "invalid or expired token"
	}

	return claims.OwnerID, ""
}

func ownerFromHeader(header string) (int64, string) {
	if header == "" {
		return 0, "missing " + OwnerIDHeader + " header"
	}

	ownerID, err := strconv.ParseInt(header, 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, "invalid " + OwnerIDHeader + " header"
	}

	return ownerID, ""
}

// OwnerIDFromContext returns the owner resolved by OwnerAuth.
func OwnerIDFromContext(ctx context.Context) (int64, bool) {
	ownerID, ok := ctx.Value(ownerKey{}).(int64)
	return ownerID, ok
}

// WithOwnerID stores ownerID the way OwnerAuth does.
func WithOwnerID(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + msg + `","retryable":false}`))
}
