package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shipstack/courier-api/internal/domain/auth"
)

// ScopeAdmin gates the /admin route group.
const ScopeAdmin = auth.ScopeAdmin

// APIKeyHeader carries the caller's key.
const APIKeyHeader = "api_key"

// HashKey computes the hex HMAC-SHA256 of an API key under the pepper.
// Only this hash is ever stored or compared.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type keyInfoKey struct{}

// KeyFromContext returns the authenticated key info, if any.
func KeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// KeyAuth authenticates requests via HMAC-SHA256 hashed API keys.
type KeyAuth struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewKeyAuth creates a KeyAuth with the given API key repository and HMAC
// pepper.
func NewKeyAuth(apikeys auth.Repository, pepper []byte) *KeyAuth {
	return &KeyAuth{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Require returns a middleware that rejects requests without a valid API key
// (401) and, when scope is non-empty, without that scope (403). The computed
// hash is compared against the stored one in constant time to prevent timing
// side-channels.
func (a *KeyAuth) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "api key required")
				return
			}

			mac := hmac.New(sha256.New, a.pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := a.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if scope != "" && !info.HasScope(scope) {
				zctx.From(r.Context()).Warn("Key lacks required scope",
					zap.String("key", info.Name),
					zap.String("scope", scope),
				)
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), keyInfoKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
