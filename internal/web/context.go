package web

import (
	"net/http"

	"github.com/JonMunkholm/bomimport/internal/core"
)

// withOrigin tags the request context with the caller for import logs.
// RemoteAddr has already been resolved by TrustedRealIP.
func withOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithOrigin(r.Context(), core.Origin{
			Source:    "http",
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
