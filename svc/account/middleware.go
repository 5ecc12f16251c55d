package account

import (
	"net/http"

	"github.com/google/uuid"
)

// HeaderIdentity trusts the X-Account-ID header as the authenticated
// identity. It is a stand-in for a real authentication layer, which is
// expected to call SetIDToContext the same way after verifying
// credentials.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Account-ID"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(SetIDToContext(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
