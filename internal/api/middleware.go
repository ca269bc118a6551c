package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// PinMiddleware enforces the shared workshop PIN. An empty PIN leaves the
// API open, which is the usual setup for in-room workshops.
type PinMiddleware struct {
	pin string
}

// NewPinMiddleware creates a PIN middleware. Pass an empty pin to disable
// authentication.
func NewPinMiddleware(pin string) *PinMiddleware {
	return &PinMiddleware{pin: pin}
}

// Authenticate checks the X-Workshop-Pin header (or an equivalent Bearer
// token) against the configured PIN.
func (m *PinMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.pin == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("X-Workshop-Pin")
		if got == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(m.pin)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing workshop PIN")
			return
		}

		next.ServeHTTP(w, r)
	})
}
