package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"skyview/internal/core"
	"skyview/internal/types"
)

// ClientIDHeader lets non-browser callers name their client explicitly.
const ClientIDHeader = "X-Client-Id"

// ClientIdentity resolves which client a request belongs to. The client ID
// scopes the stored language preference and the session state.
//
// Resolution order: the X-Client-Id header (must be a UUID), then the
// session cookie. When neither yields a valid ID a new one is issued in the
// cookie.
type ClientIdentity struct {
	cookieName string
	maxAge     time.Duration
	secure     bool
}

// NewClientIdentity creates a ClientIdentity. maxAge controls the cookie
// lifetime; secure sets the cookie's Secure attribute.
func NewClientIdentity(cookieName string, maxAge time.Duration, secure bool) *ClientIdentity {
	return &ClientIdentity{
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
	}
}

// Middleware stores the resolved client ID in the request context.
func (c *ClientIdentity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(ClientIDHeader); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				core.Error(w, r, types.NewAppErrorWithDetails(
					types.ErrCodeValidationInvalidClientID,
					"X-Client-Id must be a UUID",
					err,
					map[string]any{"header": ClientIDHeader},
				))
				return
			}
			w.Header().Set(ClientIDHeader, id.String())
			next.ServeHTTP(w, r.WithContext(types.WithClientID(r.Context(), id.String())))
			return
		}

		id, ok := c.fromCookie(r)
		if !ok {
			id = uuid.NewString()
			http.SetCookie(w, c.cookie(id))
		}
		w.Header().Set(ClientIDHeader, id)
		next.ServeHTTP(w, r.WithContext(types.WithClientID(r.Context(), id)))
	})
}

// fromCookie returns the cookie's client ID. Malformed values are ignored so
// a fresh ID replaces them.
func (c *ClientIdentity) fromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (c *ClientIdentity) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     c.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
