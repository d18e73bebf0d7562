package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bcafe/restaurant-service/internal/store"
)

type authContextKey struct{}

func AuthMiddleware(sessions store.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := sessions.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (store.Session, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return store.Session{}, false
	}
	session, ok := value.(store.Session)
	if !ok {
		return store.Session{}, false
	}
	return session, true
}

// requireRole writes the error response itself when the caller is missing a
// session or holds none of the listed roles.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (store.Session, bool) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return store.Session{}, false
	}
	for _, role := range roles {
		if session.Role == role {
			return session, true
		}
	}
	writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "access denied")
	return store.Session{}, false
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// Guests submit reservations and browse the menu without a session; everything
// else goes through the sessions table.
func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/reservations":
		return r.Method == http.MethodPost
	case "/api/tables/available":
		return r.Method == http.MethodGet
	case "/api/menu", "/api/categories":
		return r.Method == http.MethodGet
	}
	if strings.HasPrefix(r.URL.Path, "/api/menu/") {
		return r.Method == http.MethodGet
	}
	return r.Method == http.MethodOptions
}
