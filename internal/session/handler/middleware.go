package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"certledger/internal/platform/middleware"
	"certledger/internal/session/models"
)

const (
	// SessionCookie carries the guest session id between requests.
	SessionCookie = "guest_session_id"
	// SessionHeader is the alternative for clients that do not keep cookies.
	SessionHeader = "X-Guest-Session-Id"

	cookieMaxAge = 24 * time.Hour
)

type contextKey string

const contextKeySession contextKey = "guest_session"

// SessionFromContext returns the guest session resolved by EnsureSession.
func SessionFromContext(ctx context.Context) *models.GuestSession {
	session, _ := ctx.Value(contextKeySession).(*models.GuestSession)
	return session
}

// Ensurer resolves or creates the caller's session.
type Ensurer interface {
	Ensure(ctx context.Context, id, ipAddress, userAgent string) (*models.GuestSession, bool, error)
}

// EnsureSession attaches a guest session to every request. The id is read
// from the cookie first, then the header; a missing, unknown or ended id
// gets a fresh session. Presenting the same id twice resolves to the same
// session, so the middleware is idempotent across retries.
func EnsureSession(sessions Ensurer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			session, created, err := sessions.Ensure(ctx, presentedID(r), ClientIP(r), r.UserAgent())
			if err != nil {
				logger.ErrorContext(ctx, "failed to resolve guest session",
					"request_id", middleware.GetRequestID(ctx),
					"error", err.Error(),
				)
				http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
				return
			}

			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    session.ID,
					Path:     "/",
					MaxAge:   int(cookieMaxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, session.ID)

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, contextKeySession, session)))
		})
	}
}

func presentedID(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get(SessionHeader)
}

// ClientIP extracts the remote host from the request, without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
