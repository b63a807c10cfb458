package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	domsession "github.com/kailas-cloud/puppyradar/internal/domain/session"
	logpkg "github.com/kailas-cloud/puppyradar/internal/logger"
)

// exemptPaths are routes served without a session (login, health, metrics).
var exemptPaths = map[string]struct{}{
	"/":        {},
	"/login":   {},
	"/health":  {},
	"/metrics": {},
}

type sessionCtxKey struct{}

// SessionLoader resolves a session id to its state.
type SessionLoader interface {
	Get(ctx context.Context, sid string) (domsession.State, error)
}

// SessionAuthMiddleware loads the session named by the session cookie and puts
// it in the request context. Requests without a logged-in session are sent to
// the login page; JSON API requests get 401 instead.
func SessionAuthMiddleware(sessions SessionLoader, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			var sid string
			if ck, err := r.Cookie(cookieName); err == nil {
				sid = ck.Value
			}

			st, err := sessions.Get(r.Context(), sid)
			if err != nil || !st.Authenticated() {
				if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
					logpkg.FromContext(r.Context()).Warn("load session failed", zap.Error(err))
				}
				clearSessionCookie(w, cookieName)
				denyAnonymous(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionCtxKey{}, st)
			ctx = logpkg.WithFields(ctx, zap.String("session_id", st.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFromContext returns the session loaded by SessionAuthMiddleware.
func sessionFromContext(ctx context.Context) (domsession.State, bool) {
	st, ok := ctx.Value(sessionCtxKey{}).(domsession.State)
	return st, ok
}

func denyAnonymous(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "login required")
		return
	}
	http.Redirect(w, r, domain.LoginPage, http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func setSessionCookie(w http.ResponseWriter, name, sid string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sid,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
