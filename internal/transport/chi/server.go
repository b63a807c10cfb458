package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	"github.com/kailas-cloud/puppyradar/internal/domain/search/query"
	domsession "github.com/kailas-cloud/puppyradar/internal/domain/session"
	logpkg "github.com/kailas-cloud/puppyradar/internal/logger"
	healthuc "github.com/kailas-cloud/puppyradar/internal/usecase/health"
	matchuc "github.com/kailas-cloud/puppyradar/internal/usecase/match"
	searchuc "github.com/kailas-cloud/puppyradar/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/puppyradar/internal/usecase/session"
)

// Error codes of JSON error responses.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeInvalidLogin = "invalid_login"
	codeUpstream     = "upstream_error"
	codeNoLikedDogs  = "no_liked_dogs"
	codeInternal     = "internal_error"
)

const searchPath = "/search"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, r *http.Request, err error) bool

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Options are the transport settings taken from configuration.
type Options struct {
	CookieName   string
	CookieMaxAge int
	SecureCookie bool
	Search       domain.SearchConfig
}

// Server serves the PuppyRadar pages and the JSON search API.
type Server struct {
	sessions      *sessionuc.Service
	searches      *searchuc.Registry
	matches       *matchuc.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP server.
func NewServer(
	sessions *sessionuc.Service,
	searches *searchuc.Registry,
	matches *matchuc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		searches: searches,
		matches:  matches,
		health:   health,
		opts:     opts,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		s.unauthorizedHandler,
		sentinelHandler(domain.ErrInvalidLogin, http.StatusBadRequest, codeInvalidLogin),
		sentinelHandler(domain.ErrNoLikedDogs, http.StatusBadRequest, codeNoLikedDogs),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, codeUpstream),
	}
	return s
}

// Routes registers every handler on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/", s.LoginPage)
	r.Post("/login", s.Login)
	r.Post("/logout", s.Logout)

	r.Get(searchPath, s.SearchPage)
	r.Get("/api/search", s.SearchJSON)
	r.Post("/search/breeds", s.SelectBreeds)
	r.Post("/search/sort", s.ChangeSort)
	r.Post("/search/age", s.ChangeAgeRange)
	r.Post("/search/page", s.ChangePage)

	r.Post("/dogs/{id}/like", s.ToggleLike)
	r.Get("/match", s.Match)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// LoginPage handles GET /. Logged-in visitors go straight to the search page.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(s.opts.CookieName); err == nil {
		if st, err := s.sessions.Get(r.Context(), ck.Value); err == nil && st.Authenticated() {
			http.Redirect(w, r, searchPath, http.StatusSeeOther)
			return
		}
	}
	s.renderPage(w, r, http.StatusOK, "login.html", loginPage{})
}

// Login handles POST /login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "invalid form")
		return
	}
	form := sessionuc.LoginForm{
		FirstName: r.PostForm.Get("firstName"),
		LastName:  r.PostForm.Get("lastName"),
		Email:     r.PostForm.Get("email"),
	}

	st, err := s.sessions.Login(r.Context(), form)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidLogin) && !wantsJSON(r) {
			s.renderPage(w, r, http.StatusBadRequest, "login.html", loginPage{
				FirstName: form.FirstName,
				LastName:  form.LastName,
				Email:     form.Email,
				Error:     "Please enter your first name, last name and a valid email.",
			})
			return
		}
		s.handleDomainError(w, r, err)
		return
	}

	setSessionCookie(w, s.opts.CookieName, st.ID, s.opts.CookieMaxAge, s.opts.SecureCookie)
	http.Redirect(w, r, searchPath, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if st, ok := sessionFromContext(r.Context()); ok {
		if err := s.sessions.Logout(r.Context(), st.ID); err != nil {
			logpkg.FromContext(r.Context()).Warn("logout failed", zap.Error(err))
		}
	}
	clearSessionCookie(w, s.opts.CookieName)
	http.Redirect(w, r, domain.LoginPage, http.StatusSeeOther)
}

// SearchPage handles GET /search.
func (s *Server) SearchPage(w http.ResponseWriter, r *http.Request) {
	st, view, ok := s.runQuery(w, r)
	if !ok {
		return
	}
	current := view.Query
	ret := searchPath + "?" + current.Encode()
	s.renderPage(w, r, http.StatusOK, "search.html", searchPage{
		View:       view,
		Dogs:       dog.Annotate(view.Dogs, st.Liked.Has),
		LikedCount: st.Liked.Len(),
		Actions:    newSearchActions(current),
		Pages:      pageLinks(view),
		Return:     ret,
		AgeMin:     s.opts.Search.AgeMin,
		AgeMax:     s.opts.Search.AgeMax,
	})
}

type searchResponse struct {
	searchuc.View
	Dogs       []dog.Card `json:"dogs"`
	LikedCount int        `json:"liked_count"`
	URL        string     `json:"url"`
}

// SearchJSON handles GET /api/search.
func (s *Server) SearchJSON(w http.ResponseWriter, r *http.Request) {
	st, view, ok := s.runQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		View:       view,
		Dogs:       dog.Annotate(view.Dogs, st.Liked.Has),
		LikedCount: st.Liked.Len(),
		URL:        searchPath + "?" + view.Query.Encode(),
	})
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request) (domsession.State, searchuc.View, bool) {
	st, ok := sessionFromContext(r.Context())
	if !ok {
		denyAnonymous(w, r)
		return domsession.State{}, searchuc.View{}, false
	}
	ctrl := s.searches.Get(st.ID, st.Status.AccessToken)
	view, err := ctrl.OnQueryChange(r.Context(), r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return domsession.State{}, searchuc.View{}, false
	}
	return st, view, true
}

// SelectBreeds handles POST /search/breeds.
func (s *Server) SelectBreeds(w http.ResponseWriter, r *http.Request) {
	if !s.parseActionForm(w, r) {
		return
	}
	s.navigate(w, r, query.WithBreeds(r.URL.Query(), r.PostForm[query.ParamBreeds]))
}

// ChangeSort handles POST /search/sort. Choosing the direction already shown is a no-op.
func (s *Server) ChangeSort(w http.ResponseWriter, r *http.Request) {
	if !s.parseActionForm(w, r) {
		return
	}
	dir := query.Sort(r.PostForm.Get(query.ParamSort))
	if dir != query.SortAsc && dir != query.SortDesc {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "sort must be asc or desc")
		return
	}
	next, changed := query.WithSort(r.URL.Query(), dir, s.opts.Search)
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.navigate(w, r, next)
}

// ChangeAgeRange handles POST /search/age. The range is clamped to the configured bounds.
func (s *Server) ChangeAgeRange(w http.ResponseWriter, r *http.Request) {
	if !s.parseActionForm(w, r) {
		return
	}
	current := query.Parse(r.URL.Query(), s.opts.Search)
	lo, err := formInt(r.PostForm, query.ParamAgeMin, current.AgeMin)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "ageMin must be a number")
		return
	}
	hi, err := formInt(r.PostForm, query.ParamAgeMax, current.AgeMax)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "ageMax must be a number")
		return
	}
	s.navigate(w, r, query.WithAgeRange(r.URL.Query(), lo, hi, s.opts.Search))
}

// ChangePage handles POST /search/page.
func (s *Server) ChangePage(w http.ResponseWriter, r *http.Request) {
	if !s.parseActionForm(w, r) {
		return
	}
	page, err := formInt(r.PostForm, query.ParamPage, 1)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "page must be a number")
		return
	}
	s.navigate(w, r, query.WithPage(r.URL.Query(), page))
}

type likeResponse struct {
	ID    string `json:"id"`
	Liked bool   `json:"liked"`
}

// ToggleLike handles POST /dogs/{id}/like.
func (s *Server) ToggleLike(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionFromContext(r.Context())
	if !ok {
		denyAnonymous(w, r)
		return
	}
	id := chirouter.URLParam(r, "id")
	if id == "" {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "dog id is required")
		return
	}

	isLiked, err := s.sessions.ToggleLike(r.Context(), st.ID, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, likeResponse{ID: id, Liked: isLiked})
		return
	}
	http.Redirect(w, r, returnTarget(r.URL.Query().Get("return")), http.StatusSeeOther)
}

// Match handles GET /match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionFromContext(r.Context())
	if !ok {
		denyAnonymous(w, r)
		return
	}

	d, err := s.matches.Match(r.Context(), st.Status.AccessToken, st.Liked)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			if lerr := s.sessions.Logout(r.Context(), st.ID); lerr != nil {
				logpkg.FromContext(r.Context()).Warn("logout after unauthorized failed", zap.Error(lerr))
			}
		}
		if errors.Is(err, domain.ErrNoLikedDogs) && !wantsJSON(r) {
			http.Redirect(w, r, searchPath, http.StatusSeeOther)
			return
		}
		s.handleDomainError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, d)
		return
	}
	s.renderPage(w, r, http.StatusOK, "match.html", d)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) parseActionForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, http.StatusBadRequest, codeBadRequest, "invalid form")
		return false
	}
	return true
}

// navigate answers a search action with a redirect to the next search URL.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, next url.Values) {
	http.Redirect(w, r, searchPath+"?"+next.Encode(), http.StatusSeeOther)
}

// formInt binds an integer form field; an absent or empty field yields def.
func formInt(form url.Values, name string, def int) (int, error) {
	if strings.TrimSpace(form.Get(name)) == "" {
		return def, nil
	}
	var out *int
	if err := runtime.BindQueryParameter("form", true, false, name, form, &out); err != nil {
		return 0, err
	}
	if out == nil {
		return def, nil
	}
	return *out, nil
}

// returnTarget keeps redirects on the search page.
func returnTarget(ret string) string {
	if ret == searchPath || strings.HasPrefix(ret, searchPath+"?") {
		return ret
	}
	return searchPath
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := render(w, status, name, data); err != nil {
		logpkg.FromContext(r.Context()).Error("render page failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// respondError writes a JSON error for API clients and an error page otherwise.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if wantsJSON(r) {
		writeError(w, status, code, message)
		return
	}
	s.renderPage(w, r, status, "error.html", errorPage{Message: message, Back: searchPath})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnauthorized,
		domain.ErrInvalidLogin,
		domain.ErrSessionNotFound,
		domain.ErrNoLikedDogs,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if wantsJSON(r) {
			writeError(w, status, code, safeDomainMessage(err))
			return true
		}
		_ = render(w, status, "error.html", errorPage{Message: safeDomainMessage(err), Back: searchPath})
		return true
	}
}

// unauthorizedHandler sends the visitor back to the login page. The session was
// already logged out by the use case that saw the 401.
func (s *Server) unauthorizedHandler(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, domain.ErrUnauthorized) {
		return false
	}
	clearSessionCookie(w, s.opts.CookieName)
	denyAnonymous(w, r)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	if errors.Is(err, context.Canceled) {
		log.Debug("request canceled", zap.Error(err))
		return
	}
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, r, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	s.respondError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
}
