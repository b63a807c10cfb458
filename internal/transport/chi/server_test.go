package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	"github.com/kailas-cloud/puppyradar/internal/domain/liked"
	domsession "github.com/kailas-cloud/puppyradar/internal/domain/session"
	healthuc "github.com/kailas-cloud/puppyradar/internal/usecase/health"
	matchuc "github.com/kailas-cloud/puppyradar/internal/usecase/match"
	searchuc "github.com/kailas-cloud/puppyradar/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/puppyradar/internal/usecase/session"
)

const testCookie = "pr_session"

// --- Fakes ---

type memRepo struct {
	mu     sync.Mutex
	states map[string]domsession.State
}

func (m *memRepo) Load(_ context.Context, sid string) (domsession.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sid]
	if !ok {
		return domsession.State{}, domain.ErrSessionNotFound
	}
	return st, nil
}

func (m *memRepo) SaveStatus(_ context.Context, sid string, status domsession.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[sid]
	st.ID, st.Status = sid, status
	m.states[sid] = st
	return nil
}

func (m *memRepo) SaveLiked(_ context.Context, sid string, set liked.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[sid]
	st.ID, st.Liked = sid, set
	m.states[sid] = st
	return nil
}

func (m *memRepo) ToggleLiked(_ context.Context, sid, dogID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sid]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	st.Liked = st.Liked.Toggle(dogID)
	m.states[sid] = st
	return st.Liked.Has(dogID), nil
}

func (m *memRepo) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sid)
	return nil
}

type fakeAuth struct {
	mu      sync.Mutex
	logouts int
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (string, error) { return "tok", nil }

func (f *fakeAuth) Logout(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

type fakeDogs struct {
	mu           sync.Mutex
	unauthorized bool
	lastSearch   dog.SearchParams
}

func (f *fakeDogs) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unauthorized {
		return domain.ErrUnauthorized
	}
	return nil
}

func (f *fakeDogs) Breeds(_ context.Context, _ string) ([]string, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return []string{"Akita", "Pug"}, nil
}

func (f *fakeDogs) Search(_ context.Context, _ string, p dog.SearchParams) (dog.Page, error) {
	if err := f.err(); err != nil {
		return dog.Page{}, err
	}
	f.mu.Lock()
	f.lastSearch = p
	f.mu.Unlock()
	return dog.Page{ResultIDs: []string{"d1", "d2"}, Total: 45}, nil
}

func (f *fakeDogs) Details(_ context.Context, _ string, ids []string) ([]dog.Dog, error) {
	out := make([]dog.Dog, len(ids))
	for i, id := range ids {
		out[i] = dog.Dog{ID: id, Name: "Dog " + id, Breed: "Pug"}
	}
	return out, nil
}

func (f *fakeDogs) Match(_ context.Context, _ string, ids []string) (string, error) {
	if err := f.err(); err != nil {
		return "", err
	}
	return ids[0], nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testEnv struct {
	handler  http.Handler
	sessions *sessionuc.Service
	registry *searchuc.Registry
	dogs     *fakeDogs
	auth     *fakeAuth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dogs := &fakeDogs{}
	auth := &fakeAuth{}
	sessions := sessionuc.New(&memRepo{states: map[string]domsession.State{}}, auth, nil)
	cfg := domain.DefaultSearchConfig()
	registry := searchuc.NewRegistry(dogs, sessions, cfg, 0, nil)
	sessions.OnLogout(registry.Drop)

	server := NewServer(
		sessions, registry, matchuc.New(dogs, nil), healthuc.New(okPinger{}, nil),
		Options{CookieName: testCookie, CookieMaxAge: 3600, Search: cfg}, nil,
	)
	r := chirouter.NewRouter()
	r.Use(SessionAuthMiddleware(sessions, testCookie))
	server.Routes(r)

	return &testEnv{handler: r, sessions: sessions, registry: registry, dogs: dogs, auth: auth}
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	st, err := e.sessions.Login(context.Background(), sessionuc.LoginForm{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return st.ID
}

func (e *testEnv) do(method, target, sid string, form url.Values, header ...string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: sid})
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func locationQuery(t *testing.T, rr *httptest.ResponseRecorder) url.Values {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	u, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if u.Path != "/search" {
		t.Fatalf("location path = %q, want /search", u.Path)
	}
	return u.Query()
}

// --- Session middleware ---

func TestSessionAuth_RedirectsAnonymous(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(http.MethodGet, "/search", "", nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Errorf("got %d to %q, want 303 to /", rr.Code, rr.Header().Get("Location"))
	}

	rr = e.do(http.MethodGet, "/search", "unknown-sid", nil)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("unknown session: got %d, want 303", rr.Code)
	}
}

func TestSessionAuth_APIGets401(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(http.MethodGet, "/api/search", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rr.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeUnauthorized {
		t.Errorf("code = %q, want %q", resp.Code, codeUnauthorized)
	}
}

func TestSessionAuth_ExemptPaths(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/", "/health", "/metrics"} {
		rr := e.do(http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: got %d, want 200", path, rr.Code)
		}
	}
}

// --- Login / logout ---

func TestLogin_SetsCookieAndRedirects(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(http.MethodPost, "/login", "", url.Values{
		"firstName": {"Ada"}, "lastName": {"Lovelace"}, "email": {"ada@example.com"},
	})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/search" {
		t.Fatalf("got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
	var sid string
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == testCookie {
			sid = ck.Value
		}
	}
	if sid == "" {
		t.Fatal("session cookie not set")
	}
	if _, err := e.sessions.Get(context.Background(), sid); err != nil {
		t.Errorf("session not stored: %v", err)
	}
}

func TestLogin_InvalidFormRerendersPage(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(http.MethodPost, "/login", "", url.Values{"firstName": {"Ada"}, "email": {"nope"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `value="Ada"`) {
		t.Error("form values should be kept")
	}
}

func TestLoginPage_RedirectsLoggedIn(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	rr := e.do(http.MethodGet, "/", sid, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/search" {
		t.Errorf("got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)
	e.registry.Get(sid, "tok")

	rr := e.do(http.MethodPost, "/logout", sid, url.Values{})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
	if _, err := e.sessions.Get(context.Background(), sid); err == nil {
		t.Error("session should be gone")
	}
	if e.registry.Len() != 0 {
		t.Error("controller should be dropped on logout")
	}
}

// --- Search ---

func TestSearchPage_Renders(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	rr := e.do(http.MethodGet, "/search?breeds=Pug&page=2", sid, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Dog d1", "Dog d2", "45 dogs found", `value="Pug" selected`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if e.dogs.lastSearch.From != 20 {
		t.Errorf("from = %d, want 20", e.dogs.lastSearch.From)
	}
}

func TestSearchJSON(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)
	if _, err := e.sessions.ToggleLike(context.Background(), sid, "d2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	rr := e.do(http.MethodGet, "/api/search?sort=desc", sid, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp struct {
		Ascending  bool       `json:"ascending"`
		PageCount  int        `json:"page_count"`
		Dogs       []dog.Card `json:"dogs"`
		LikedCount int        `json:"liked_count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ascending || resp.PageCount != 3 || resp.LikedCount != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Dogs) != 2 || resp.Dogs[0].Liked || !resp.Dogs[1].Liked {
		t.Errorf("dogs = %+v", resp.Dogs)
	}
}

func TestSearch_UnauthorizedLogsOutOnce(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)
	e.dogs.unauthorized = true

	rr := e.do(http.MethodGet, "/search", sid, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("got %d to %q, want 303 to /", rr.Code, rr.Header().Get("Location"))
	}
	if e.auth.logouts != 1 {
		t.Errorf("upstream logouts = %d, want 1", e.auth.logouts)
	}
	if _, err := e.sessions.Get(context.Background(), sid); err == nil {
		t.Error("session should be cleared")
	}
}

// --- Search actions ---

func TestChangeSort(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	rr := e.do(http.MethodPost, "/search/sort?page=3", sid, url.Values{"sort": {"asc"}})
	if rr.Code != http.StatusNoContent {
		t.Errorf("ascending while ascending: got %d, want 204", rr.Code)
	}

	q := locationQuery(t, e.do(http.MethodPost, "/search/sort?page=3", sid, url.Values{"sort": {"desc"}}))
	if q.Get("sort") != "desc" || q.Get("page") != "1" {
		t.Errorf("next query = %v", q)
	}

	rr = e.do(http.MethodPost, "/search/sort", sid, url.Values{"sort": {"sideways"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid sort: got %d, want 400", rr.Code)
	}
}

func TestChangeAgeRange_Clamps(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	q := locationQuery(t, e.do(http.MethodPost, "/search/age?page=4&breeds=Pug", sid,
		url.Values{"ageMin": {"-5"}, "ageMax": {"30"}}))
	if q.Get("ageMin") != "0" || q.Get("ageMax") != "20" || q.Get("page") != "1" || q.Get("breeds") != "Pug" {
		t.Errorf("next query = %v", q)
	}

	for _, tt := range []struct {
		lo, hi         string
		wantLo, wantHi string
	}{
		{"25", "30", "20", "20"},
		{"-5", "-1", "0", "0"},
		{"15", "3", "3", "15"},
	} {
		q := locationQuery(t, e.do(http.MethodPost, "/search/age", sid,
			url.Values{"ageMin": {tt.lo}, "ageMax": {tt.hi}}))
		if q.Get("ageMin") != tt.wantLo || q.Get("ageMax") != tt.wantHi {
			t.Errorf("age [%s, %s] -> [%s, %s], want [%s, %s]",
				tt.lo, tt.hi, q.Get("ageMin"), q.Get("ageMax"), tt.wantLo, tt.wantHi)
		}
	}

	rr := e.do(http.MethodPost, "/search/age", sid, url.Values{"ageMin": {"old"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed age: got %d, want 400", rr.Code)
	}
}

func TestSelectBreeds_ResetsPage(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	q := locationQuery(t, e.do(http.MethodPost, "/search/breeds?page=3&sort=desc", sid,
		url.Values{"breeds": {"Akita", "Pug"}}))
	if got := q["breeds"]; len(got) != 2 || got[0] != "Akita" || got[1] != "Pug" {
		t.Errorf("breeds = %v", got)
	}
	if q.Get("page") != "1" || q.Get("sort") != "desc" {
		t.Errorf("next query = %v", q)
	}
}

func TestChangePage(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	q := locationQuery(t, e.do(http.MethodPost, "/search/page?breeds=Pug", sid, url.Values{"page": {"3"}}))
	if q.Get("page") != "3" || q.Get("breeds") != "Pug" {
		t.Errorf("next query = %v", q)
	}
}

// --- Likes and match ---

func TestToggleLike(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	rr := e.do(http.MethodPost, "/dogs/d1/like", sid, url.Values{}, "Accept", "application/json")
	var resp likeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || !resp.Liked || resp.ID != "d1" {
		t.Errorf("got %d %+v", rr.Code, resp)
	}

	rr = e.do(http.MethodPost, "/dogs/d1/like?return="+url.QueryEscape("/search?page=2"), sid, url.Values{})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/search?page=2" {
		t.Errorf("got %d to %q", rr.Code, rr.Header().Get("Location"))
	}
	st, _ := e.sessions.Get(context.Background(), sid)
	if st.Liked.Has("d1") {
		t.Error("second toggle should unlike")
	}
}

func TestMatch(t *testing.T) {
	e := newTestEnv(t)
	sid := e.login(t)

	rr := e.do(http.MethodGet, "/match", sid, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/search" {
		t.Errorf("no likes: got %d to %q", rr.Code, rr.Header().Get("Location"))
	}

	if _, err := e.sessions.ToggleLike(context.Background(), sid, "d2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	rr = e.do(http.MethodGet, "/match", sid, nil, "Accept", "application/json")
	var d dog.Dog
	if err := json.NewDecoder(rr.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || d.ID != "d2" {
		t.Errorf("got %d %+v", rr.Code, d)
	}

	rr = e.do(http.MethodGet, "/match", sid, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Meet Dog d2") {
		t.Errorf("match page: got %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(http.MethodGet, "/health", "", nil)
	var report healthuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || report.Status != healthuc.Healthy {
		t.Errorf("got %d %+v", rr.Code, report)
	}
	if report.Build.Version == "" {
		t.Error("health report should carry the build version")
	}
}

func TestReturnTarget(t *testing.T) {
	tests := map[string]string{
		"":                      "/search",
		"/search":               "/search",
		"/search?page=2":        "/search?page=2",
		"https://evil.example/": "/search",
		"/searchx":              "/search",
		"//evil.example/search": "/search",
	}
	for in, want := range tests {
		if got := returnTarget(in); got != want {
			t.Errorf("returnTarget(%q) = %q, want %q", in, got, want)
		}
	}
}
