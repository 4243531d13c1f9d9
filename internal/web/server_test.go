package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/prefs"
	"astraconsole/internal/session"
	"astraconsole/internal/storage"
	"astraconsole/internal/throttle"
	"astraconsole/internal/workspace"
)

type backendCall struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
}

// fakeAstra answers backend routes keyed by "METHOD /path" and records every
// request it sees.
type fakeAstra struct {
	mu     sync.Mutex
	calls  []backendCall
	routes map[string]http.HandlerFunc
}

func (f *fakeAstra) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, backendCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(b), Auth: r.Header.Get("Authorization")})
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
		return
	}
	h(w, r)
}

func (f *fakeAstra) all() []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backendCall(nil), f.calls...)
}

func (f *fakeAstra) count(method, path string) int {
	n := 0
	for _, c := range f.all() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeAstra) last(method, path string) (backendCall, bool) {
	calls := f.all()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method && calls[i].Path == path {
			return calls[i], true
		}
	}
	return backendCall{}, false
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

type harness struct {
	t          *testing.T
	backend    *fakeAstra
	console    *httptest.Server
	client     *http.Client
	store      storage.Store
	workspaces *workspace.Registry
}

func newHarness(t *testing.T, routes map[string]http.HandlerFunc, tweak ...func(*Config)) *harness {
	t.Helper()
	fb := &fakeAstra{routes: routes}
	if fb.routes == nil {
		fb.routes = map[string]http.HandlerFunc{}
	}
	backend := httptest.NewServer(fb)
	t.Cleanup(backend.Close)

	store := storage.NewMemoryStore()
	registry := workspace.NewRegistry(time.Hour)
	cfg := Config{
		API:         apiclient.New(apiclient.Config{BaseURL: backend.URL}),
		Sessions:    session.NewManager(session.ManagerConfig{Store: store, CarryKeys: []string{prefs.StorageKey}}),
		Workspaces:  registry,
		SubmitGuard: throttle.NewMemorySubmitGuard(time.Minute),
		Logger:      zerolog.Nop(),
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	console := httptest.NewServer(srv.Handler())
	t.Cleanup(console.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{t: t, backend: fb, console: console, client: client, store: store, workspaces: registry}
}

func (h *harness) do(req *http.Request) (*http.Response, string) {
	h.t.Helper()
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (h *harness) get(path string) (*http.Response, string) {
	h.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, h.console.URL+path, nil)
	return h.do(req)
}

func (h *harness) post(path string, form url.Values) (*http.Response, string) {
	h.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, h.console.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *harness) sessionID() string {
	h.t.Helper()
	u, _ := url.Parse(h.console.URL)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == "astra_session" {
			return c.Value
		}
	}
	h.t.Fatalf("no session cookie issued")
	return ""
}

// signIn obtains a session cookie and stores a token for it directly.
func (h *harness) signIn(token string) string {
	h.t.Helper()
	h.get("/login")
	id := h.sessionID()
	sess, err := session.Load(context.Background(), h.store, id)
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	if err := sess.SetToken(context.Background(), token); err != nil {
		h.t.Fatalf("set token: %v", err)
	}
	return id
}

func expectRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		t.Fatalf("expected a redirect to %s, got %d", location, resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func TestAnonymousRequestsNeverReachBackend(t *testing.T) {
	h := newHarness(t, nil)

	for _, path := range []string{"/", "/tickets", "/tickets/new", "/tickets/5", "/users", "/dashboard", "/kb", "/sessions", "/sessions/3", "/no-such-page"} {
		resp, _ := h.get(path)
		expectRedirect(t, resp, "/login")
	}
	for _, path := range []string{"/tickets/new", "/tickets/5/edit", "/kb/delete", "/assistant/send", "/settings/ai", "/logout"} {
		resp, _ := h.post(path, url.Values{"title": {"x"}, "id": {"a"}, "message": {"hi"}})
		expectRedirect(t, resp, "/login")
	}
	if calls := h.backend.all(); len(calls) != 0 {
		t.Fatalf("anonymous requests reached the backend: %+v", calls)
	}
}

func TestLoginAttachesTokenUntilLogout(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/auth/token": jsonReply(http.StatusOK, `{"access_token":"jwt-1","token_type":"bearer"}`),
		"GET /api/auth/me":     jsonReply(http.StatusOK, `{"id":1,"email":"ada@example.com","name":"Ada"}`),
		"GET /api/tickets/":    jsonReply(http.StatusOK, `[{"id":1,"title":"a","status":"open"},{"id":2,"title":"b","status":"resolved"}]`),
		"GET /api/health":      jsonReply(http.StatusOK, `{"status":"ok"}`),
	})

	resp, _ := h.post("/login", url.Values{"username": {"ada@example.com"}, "password": {"pw"}})
	expectRedirect(t, resp, "/")

	if tok, _ := h.backend.last(http.MethodPost, "/api/auth/token"); tok.Auth != "" {
		t.Fatalf("login must be sent without a bearer, got %q", tok.Auth)
	}

	resp, body := h.get("/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected home page, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Ada") {
		t.Fatalf("expected the signed-in user in the nav")
	}
	list, ok := h.backend.last(http.MethodGet, "/api/tickets/")
	if !ok || list.Auth != "Bearer jwt-1" {
		t.Fatalf("expected bearer jwt-1 on ticket list, got %+v", list)
	}

	resp, _ = h.get("/login")
	expectRedirect(t, resp, "/")

	resp, _ = h.post("/logout", nil)
	expectRedirect(t, resp, "/login")

	before := len(h.backend.all())
	resp, _ = h.get("/")
	expectRedirect(t, resp, "/login")
	if len(h.backend.all()) != before {
		t.Fatalf("signed-out request reached the backend")
	}
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/auth/token": jsonReply(http.StatusUnauthorized, `{"detail":"Incorrect email or password"}`),
	})
	resp, body := h.post("/login", url.Values{"username": {"ada@example.com"}, "password": {"nope"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Incorrect email or password") {
		t.Fatalf("expected server message in login page")
	}

	h = newHarness(t, map[string]http.HandlerFunc{
		"POST /api/auth/token": jsonReply(http.StatusInternalServerError, ``),
	})
	_, body = h.post("/login", url.Values{"username": {"ada@example.com"}, "password": {"pw"}})
	if !strings.Contains(body, "Login failed.") {
		t.Fatalf("expected fallback login message")
	}
}

var nonceField = regexp.MustCompile(`name="nonce" value="([^"]+)"`)

func TestCreateTicketOnceAndRedirect(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"GET /api/users/":    jsonReply(http.StatusOK, `[{"id":1,"email":"ada@example.com","name":"Ada"}]`),
		"POST /api/tickets/": jsonReply(http.StatusCreated, `{"id":42,"title":"T1","content":"C1","status":"open","priority":"medium","requester_id":1}`),
	})
	id := h.signIn("tok-1")

	_, body := h.get("/tickets/new")
	m := nonceField.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("create form carries no nonce")
	}
	form := url.Values{"title": {"T1"}, "content": {"C1"}, "requester_id": {"1"}, "nonce": {m[1]}}

	resp, _ := h.post("/tickets/new", form)
	expectRedirect(t, resp, "/tickets/42")
	if n := h.workspaces.Get(id).TakeNotices(); len(n) != 1 || n[0].Text != "Ticket created successfully" {
		t.Fatalf("unexpected notices %+v", n)
	}

	resp, _ = h.post("/tickets/new", form)
	expectRedirect(t, resp, "/tickets")

	if n := h.backend.count(http.MethodPost, "/api/tickets/"); n != 1 {
		t.Fatalf("expected exactly one create, got %d", n)
	}
	call, _ := h.backend.last(http.MethodPost, "/api/tickets/")
	var sent map[string]any
	if err := json.Unmarshal([]byte(call.Body), &sent); err != nil {
		t.Fatalf("decode create body: %v", err)
	}
	if sent["title"] != "T1" || sent["content"] != "C1" || sent["requester_id"] != float64(1) {
		t.Fatalf("unexpected create body %v", sent)
	}
	if sent["status"] != "open" || sent["priority"] != "medium" {
		t.Fatalf("expected default status and priority, got %v", sent)
	}
	if call.Auth != "Bearer tok-1" {
		t.Fatalf("expected bearer tok-1, got %q", call.Auth)
	}
}

func TestCreateTicketFailureStaysOnForm(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"GET /api/users/":    jsonReply(http.StatusOK, `[]`),
		"POST /api/tickets/": jsonReply(http.StatusInternalServerError, `oops`),
	})
	h.signIn("tok-1")

	resp, body := h.post("/tickets/new", url.Values{"title": {"T1"}, "content": {"C1"}, "requester_id": {"1"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected form re-render, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Failed to create ticket") || !strings.Contains(body, `value="T1"`) {
		t.Fatalf("expected fallback error and kept input")
	}

	_, body = h.post("/tickets/new", url.Values{"content": {"C1"}, "requester_id": {"1"}})
	if !strings.Contains(body, "title is required") {
		t.Fatalf("expected validation message")
	}
	if n := h.backend.count(http.MethodPost, "/api/tickets/"); n != 1 {
		t.Fatalf("invalid form must not reach the backend, got %d creates", n)
	}
}

func TestTicketDetailLoadFailure(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"GET /api/tickets/7/replies":  jsonReply(http.StatusOK, `[]`),
		"GET /api/tickets/7/messages": jsonReply(http.StatusOK, `[]`),
		"GET /api/users/":             jsonReply(http.StatusOK, `[]`),
	})
	h.signIn("tok-1")

	resp, body := h.get("/tickets/7")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected detail page, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Failed to load ticket") {
		t.Fatalf("expected load failure notice")
	}
	for _, path := range []string{"/api/tickets/7", "/api/tickets/7/replies", "/api/tickets/7/messages", "/api/users/"} {
		if h.backend.count(http.MethodGet, path) != 1 {
			t.Fatalf("expected one GET %s", path)
		}
	}
}

func TestDashboardRendersStatsAsReceived(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"GET /api/stats/dashboard": jsonReply(http.StatusOK, `{
			"total_tickets": 10, "open_tickets": 4, "resolved_tickets": 5,
			"avg_response_time_minutes": 42,
			"status_distribution": {"open": 4, "resolved": 5, "in_progress": 1},
			"daily_trend": [{"date":"2024-05-01","count":2},{"date":"2024-05-02","count":5}]
		}`),
	})
	h.signIn("tok-1")

	_, body := h.get("/dashboard")
	for _, want := range []string{
		`Total Tickets</div><div class="value">10</div>`,
		`Open Tickets</div><div class="value">4</div>`,
		`Resolved Tickets</div><div class="value">5</div>`,
		`42 min`,
		`<polyline`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q", want)
		}
	}
}

func TestKBDeleteRemovesOnlyThatMatch(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/kb/delete": jsonReply(http.StatusOK, `{"collection":"kb_main","deleted":1}`),
		"GET /api/kb/items":   jsonReply(http.StatusOK, `{"collection":"kb_main","total":2,"items":[{"id":"a"},{"id":"c"}]}`),
	})
	id := h.signIn("tok-1")

	ws := h.workspaces.Get(id)
	seq := ws.Tracker.Begin(workspace.ViewKBSearch)
	ws.ApplySearch(seq, workspace.KBSearch{
		Collection: "kb_main",
		Query:      "reset",
		Matches:    []astra.KBMatch{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	})

	resp, _ := h.post("/kb/delete", url.Values{"id": {"b"}, "collection": {"kb_main"}})
	expectRedirect(t, resp, "/kb")

	got := ws.Search()
	if len(got.Matches) != 2 || got.Matches[0].ID != "a" || got.Matches[1].ID != "c" || got.Query != "reset" {
		t.Fatalf("expected only b removed from results, got %+v", got)
	}
	if n := h.backend.count(http.MethodPost, "/api/kb/search"); n != 0 {
		t.Fatalf("delete must not re-run the search, got %d searches", n)
	}
	if n := h.backend.count(http.MethodGet, "/api/kb/items"); n != 1 {
		t.Fatalf("expected the stored page refetched once, got %d", n)
	}
	call, _ := h.backend.last(http.MethodPost, "/api/kb/delete")
	if call.Body != `{"collection":"kb_main","ids":["b"]}` {
		t.Fatalf("unexpected delete body %s", call.Body)
	}
}

func TestKBWarningsSkipBackend(t *testing.T) {
	h := newHarness(t, nil)
	id := h.signIn("tok-1")

	resp, _ := h.post("/kb/ingest", url.Values{"text": {"   "}})
	expectRedirect(t, resp, "/kb")
	resp, _ = h.post("/kb/search", url.Values{"query": {""}})
	expectRedirect(t, resp, "/kb#search")

	notices := h.workspaces.Get(id).TakeNotices()
	if len(notices) != 2 ||
		notices[0].Text != "Please provide text or select files to ingest." ||
		notices[1].Text != "Please enter a query to search." {
		t.Fatalf("unexpected notices %+v", notices)
	}
	if calls := h.backend.all(); len(calls) != 0 {
		t.Fatalf("expected no backend calls, got %+v", calls)
	}
}

func TestKBSearchStoresResults(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/kb/search": jsonReply(http.StatusOK, `{"collection":"kb_main","query":"vpn","matches":[]}`),
	})
	id := h.signIn("tok-1")

	h.post("/kb/search", url.Values{"query": {"vpn"}})
	ws := h.workspaces.Get(id)
	if got := ws.Search(); !got.Searched || got.Query != "vpn" {
		t.Fatalf("expected search stored, got %+v", got)
	}
	if n := ws.TakeNotices(); len(n) != 1 || n[0].Text != "No results found." {
		t.Fatalf("expected empty-result notice, got %+v", n)
	}
	call, _ := h.backend.last(http.MethodPost, "/api/kb/search")
	if !strings.Contains(call.Body, `"n_results":5`) {
		t.Fatalf("expected default top-k, got %s", call.Body)
	}
}

func TestChatSendAppendsReplyOrError(t *testing.T) {
	var (
		mu     sync.Mutex
		status = http.StatusOK
		reply  = `{"query":"hello","answer":"Hi there","kb_sources":["doc-1"],"kb_snippets":["VPN steps"]}`
	)
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/ai/chat": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			jsonReply(status, reply)(w, r)
		},
	})
	id := h.signIn("tok-1")

	resp, _ := h.post("/assistant/send", url.Values{"message": {"hello"}})
	expectRedirect(t, resp, "/#chat")

	call, _ := h.backend.last(http.MethodPost, "/api/ai/chat")
	var sent astra.AIChatRequest
	if err := json.Unmarshal([]byte(call.Body), &sent); err != nil {
		t.Fatalf("decode chat body: %v", err)
	}
	if sent.Query != "hello" || sent.Collection != "kb_main" || sent.NResults != 4 {
		t.Fatalf("unexpected chat request %+v", sent)
	}
	if len(sent.History) != 1 || sent.History[0].Role != astra.RoleUser || sent.History[0].Content != "hello" {
		t.Fatalf("history must end with the new user message, got %+v", sent.History)
	}
	if strings.Contains(call.Body, `"provider"`) {
		t.Fatalf("no stored config means no overrides, got %s", call.Body)
	}

	ws := h.workspaces.Get(id)
	tr := ws.Transcript()
	if len(tr) != 2 || tr[1].Role != astra.RoleAssistant || tr[1].Content != "Hi there" {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if len(tr[1].KBSources) != 1 || tr[1].KBSnippets[0] != "VPN steps" {
		t.Fatalf("expected sources and snippets kept, got %+v", tr[1])
	}

	mu.Lock()
	status, reply = http.StatusBadGateway, `{"detail":"LLM offline"}`
	mu.Unlock()
	h.post("/assistant/send", url.Values{"message": {"again"}})

	mu.Lock()
	status, reply = http.StatusInternalServerError, ``
	mu.Unlock()
	h.post("/assistant/send", url.Values{"message": {"third"}})

	tr = ws.Transcript()
	if len(tr) != 6 {
		t.Fatalf("expected 6 transcript entries, got %d", len(tr))
	}
	if tr[3].Content != "Error: LLM offline" {
		t.Fatalf("expected server message in error entry, got %q", tr[3].Content)
	}
	if tr[5].Content != "Error: Failed to generate AI response" {
		t.Fatalf("expected fallback error entry, got %q", tr[5].Content)
	}
}

func TestChatUsesStoredProviderConfig(t *testing.T) {
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/ai/chat": jsonReply(http.StatusOK, `{"answer":"ok"}`),
	})
	id := h.signIn("tok-1")

	resp, _ := h.post("/settings/ai", url.Values{
		"provider":           {"deepseek"},
		"base_url":           {"https://api.deepseek.com"},
		"model":              {"deepseek-chat"},
		"api_key":            {"sk-test"},
		"distance_threshold": {"0.7"},
	})
	expectRedirect(t, resp, "/")
	if n := h.workspaces.Get(id).TakeNotices(); len(n) != 1 || n[0].Text != "AI client configuration saved locally." {
		t.Fatalf("unexpected notices %+v", n)
	}

	h.post("/assistant/send", url.Values{"message": {"hello"}})
	call, _ := h.backend.last(http.MethodPost, "/api/ai/chat")
	var sent map[string]any
	if err := json.Unmarshal([]byte(call.Body), &sent); err != nil {
		t.Fatalf("decode chat body: %v", err)
	}
	if sent["provider"] != "deepseek" || sent["base_url"] != "https://api.deepseek.com" ||
		sent["model"] != "deepseek-chat" || sent["api_key"] != "sk-test" || sent["distance_threshold"] != 0.7 {
		t.Fatalf("expected stored overrides, got %v", sent)
	}
}

type denyAll struct{ reset time.Time }

func (d denyAll) Allow(context.Context, string, time.Time) (bool, int64, time.Time, error) {
	return false, 99, d.reset, nil
}

func TestChatThrottledSkipsBackend(t *testing.T) {
	reset := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	h := newHarness(t, nil, func(c *Config) { c.ChatLimiter = denyAll{reset: reset} })
	id := h.signIn("tok-1")

	h.post("/assistant/send", url.Values{"message": {"hello"}})
	tr := h.workspaces.Get(id).Transcript()
	if len(tr) != 2 || tr[1].Content != "Error: Too many AI requests, try again after 15:00 UTC" {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if calls := h.backend.all(); len(calls) != 0 {
		t.Fatalf("throttled send reached the backend: %+v", calls)
	}
}

func TestLoginRotatesSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]http.HandlerFunc{
		"POST /api/auth/token": jsonReply(http.StatusOK, `{"access_token":"jwt-1","token_type":"bearer"}`),
		"GET /api/auth/me":     jsonReply(http.StatusOK, `{"id":1,"email":"ada@example.com"}`),
	})

	h.get("/login")
	before := h.sessionID()
	planted, _ := session.Load(ctx, h.store, before)
	if err := planted.SetValue(ctx, prefs.StorageKey, `{"provider":"qwen"}`); err != nil {
		t.Fatalf("set prefs: %v", err)
	}

	resp, _ := h.post("/login", url.Values{"username": {"ada@example.com"}, "password": {"pw"}})
	expectRedirect(t, resp, "/")
	after := h.sessionID()
	if after == before {
		t.Fatalf("expected a new session id after login, kept %s", before)
	}

	if _, found, _ := h.store.Get(ctx, before, session.TokenKey); found {
		t.Fatalf("token stored under the pre-login id")
	}
	if tok, found, _ := h.store.Get(ctx, after, session.TokenKey); !found || tok != "jwt-1" {
		t.Fatalf("expected token under the new id, got %q found=%v", tok, found)
	}
	if v, found, _ := h.store.Get(ctx, after, prefs.StorageKey); !found || v != `{"provider":"qwen"}` {
		t.Fatalf("expected AI config carried over, got %q found=%v", v, found)
	}
	if n := h.workspaces.Get(after).TakeNotices(); len(n) != 1 || n[0].Text != "Login successful" {
		t.Fatalf("unexpected notices %+v", n)
	}
	if me, _ := h.backend.last(http.MethodGet, "/api/auth/me"); me.Auth != "Bearer jwt-1" {
		t.Fatalf("expected /auth/me with the new token, got %q", me.Auth)
	}

	resp, _ = h.post("/logout", nil)
	expectRedirect(t, resp, "/login")
	if h.sessionID() == after {
		t.Fatalf("expected a new session id after logout")
	}
}

func TestWrongMethodFollowsGate(t *testing.T) {
	h := newHarness(t, nil)

	resp, _ := h.get("/logout")
	expectRedirect(t, resp, "/login")

	h.signIn("tok-1")
	resp, _ = h.get("/assistant/send")
	expectRedirect(t, resp, "/")
	resp, _ = h.get("/kb/delete-selected")
	expectRedirect(t, resp, "/")

	if calls := h.backend.all(); len(calls) != 0 {
		t.Fatalf("expected no backend calls, got %+v", calls)
	}
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.get("/healthz")
	if resp.StatusCode != http.StatusOK || body != `{"status":"ok"}` {
		t.Fatalf("unexpected health response %d %s", resp.StatusCode, body)
	}
}
