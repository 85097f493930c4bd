package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/user/moviesearch/internal/config"
	"github.com/user/moviesearch/internal/handler"
	"github.com/user/moviesearch/internal/model"
	"github.com/user/moviesearch/internal/service"
	"github.com/user/moviesearch/internal/utils"
)

type memStore struct {
	mu      sync.Mutex
	records []*model.SearchTerm
}

func (m *memStore) FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Term == term {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, st *model.SearchTerm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.ID = strconv.Itoa(len(m.records) + 1)
	cp := *st
	m.records = append(m.records, &cp)
	return nil
}

func (m *memStore) Update(ctx context.Context, id string, count int, posterURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			r.Count = count
			r.PosterURL = posterURL
		}
	}
	return nil
}

func (m *memStore) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SearchTerm, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T, tmdbStatus int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tmdbStatus != http.StatusOK {
			w.WriteHeader(tmdbStatus)
			return
		}
		switch r.URL.Path {
		case "/search/movie":
			_, _ = w.Write([]byte(`{"results":[{"id":272,"title":"Batman Begins","poster_path":"/xyz.jpg","popularity":55.1}]}`))
		case "/discover/movie":
			_, _ = w.Write([]byte(`{"results":[{"id":1,"title":"Popular","poster_path":null}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	t.Setenv("TMDB_TOKEN", "token")
	cfg := config.Load()
	cfg.Env = "test"

	store := &memStore{}
	tmdb := service.NewTMDBServiceWith(utils.NewHTTPClientWith(upstream.Client(), nil), upstream.URL)
	search := service.NewSearchService(
		tmdb,
		service.NewRankRecorder(store),
		service.NewTrendingReader(store, cfg.TrendingLimit),
		cfg.TMDBImageBaseURL,
	)
	sessions := service.NewSessionRegistry(time.Minute, func() *service.Pipeline {
		return service.NewPipeline(search, time.Hour)
	})
	t.Cleanup(sessions.Close)

	return NewEngine(cfg, handler.NewHandler(cfg, search, sessions))
}

func do(t *testing.T, r http.Handler, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r := newTestEngine(t, http.StatusOK)
	w, _ := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPanicReturnsInternalServerError(t *testing.T) {
	r := newTestEngine(t, http.StatusOK)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w, env := do(t, r, http.MethodGet, "/boom", "")
	if w.Code != http.StatusInternalServerError || env.Success {
		t.Fatalf("status = %d, env = %+v", w.Code, env)
	}
	if env.Code != http.StatusInternalServerError || env.Message == "" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestMoviesRecordsAndReturnsTrending(t *testing.T) {
	r := newTestEngine(t, http.StatusOK)

	w, env := do(t, r, http.MethodGet, "/api/movies?query=batman", "")
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, env = %+v", w.Code, env)
	}
	var out struct {
		Movies   []map[string]any   `json:"movies"`
		Recorded bool               `json:"recorded"`
		Trending []model.SearchTerm `json:"trending"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(out.Movies) != 1 || out.Movies[0]["popularity"] != 55.1 {
		t.Fatalf("movies = %+v", out.Movies)
	}
	if !out.Recorded || len(out.Trending) != 1 || out.Trending[0].Term != "batman begins" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Trending[0].PosterURL != "https://image.tmdb.org/t/p/w500/xyz.jpg" {
		t.Fatalf("poster = %q", out.Trending[0].PosterURL)
	}

	_, env = do(t, r, http.MethodGet, "/api/trending", "")
	var trending []model.SearchTerm
	if err := json.Unmarshal(env.Data, &trending); err != nil {
		t.Fatalf("decode trending: %v", err)
	}
	if len(trending) != 1 || trending[0].Count != 1 {
		t.Fatalf("trending = %+v", trending)
	}
}

func TestMoviesUpstreamFailure(t *testing.T) {
	r := newTestEngine(t, http.StatusInternalServerError)

	w, env := do(t, r, http.MethodGet, "/api/movies?query=batman", "")
	if w.Code != http.StatusBadGateway || env.Success {
		t.Fatalf("status = %d, env = %+v", w.Code, env)
	}
	if env.Message != service.FetchErrorMessage {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestSessionSearchFlow(t *testing.T) {
	r := newTestEngine(t, http.StatusOK)

	w, env := do(t, r, http.MethodPost, "/api/session/search", `{"term":"batman"}`)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, env = %+v", w.Code, env)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("session cookie not set")
	}

	var state model.ViewState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.SearchTerm != "batman" || len(state.Movies) != 1 || state.Movies[0].Title != "Batman Begins" {
		t.Fatalf("state = %+v", state)
	}

	_, env = do(t, r, http.MethodGet, "/api/session/state", "", cookies...)
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.SearchTerm != "batman" {
		t.Fatalf("same cookie should reach the same pipeline, got %+v", state)
	}
}

func TestSessionInputRejectsBadJSON(t *testing.T) {
	r := newTestEngine(t, http.StatusOK)
	w, env := do(t, r, http.MethodPost, "/api/session/input", `{"term":`)
	if w.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("status = %d, env = %+v", w.Code, env)
	}
}

func TestSessionStream(t *testing.T) {
	srv := httptest.NewServer(newTestEngine(t, http.StatusOK))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/session/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type string          `json:"type"`
		Data model.ViewState `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if msg.Type != "state" {
		t.Fatalf("type = %q", msg.Type)
	}

	if err := conn.WriteJSON(map[string]string{"type": "search", "term": "batman"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("never saw batman results: %v", err)
		}
		s := msg.Data
		if s.SearchTerm == "batman" && !s.Loading && len(s.Movies) == 1 && s.Movies[0].Title == "Batman Begins" {
			return
		}
	}
}
