package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/user/moviesearch/internal/model"
	"github.com/user/moviesearch/internal/repository"
	"github.com/user/moviesearch/internal/utils"
)

const testImageBase = "https://image.tmdb.org/t/p/w500"

// memStore 内存版热搜词存储
type memStore struct {
	mu      sync.Mutex
	nextID  int
	records map[string]*model.SearchTerm

	writes    int
	listCalls int

	findErr   error
	createErr error
	updateErr error
	listErr   error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*model.SearchTerm{}}
}

func (m *memStore) FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
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
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.records {
		if r.Term == st.Term {
			return repository.ErrDuplicateTerm
		}
	}
	m.nextID++
	st.ID = strconv.Itoa(m.nextID)
	cp := *st
	m.records[st.ID] = &cp
	m.writes++
	return nil
}

func (m *memStore) Update(ctx context.Context, id string, count int, posterURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	r, ok := m.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Count = count
	r.PosterURL = posterURL
	m.writes++
	return nil
}

func (m *memStore) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
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

func (m *memStore) get(term string) *model.SearchTerm {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Term == term {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) setListErr(err error) {
	m.mu.Lock()
	m.listErr = err
	m.mu.Unlock()
}

// fakeTMDB 按查询词返回预设结果的 TMDB 桩
type fakeTMDB struct {
	mu       sync.Mutex
	srv      *httptest.Server
	status   int
	byQuery  map[string][]map[string]any
	discover []map[string]any
	requests []*http.Request
}

func newFakeTMDB(t *testing.T) *fakeTMDB {
	t.Helper()
	f := &fakeTMDB{status: http.StatusOK, byQuery: map[string][]map[string]any{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTMDB) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	status := f.status
	var results []map[string]any
	switch r.URL.Path {
	case "/search/movie":
		results = f.byQuery[r.URL.Query().Get("query")]
	case "/discover/movie":
		results = f.discover
	default:
		status = http.StatusNotFound
	}
	f.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, `{"status_message":"failure"}`, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"page": 1}
	if results != nil {
		body["results"] = results
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeTMDB) setStatus(code int) {
	f.mu.Lock()
	f.status = code
	f.mu.Unlock()
}

func (f *fakeTMDB) setQuery(q string, results ...map[string]any) {
	f.mu.Lock()
	if results == nil {
		results = []map[string]any{}
	}
	f.byQuery[q] = results
	f.mu.Unlock()
}

func (f *fakeTMDB) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeTMDB) service() *TMDBService {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer test-token")
	headers.Set("Accept", "application/json")
	return NewTMDBServiceWith(utils.NewHTTPClientWith(f.srv.Client(), headers), f.srv.URL)
}

func movie(id int, title, poster string) map[string]any {
	m := map[string]any{"id": id, "title": title, "overview": "..."}
	if poster != "" {
		m["poster_path"] = poster
	} else {
		m["poster_path"] = nil
	}
	return m
}

func newTestSearchService(source MovieSource, store *memStore) *SearchService {
	return NewSearchService(source, NewRankRecorder(store), NewTrendingReader(store, DefaultTrendingLimit), testImageBase)
}
