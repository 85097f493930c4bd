package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/moviesearch/internal/config"
	"github.com/user/moviesearch/internal/metrics"
	"github.com/user/moviesearch/internal/model"
	"github.com/user/moviesearch/internal/utils"
)

// MovieSource 电影元数据来源
type MovieSource interface {
	// Fetch 空查询走 discover，否则走 search
	Fetch(ctx context.Context, query string) (*model.MovieList, error)
}

// UpstreamError TMDB 返回非 2xx
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

type TMDBService struct {
	client  *utils.HTTPClient
	baseURL string
}

func NewTMDBService(cfg *config.Config) *TMDBService {
	return NewTMDBServiceWith(utils.NewHTTPClient(cfg.TMDBTimeout, tmdbHeaders(cfg.TMDBToken)), cfg.TMDBBaseURL)
}

// NewTMDBServiceWith 使用外部提供的 HTTP 客户端
func NewTMDBServiceWith(client *utils.HTTPClient, baseURL string) *TMDBService {
	return &TMDBService{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func tmdbHeaders(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Accept", "application/json")
	return h
}

func (s *TMDBService) Fetch(ctx context.Context, query string) (*model.MovieList, error) {
	if query == "" {
		return s.Discover(ctx)
	}
	return s.Search(ctx, query)
}

// Search GET /search/movie?query=
func (s *TMDBService) Search(ctx context.Context, query string) (*model.MovieList, error) {
	return s.get(ctx, "search", s.baseURL+"/search/movie?query="+url.QueryEscape(query))
}

// Discover GET /discover/movie
func (s *TMDBService) Discover(ctx context.Context) (*model.MovieList, error) {
	return s.get(ctx, "discover", s.baseURL+"/discover/movie")
}

func (s *TMDBService) get(ctx context.Context, kind, endpoint string) (*model.MovieList, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	var list model.MovieList
	if err := s.client.GetJSON(ctx, endpoint, &list); err != nil {
		metrics.DispatchTotal.WithLabelValues(kind, "error").Inc()
		var statusErr *utils.StatusError
		if errors.As(err, &statusErr) {
			return nil, &UpstreamError{StatusCode: statusErr.StatusCode}
		}
		return nil, fmt.Errorf("tmdb %s: %w", kind, err)
	}
	if list.Results == nil {
		list.Results = []model.MovieResult{}
	}
	metrics.DispatchTotal.WithLabelValues(kind, "ok").Inc()
	return &list, nil
}

// PosterURL 拼接海报地址，没有海报路径时返回空串
func PosterURL(imageBaseURL, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return strings.TrimRight(imageBaseURL, "/") + posterPath
}
