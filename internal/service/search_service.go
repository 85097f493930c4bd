package service

import (
	"context"
	"log"
	"time"

	"github.com/user/moviesearch/internal/model"
)

// FetchErrorMessage 展示给用户的查询失败提示
const FetchErrorMessage = "Error fetching movies. Please try again later."

const storeTimeout = 10 * time.Second

// SearchService 查询 → 记录热搜 → 刷新热搜榜
type SearchService struct {
	movies       MovieSource
	recorder     *RankRecorder
	trending     *TrendingReader
	imageBaseURL string
}

func NewSearchService(movies MovieSource, recorder *RankRecorder, trending *TrendingReader, imageBaseURL string) *SearchService {
	return &SearchService{
		movies:       movies,
		recorder:     recorder,
		trending:     trending,
		imageBaseURL: imageBaseURL,
	}
}

// SearchOutcome 一次完整查询的结果
type SearchOutcome struct {
	Movies   []model.MovieResult `json:"movies"`
	Recorded bool                `json:"recorded"`
	Trending []model.SearchTerm  `json:"trending"`
}

// Fetch 只请求上游
func (s *SearchService) Fetch(ctx context.Context, query string) (*model.MovieList, error) {
	return s.movies.Fetch(ctx, query)
}

// RecordBestMatch 查询词非空且有结果时，用第一条结果的标题和海报记录热搜
// 记录的是上游返回的标题而不是用户输入
func (s *SearchService) RecordBestMatch(ctx context.Context, query string, results []model.MovieResult) bool {
	if query == "" || len(results) == 0 {
		return false
	}
	best := results[0]

	// 已接受的结果即使之后被新查询取代也要记完
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	s.recorder.Record(storeCtx, best.Title, PosterURL(s.imageBaseURL, best.PosterPath))
	return true
}

// Trending 读取热搜榜，失败时返回最近一次成功的榜单
func (s *SearchService) Trending(ctx context.Context) ([]model.SearchTerm, error) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return s.trending.Top(storeCtx)
}

// RefreshTrending 记录之后读取热搜榜，不复用写入前已发起的读取
func (s *SearchService) RefreshTrending(ctx context.Context) ([]model.SearchTerm, error) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return s.trending.Refresh(storeCtx)
}

// Run 无状态的一次完整查询
func (s *SearchService) Run(ctx context.Context, query string) (*SearchOutcome, error) {
	list, err := s.Fetch(ctx, query)
	if err != nil {
		log.Printf("[SearchService] 查询失败 (%q): %v", query, err)
		return nil, err
	}

	out := &SearchOutcome{Movies: list.Results}
	if s.RecordBestMatch(ctx, query, list.Results) {
		out.Recorded = true
		// 失败时沿用旧榜单
		out.Trending, _ = s.RefreshTrending(ctx)
	}
	return out, nil
}
