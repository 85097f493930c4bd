package service

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/user/moviesearch/internal/metrics"
	"github.com/user/moviesearch/internal/model"
	"golang.org/x/sync/singleflight"
)

// DefaultTrendingLimit 热搜榜条数
const DefaultTrendingLimit = 5

// TrendingStore TrendingReader 依赖的存储操作
type TrendingStore interface {
	ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error)
}

// TrendingReader 读取热搜榜
type TrendingReader struct {
	store TrendingStore
	limit int
	group singleflight.Group

	mu   sync.RWMutex
	last []model.SearchTerm
}

func NewTrendingReader(store TrendingStore, limit int) *TrendingReader {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	return &TrendingReader{store: store, limit: limit}
}

const trendingKey = "top"

// Top 按次数倒序取前 N 个词
// 失败时返回最近一次成功的结果和错误，调用方可以继续展示旧榜单
func (t *TrendingReader) Top(ctx context.Context) ([]model.SearchTerm, error) {
	return t.read(ctx)
}

// Refresh 与 Top 相同，但不加入调用前已发起的读取
// 写入之后用它，保证读到自己的写入
func (t *TrendingReader) Refresh(ctx context.Context) ([]model.SearchTerm, error) {
	t.group.Forget(trendingKey)
	return t.read(ctx)
}

func (t *TrendingReader) read(ctx context.Context) ([]model.SearchTerm, error) {
	// 使用 singleflight 合并并发刷新
	val, err, _ := t.group.Do(trendingKey, func() (interface{}, error) {
		return t.store.ListTop(ctx, t.limit)
	})
	if err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("trending").Inc()
		log.Printf("[TrendingReader] 获取热搜榜失败: %v", err)
		return t.Last(), err
	}

	terms := copyTerms(val.([]model.SearchTerm))
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Count > terms[j].Count
	})
	if len(terms) > t.limit {
		terms = terms[:t.limit]
	}

	t.mu.Lock()
	t.last = terms
	t.mu.Unlock()
	return copyTerms(terms), nil
}

// Last 最近一次成功读取的榜单
func (t *TrendingReader) Last() []model.SearchTerm {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyTerms(t.last)
}

func copyTerms(in []model.SearchTerm) []model.SearchTerm {
	out := make([]model.SearchTerm, len(in))
	copy(out, in)
	return out
}
