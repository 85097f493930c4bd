package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"

	"github.com/user/moviesearch/internal/metrics"
	"github.com/user/moviesearch/internal/model"
	"github.com/user/moviesearch/internal/repository"
)

// TermStore RankRecorder 依赖的存储操作
type TermStore interface {
	FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error)
	Create(ctx context.Context, st *model.SearchTerm) error
	Update(ctx context.Context, id string, count int, posterURL string) error
}

const termLockStripes = 64

// RankRecorder 记录热搜词：先查后写
// 同进程内同一个词的写入按分段锁串行，跨进程不保证原子性
type RankRecorder struct {
	store TermStore
	locks [termLockStripes]sync.Mutex
}

func NewRankRecorder(store TermStore) *RankRecorder {
	return &RankRecorder{store: store}
}

// Record 记录一次搜索命中，失败只打日志和计数，不向调用方返回
func (r *RankRecorder) Record(ctx context.Context, term, posterURL string) {
	if err := r.record(ctx, term, posterURL); err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("record").Inc()
		log.Printf("[RankRecorder] 保存热搜词失败 (%q): %v", term, err)
	}
}

func (r *RankRecorder) record(ctx context.Context, term, posterURL string) error {
	key := model.NormalizeTerm(term)
	if key == "" {
		return nil
	}

	mu := r.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	err := r.upsert(ctx, key, posterURL)
	if errors.Is(err, repository.ErrDuplicateTerm) {
		// 其他进程抢先创建了同一个词，按已存在处理
		err = r.upsert(ctx, key, posterURL)
	}
	return err
}

func (r *RankRecorder) upsert(ctx context.Context, key, posterURL string) error {
	existing, err := r.store.FindByTerm(ctx, key)
	if err != nil {
		return fmt.Errorf("查询热搜词失败: %w", err)
	}

	if existing != nil {
		poster := existing.PosterURL
		if posterURL != "" {
			poster = posterURL
		}
		if err := r.store.Update(ctx, existing.ID, existing.Count+1, poster); err != nil {
			return fmt.Errorf("更新热搜词失败: %w", err)
		}
		return nil
	}

	if err := r.store.Create(ctx, &model.SearchTerm{
		Term:      key,
		Count:     1,
		PosterURL: posterURL,
	}); err != nil {
		if errors.Is(err, repository.ErrDuplicateTerm) {
			return err
		}
		return fmt.Errorf("创建热搜词失败: %w", err)
	}
	return nil
}

func (r *RankRecorder) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.locks[h.Sum32()%termLockStripes]
}
