package service

import (
	"context"
	"log"
	"time"

	"github.com/user/moviesearch/internal/metrics"
)

// StaleTermStore 支持清理的存储
type StaleTermStore interface {
	DeleteStale(ctx context.Context, days int) (int64, error)
}

// CleanupService 清理服务
type CleanupService struct {
	store         StaleTermStore
	retentionDays int
	interval      time.Duration
}

// NewCleanupService 创建清理服务，retentionDays <= 0 时不清理
func NewCleanupService(store StaleTermStore, retentionDays int) *CleanupService {
	return &CleanupService{
		store:         store,
		retentionDays: retentionDays,
		interval:      24 * time.Hour,
	}
}

// Start 启动定时清理任务
func (s *CleanupService) Start(ctx context.Context) {
	if s.retentionDays <= 0 {
		log.Println("[CleanupService] 未设置保留天数，跳过定时清理")
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// 启动时先运行一次
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 清理超过保留天数未被搜索的热搜词
func (s *CleanupService) RunOnce(ctx context.Context) int64 {
	if s.retentionDays <= 0 {
		return 0
	}
	affected, err := s.store.DeleteStale(ctx, s.retentionDays)
	if err != nil {
		metrics.StoreFailuresTotal.WithLabelValues("cleanup").Inc()
		log.Printf("[CleanupService] 清理旧热搜词失败: %v", err)
		return 0
	}
	if affected > 0 {
		log.Printf("[CleanupService] 已清理 %d 条超过 %d 天未搜索的热搜词", affected, s.retentionDays)
	}
	return affected
}
