package service

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/user/moviesearch/internal/metrics"
)

// SessionRegistry 每个会话一条流水线，闲置超时后关闭
type SessionRegistry struct {
	mu      sync.Mutex
	items   *cache.Cache
	factory func() *Pipeline
}

func NewSessionRegistry(idle time.Duration, factory func() *Pipeline) *SessionRegistry {
	cleanup := idle / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &SessionRegistry{
		items:   cache.New(idle, cleanup),
		factory: factory,
	}
	r.items.OnEvicted(func(_ string, v interface{}) {
		if p, ok := v.(*Pipeline); ok {
			p.Close()
		}
		metrics.ActiveSessions.Set(float64(r.items.ItemCount()))
	})
	return r
}

// Get 取出会话的流水线，不存在时新建并在后台挂载
func (r *SessionRegistry) Get(sessionID string) *Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.items.Get(sessionID); ok {
		p := v.(*Pipeline)
		// 续期
		r.items.SetDefault(sessionID, p)
		return p
	}

	// 已过期但尚未被清理的条目先走淘汰回调，避免泄漏
	r.items.DeleteExpired()

	p := r.factory()
	r.items.SetDefault(sessionID, p)
	metrics.ActiveSessions.Set(float64(r.items.ItemCount()))
	go p.Mount()
	return p
}

// Touch 为已有会话续期，不会新建；会话不存在时返回 false
func (r *SessionRegistry) Touch(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items.Get(sessionID)
	if !ok {
		return false
	}
	r.items.SetDefault(sessionID, v)
	return true
}

// Len 当前会话数
func (r *SessionRegistry) Len() int {
	return r.items.ItemCount()
}

// Close 关闭全部流水线
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.items.Items() {
		r.items.Delete(id)
	}
}
