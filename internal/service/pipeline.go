package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/user/moviesearch/internal/metrics"
	"github.com/user/moviesearch/internal/model"
	"github.com/user/moviesearch/internal/utils"
)

// DefaultQuietPeriod 输入防抖静默期
const DefaultQuietPeriod = 600 * time.Millisecond

// Pipeline 单个会话的搜索流水线
//
// 输入 → 防抖 → 查询 → (成功且有结果) 记录热搜 → 刷新热搜榜
// 每次查询领取递增序号，返回时序号已不是最新的结果直接丢弃
type Pipeline struct {
	search    *SearchService
	debouncer *utils.Debouncer[string]

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	state    model.ViewState
	seq      uint64
	trendSeq uint64
	settled  string
	cancel   context.CancelFunc
	closed   bool
	watchers map[chan struct{}]struct{}
}

func NewPipeline(search *SearchService, quiet time.Duration) *Pipeline {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		search:     search,
		baseCtx:    ctx,
		baseCancel: cancel,
		watchers:   map[chan struct{}]struct{}{},
		state: model.ViewState{
			Phase:    model.PhaseIdle,
			Movies:   []model.MovieResult{},
			Trending: []model.SearchTerm{},
		},
	}
	p.debouncer = utils.NewDebouncer(quiet, p.settle)
	return p
}

// Mount 首次进入：加载热搜榜并请求默认列表
// 已有查询发出时不再请求默认列表
func (p *Pipeline) Mount() {
	p.RefreshTrending(p.baseCtx)
	p.dispatch(p.baseCtx, "", true)
}

// Input 用户输入变化
func (p *Pipeline) Input(term string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state.SearchTerm = term
	if !p.state.Loading {
		p.state.Phase = model.PhaseDebouncing
	}
	p.notifyLocked()
	p.mu.Unlock()

	p.debouncer.Push(term)
}

// SearchNow 设置输入并跳过静默期立即查询，即使与上次查询的词相同
func (p *Pipeline) SearchNow(term string) {
	p.Input(term)
	p.debouncer.Cancel()

	p.mu.Lock()
	p.settled = term
	p.mu.Unlock()

	p.Dispatch(p.baseCtx, term)
}

// settle 防抖结束；值与上次发出的相同时不再查询
func (p *Pipeline) settle(term string) {
	pending := p.debouncer.Pending()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if term == p.settled {
		if !p.state.Loading && !pending {
			p.state.Phase = model.PhaseIdle
			p.notifyLocked()
		}
		p.mu.Unlock()
		return
	}
	p.settled = term
	p.mu.Unlock()

	p.Dispatch(p.baseCtx, term)
}

// Dispatch 按查询词请求上游并更新状态
func (p *Pipeline) Dispatch(ctx context.Context, term string) {
	p.dispatch(ctx, term, false)
}

func (p *Pipeline) dispatch(ctx context.Context, term string, firstOnly bool) {
	p.mu.Lock()
	if p.closed || (firstOnly && p.seq > 0) {
		p.mu.Unlock()
		return
	}
	// 新查询会取消仍在进行中的旧查询
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	seq := p.seq
	dctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state.Loading = true
	p.state.ErrorMessage = ""
	p.state.Phase = model.PhaseDispatching
	p.state.Seq = seq
	p.notifyLocked()
	p.mu.Unlock()

	defer cancel()
	defer p.release(seq)

	list, err := p.search.Fetch(dctx, term)

	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		metrics.StaleDispatchDiscarded.Inc()
		log.Printf("[Pipeline] 丢弃过期查询结果 (seq=%d, term=%q)", seq, term)
		return
	}
	if err != nil {
		p.state.ErrorMessage = FetchErrorMessage
		p.notifyLocked()
		p.mu.Unlock()
		log.Printf("[Pipeline] 查询失败 (term=%q): %v", term, err)
		return
	}
	// 整体替换，不做合并
	p.state.Movies = list.Results
	recordable := term != "" && len(list.Results) > 0
	if recordable {
		p.state.Phase = model.PhaseRecording
	}
	p.notifyLocked()
	p.mu.Unlock()

	if !recordable {
		return
	}

	p.search.RecordBestMatch(dctx, term, list.Results)
	p.setPhase(seq, model.PhaseRefreshing)
	p.refreshTrending(dctx, true)
}

// RefreshTrending 刷新热搜榜，失败时保留当前榜单
// 多次刷新交错返回时只采用最后发起的那次
func (p *Pipeline) RefreshTrending(ctx context.Context) {
	p.refreshTrending(ctx, false)
}

// afterWrite 为 true 时必须读到刚写入的记录
func (p *Pipeline) refreshTrending(ctx context.Context, afterWrite bool) {
	p.mu.Lock()
	p.trendSeq++
	seq := p.trendSeq
	p.mu.Unlock()

	read := p.search.Trending
	if afterWrite {
		read = p.search.RefreshTrending
	}
	terms, err := read(ctx)
	if err != nil {
		return
	}
	p.mu.Lock()
	if seq == p.trendSeq && !p.closed {
		p.state.Trending = terms
		p.notifyLocked()
	}
	p.mu.Unlock()
}

// Snapshot 当前状态的副本
func (p *Pipeline) Snapshot() model.ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state
	s.Movies = append([]model.MovieResult{}, p.state.Movies...)
	s.Trending = append([]model.SearchTerm{}, p.state.Trending...)
	return s
}

// Close 停止防抖并取消进行中的查询
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	for ch := range p.watchers {
		close(ch)
	}
	p.watchers = nil
	p.mu.Unlock()

	p.debouncer.Stop()
	p.baseCancel()
}

func (p *Pipeline) setPhase(seq uint64, phase model.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq == p.seq {
		p.state.Phase = phase
		p.notifyLocked()
	}
}

// release 无论成功失败都清除 loading，只对最新的查询生效
func (p *Pipeline) release(seq uint64) {
	pending := p.debouncer.Pending()

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq {
		return
	}
	p.state.Loading = false
	if pending {
		p.state.Phase = model.PhaseDebouncing
	} else {
		p.state.Phase = model.PhaseIdle
	}
	p.notifyLocked()
}

// Watch 订阅状态变化，每次变化至少收到一次通知（合并连续变化）
// 流水线关闭时通道被关闭，调用返回的函数取消订阅
func (p *Pipeline) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	p.watchers[ch] = struct{}{}

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.watchers[ch]; ok {
			delete(p.watchers, ch)
			close(ch)
		}
	}
}

func (p *Pipeline) notifyLocked() {
	for ch := range p.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
