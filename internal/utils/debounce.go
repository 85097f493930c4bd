package utils

import (
	"sync"
	"time"
)

// Debouncer 输入在静默期 quiet 内不再变化后才发出最后一个值
type Debouncer[T any] struct {
	mu         sync.Mutex
	quiet      time.Duration
	emit       func(T)
	timer      *time.Timer
	pending    T
	hasPending bool
	gen        uint64
	stopped    bool
}

// NewDebouncer 创建防抖器，emit 在独立的 goroutine 中被调用
func NewDebouncer[T any](quiet time.Duration, emit func(T)) *Debouncer[T] {
	return &Debouncer[T]{quiet: quiet, emit: emit}
}

// Push 更新输入值，取消尚未触发的发送并重新计时
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending = v
	d.hasPending = true
	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.fire(gen)
	})
}

// Cancel 丢弃等待中的值，之后仍可继续 Push
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	d.pending = zero
	d.hasPending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending 是否有值在等待静默期结束
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// Stop 取消等待中的发送，之后的 Push 全部忽略
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// 计时器 Stop 失败时回调可能已在排队，用 gen 丢弃过期的回调
	if d.stopped || !d.hasPending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.pending
	var zero T
	d.pending = zero
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.emit(v)
}
