package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/moviesearch/internal/model"
)

func seed(store *memStore, counts ...int) {
	for i, c := range counts {
		_ = store.Create(context.Background(), &model.SearchTerm{Term: fmt.Sprintf("term %d", i), Count: c})
	}
}

func TestTrendingReaderLimitAndOrder(t *testing.T) {
	store := newMemStore()
	seed(store, 3, 9, 1, 7, 7, 2, 12, 5)
	reader := NewTrendingReader(store, DefaultTrendingLimit)

	top, err := reader.Top(context.Background())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 5 {
		t.Fatalf("len = %d, want 5", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Count > top[i-1].Count {
			t.Fatalf("not non-increasing: %+v", top)
		}
	}
	if top[0].Count != 12 {
		t.Fatalf("top[0] = %+v", top[0])
	}
}

// unsortedStore 返回未排序且超量的结果
type unsortedStore struct{}

func (unsortedStore) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	out := make([]model.SearchTerm, 0, 8)
	for i := 1; i <= 8; i++ {
		out = append(out, model.SearchTerm{Term: fmt.Sprint(i), Count: i})
	}
	return out, nil
}

func TestTrendingReaderEnforcesContract(t *testing.T) {
	reader := NewTrendingReader(unsortedStore{}, 5)
	top, err := reader.Top(context.Background())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 5 || top[0].Count != 8 || top[4].Count != 4 {
		t.Fatalf("top = %+v", top)
	}
}

func TestTrendingReaderKeepsLastOnFailure(t *testing.T) {
	store := newMemStore()
	seed(store, 2, 1)
	reader := NewTrendingReader(store, 5)

	first, err := reader.Top(context.Background())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}

	store.setListErr(errors.New("down"))
	second, err := reader.Top(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(second) != len(first) || second[0].Term != first[0].Term {
		t.Fatalf("stale list = %+v, want %+v", second, first)
	}
}

// stalledStore 第一次 ListTop 先取快照，再阻塞到 release 关闭
type stalledStore struct {
	*memStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stalledStore) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	terms, err := s.memStore.ListTop(ctx, limit)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return terms, err
}

func TestTrendingReaderRefreshSeesPriorWrite(t *testing.T) {
	store := &stalledStore{
		memStore: newMemStore(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	reader := NewTrendingReader(store, 5)
	recorder := NewRankRecorder(store.memStore)
	ctx := context.Background()

	slow := make(chan struct{})
	go func() {
		defer close(slow)
		_, _ = reader.Top(ctx)
	}()
	<-store.entered

	// 写入发生在慢读取开始之后
	recorder.Record(ctx, "Heat", "")

	type result struct {
		terms []model.SearchTerm
		err   error
	}
	fresh := make(chan result, 1)
	go func() {
		terms, err := reader.Refresh(ctx)
		fresh <- result{terms, err}
	}()

	select {
	case r := <-fresh:
		if r.err != nil {
			t.Fatalf("Refresh: %v", r.err)
		}
		if len(r.terms) != 1 || r.terms[0].Term != "heat" || r.terms[0].Count != 1 {
			t.Fatalf("terms = %+v, want the recorded term", r.terms)
		}
	case <-time.After(time.Second):
		t.Fatal("Refresh joined the read that started before the write")
	}

	close(store.release)
	<-slow
}
