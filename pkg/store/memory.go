package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はテスト用のインメモリStore実装。
// 時刻注入と障害シミュレーションをサポートする。
type MemoryStore struct {
	mu sync.Mutex
	// now は現在時刻を返す関数。テストで時刻を進めるために差し替える。
	now func() time.Time
	// counters はウィンドウカウンタの状態。
	counters map[string]*windowCounter
	// values はget/set用のエントリ。
	values map[string]ttlValue
	// failing がtrueの場合、全操作がErrUnavailableを返す。
	failing bool
}

// windowCounter は1つの固定ウィンドウカウンタの状態。
type windowCounter struct {
	count    int64
	expireAt time.Time
	window   time.Duration
}

// ttlValue は有効期限付きの値。
type ttlValue struct {
	value    string
	expireAt time.Time
}

// NewMemoryStore は新しいインメモリStoreを生成する。
// nowがnilの場合はtime.Nowを使用する。
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:      now,
		counters: make(map[string]*windowCounter),
		values:   make(map[string]ttlValue),
	}
}

// SetFailing は障害シミュレーションの有効/無効を切り替える。
func (s *MemoryStore) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// IncrWindow はカウンタをインクリメントする。期限切れのカウンタは再生成する。
func (s *MemoryStore) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return 0, 0, ErrUnavailable
	}

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.expireAt) {
		c = &windowCounter{expireAt: now.Add(window), window: window}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.expireAt.Sub(now), nil
}

// SetWithTTL はキーに有効期限付きで値を設定する。
func (s *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return ErrUnavailable
	}
	s.values[key] = ttlValue{value: value, expireAt: s.now().Add(ttl)}
	return nil
}

// Get はキーの値を取得する。期限切れのエントリは存在しないものとして扱う。
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return "", false, ErrUnavailable
	}
	v, ok := s.values[key]
	if !ok || !s.now().Before(v.expireAt) {
		delete(s.values, key)
		return "", false, nil
	}
	return v.value, true, nil
}
