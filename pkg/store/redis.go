package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript はカウンタのインクリメントと有効期限設定をアトミックに行うLuaスクリプト。
// ウィンドウ内の最初のインクリメント時のみPEXPIREを設定する。
// 戻り値は {インクリメント後のカウント, 残りミリ秒}。
const incrWindowScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// RedisStore はRedisを使用したStoreの実装。
type RedisStore struct {
	// client はgo-redisのクライアント。
	client *redis.Client
	// timeout はストア操作1回あたりのタイムアウト。
	// レート制限・失効確認はリクエストのホットパスで実行されるため短く保つ。
	timeout time.Duration
}

// NewRedisStore は指定アドレスのRedisに接続するStoreを生成する。
func NewRedisStore(addr string, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &RedisStore{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		timeout: timeout,
	}
}

// Ping はRedisへの疎通を確認する。起動時のヘルスチェックに使用する。
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrWindow はLuaスクリプトでカウンタをアトミックにインクリメントする。
func (s *RedisStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.client.Eval(ctx, incrWindowScript, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, 0, fmt.Errorf("%w: 予期しないスクリプト応答: %v", ErrUnavailable, res)
	}
	count, _ := arr[0].(int64)
	ttlMs, _ := arr[1].(int64)
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

// SetWithTTL はキーに有効期限付きで値を設定する。
func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get はキーの値を取得する。
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
