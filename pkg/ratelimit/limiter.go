// Package ratelimit は共有ストア上の固定ウィンドウ方式レートリミッタを提供する。
//
// カウンタは共有ストアのアトミックなインクリメントに委譲するため、
// Gatewayを水平スケールしても全プロセスで一貫した上限が適用される。
// ルートグループごとに異なるウィンドウ・上限を設定でき、認証系エンドポイントには
// 一般トラフィックより厳しい制限をかけてクレデンシャルスタッフィングを防ぐ。
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopmesh/gateway/pkg/store"
)

// Group はレート制限を適用するルートグループを表す。
type Group string

const (
	// GroupAuth は認証系エンドポイント。一般より厳しい制限を適用する。
	GroupAuth Group = "auth"
	// GroupGeneral は一般のAPIトラフィック。
	GroupGeneral Group = "general"
)

// Config は1グループ分のレート制限設定。
type Config struct {
	// Window は固定ウィンドウの長さ。
	Window time.Duration
	// Max はウィンドウあたりの最大リクエスト数。
	Max int64
}

// Result はレート制限判定の結果。
type Result struct {
	// Allowed はリクエストを通過させてよいかどうか。
	Allowed bool
	// Remaining はウィンドウ内の残りリクエスト数。
	Remaining int64
	// RetryAfter は拒否された場合に再試行までの推奨待機時間。
	RetryAfter time.Duration
}

// Limiter は固定ウィンドウ方式のレートリミッタ。
type Limiter struct {
	// store はカウンタを保持する共有ストア。
	store store.Store
	// configs はグループごとの制限設定。
	configs map[Group]Config
	// failOpen はストア障害時にリクエストを通過させるかどうか。
	// falseの場合（デフォルト）はストア障害時に拒否する（fail-closed）。
	// 明示的な設定によってのみtrueになる。
	failOpen bool
}

// New は新しいLimiterを生成する。
func New(s store.Store, configs map[Group]Config, failOpen bool) *Limiter {
	return &Limiter{store: s, configs: configs, failOpen: failOpen}
}

// Allow はクライアントキーとグループの組に対してリクエストを判定する。
// インクリメント後のカウントが上限を超えた場合、そのリクエストは拒否される。
// ストア障害時はfail-open設定に従い、fail-closedの場合はエラーを返す。
func (l *Limiter) Allow(ctx context.Context, clientKey string, group Group) (Result, error) {
	cfg, ok := l.configs[group]
	if !ok {
		return Result{}, fmt.Errorf("未知のルートグループ: %q", group)
	}

	key := fmt.Sprintf("ratelimit:%s:%s", group, clientKey)
	count, remaining, err := l.store.IncrWindow(ctx, key, cfg.Window)
	if err != nil {
		if l.failOpen {
			log.Printf("[RateLimit] ストア障害のためfail-openで通過させます: key=%s, error=%v", key, err)
			return Result{Allowed: true, Remaining: 0}, nil
		}
		return Result{}, fmt.Errorf("レート制限カウンタの更新に失敗: %w", err)
	}

	if count > cfg.Max {
		return Result{Allowed: false, Remaining: 0, RetryAfter: remaining}, nil
	}
	return Result{Allowed: true, Remaining: cfg.Max - count}, nil
}
