// Package store は複数のGatewayプロセスで共有するKVストアへのアクセスを提供する。
//
// レート制限カウンタ用のアトミックなインクリメント（有効期限付き）と、
// トークン失効リスト用の単純なget/set（有効期限付き）の2つのプリミティブのみを
// 要求する。この2つを提供するKVストアであれば実装を差し替えられる。
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable はストアに到達できないことを表す。
// 呼び出し側はこのエラーを検出してfail-open/fail-closedのポリシーを適用する。
var ErrUnavailable = errors.New("共有ストアに到達できません")

// Store は共有KVストアの操作を定義する。
type Store interface {
	// IncrWindow はキーのカウンタをアトミックにインクリメントする。
	// ウィンドウ内の最初のインクリメントで有効期限を設定し、
	// インクリメント後のカウント値とウィンドウの残り時間を返す。
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)

	// SetWithTTL はキーに値を設定し、有効期限を付与する。
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get はキーの値を取得する。キーが存在しない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)
}
