package token

import (
	"context"
	"fmt"
	"time"

	"github.com/shopmesh/gateway/pkg/store"
)

// revokedKeyPrefix は失効リストのキー接頭辞。
const revokedKeyPrefix = "revoked:"

// Revoker は共有ストア上のトークン失効リストを管理する。
// 失効エントリはトークン自体の残り有効期間だけ保持すればよい。
type Revoker struct {
	// store は失効リストを保持する共有ストア。
	store store.Store
}

// NewRevoker は新しいRevokerを生成する。
func NewRevoker(s store.Store) *Revoker {
	return &Revoker{store: s}
}

// Revoke はトークンを失効リストに登録する。
// エントリのTTLはトークンの残り有効期間に合わせる（期限切れ後は検証自体が失敗するため）。
func (r *Revoker) Revoke(ctx context.Context, claims *Claims) error {
	if claims.ID == "" {
		return fmt.Errorf("トークンにjtiが含まれていません")
	}

	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	if err := r.store.SetWithTTL(ctx, revokedKeyPrefix+claims.ID, "1", ttl); err != nil {
		return fmt.Errorf("失効リストへの登録に失敗: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効リストに登録されているか確認する。
// ストア障害時はエラーを返す。失効確認はfail-closed（呼び出し側で拒否）とする。
func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, found, err := r.store.Get(ctx, revokedKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("失効リストの確認に失敗: %w", err)
	}
	return found, nil
}
