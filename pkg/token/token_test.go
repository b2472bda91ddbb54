package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopmesh/gateway/pkg/store"
)

// testSecret はテスト用のJWT署名秘密鍵。
const testSecret = "test-secret-key"

// TestIssueAndVerify はトークンの発行と検証をテストする。
func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	t.Run("発行したトークンを検証できる", func(t *testing.T) {
		t.Parallel()

		raw, err := Issue(testSecret, "user-1", "test@example.com", "user", time.Hour)
		if err != nil {
			t.Fatalf("トークン発行に失敗: %v", err)
		}

		claims, err := Verify(testSecret, raw)
		if err != nil {
			t.Fatalf("トークン検証に失敗: %v", err)
		}
		if claims.UserID != "user-1" {
			t.Errorf("UserID: got %q, want %q", claims.UserID, "user-1")
		}
		if claims.Email != "test@example.com" {
			t.Errorf("Email: got %q, want %q", claims.Email, "test@example.com")
		}
		if claims.Role != "user" {
			t.Errorf("Role: got %q, want %q", claims.Role, "user")
		}
		if claims.ID == "" {
			t.Error("jtiが付与されていない")
		}
	})

	t.Run("トークンごとに異なるjtiが付与される", func(t *testing.T) {
		t.Parallel()

		raw1, _ := Issue(testSecret, "user-1", "a@example.com", "user", time.Hour)
		raw2, _ := Issue(testSecret, "user-1", "a@example.com", "user", time.Hour)

		c1, err := Verify(testSecret, raw1)
		if err != nil {
			t.Fatalf("検証に失敗: %v", err)
		}
		c2, err := Verify(testSecret, raw2)
		if err != nil {
			t.Fatalf("検証に失敗: %v", err)
		}
		if c1.ID == c2.ID {
			t.Errorf("jtiが重複している: %q", c1.ID)
		}
	})

	t.Run("異なるsecretで署名されたトークンはErrMalformed", func(t *testing.T) {
		t.Parallel()

		raw, err := Issue("wrong-secret", "user-1", "a@example.com", "user", time.Hour)
		if err != nil {
			t.Fatalf("トークン発行に失敗: %v", err)
		}

		if _, err := Verify(testSecret, raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("期限切れトークンはErrExpired", func(t *testing.T) {
		t.Parallel()

		raw, err := Issue(testSecret, "user-1", "a@example.com", "user", -time.Minute)
		if err != nil {
			t.Fatalf("トークン発行に失敗: %v", err)
		}

		if _, err := Verify(testSecret, raw); !errors.Is(err, ErrExpired) {
			t.Errorf("got %v, want ErrExpired", err)
		}
	})

	t.Run("形式不正な文字列はErrMalformed", func(t *testing.T) {
		t.Parallel()

		if _, err := Verify(testSecret, "not-a-jwt"); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})
}

// TestRevoker は失効リストの登録と確認をテストする。
func TestRevoker(t *testing.T) {
	t.Parallel()

	t.Run("失効登録したトークンはIsRevoked=true", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryStore(nil)
		r := NewRevoker(s)
		ctx := context.Background()

		raw, _ := Issue(testSecret, "user-1", "a@example.com", "user", time.Hour)
		claims, err := Verify(testSecret, raw)
		if err != nil {
			t.Fatalf("検証に失敗: %v", err)
		}

		if err := r.Revoke(ctx, claims); err != nil {
			t.Fatalf("失効登録に失敗: %v", err)
		}

		revoked, err := r.IsRevoked(ctx, claims.ID)
		if err != nil {
			t.Fatalf("失効確認に失敗: %v", err)
		}
		if !revoked {
			t.Error("失効登録したトークンがrevoked=falseを返した")
		}
	})

	t.Run("未登録のトークンはIsRevoked=false", func(t *testing.T) {
		t.Parallel()

		r := NewRevoker(store.NewMemoryStore(nil))
		revoked, err := r.IsRevoked(context.Background(), "unknown-jti")
		if err != nil {
			t.Fatalf("失効確認に失敗: %v", err)
		}
		if revoked {
			t.Error("未登録のトークンがrevoked=trueを返した")
		}
	})

	t.Run("ストア障害時はエラーを返す", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryStore(nil)
		s.SetFailing(true)
		r := NewRevoker(s)

		if _, err := r.IsRevoked(context.Background(), "any"); !errors.Is(err, store.ErrUnavailable) {
			t.Errorf("got %v, want store.ErrUnavailable", err)
		}
	})
}
