package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmesh/gateway/pkg/store"
	"github.com/shopmesh/gateway/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWT署名秘密鍵。
const testSecret = "test-secret-key"

// newJWTTestRouter はJWTAuthを適用したテスト用ルーターを生成する。
func newJWTTestRouter(revoker *token.Revoker) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret, revoker))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": GetUserID(c),
			"email":   GetEmail(c),
			"role":    GetRole(c),
		})
	})
	return router
}

// errorKind はエラーレスポンスからkindフィールドを取り出す。
func errorKind(t *testing.T, body []byte) string {
	t.Helper()

	var resp map[string]string
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	return resp["kind"]
}

// TestJWTAuth はJWT検証ミドルウェアをテストする。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでユーザー情報がコンテキストに設定される", func(t *testing.T) {
		t.Parallel()

		router := newJWTTestRouter(nil)
		raw, err := token.Issue(testSecret, "user-1", "test@example.com", "admin", time.Hour)
		if err != nil {
			t.Fatalf("トークン発行に失敗: %v", err)
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp["user_id"] != "user-1" {
			t.Errorf("user_id: got %q, want %q", resp["user_id"], "user-1")
		}
		if resp["role"] != "admin" {
			t.Errorf("role: got %q, want %q", resp["role"], "admin")
		}
	})

	t.Run("Authorizationヘッダー無しはmissing_token", func(t *testing.T) {
		t.Parallel()

		router := newJWTTestRouter(nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if kind := errorKind(t, w.Body.Bytes()); kind != "missing_token" {
			t.Errorf("kind: got %q, want %q", kind, "missing_token")
		}
	})

	t.Run("Bearer接頭辞なしはinvalid_token", func(t *testing.T) {
		t.Parallel()

		router := newJWTTestRouter(nil)
		raw, _ := token.Issue(testSecret, "user-1", "test@example.com", "user", time.Hour)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", raw)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if kind := errorKind(t, w.Body.Bytes()); kind != "invalid_token" {
			t.Errorf("kind: got %q, want %q", kind, "invalid_token")
		}
	})

	t.Run("期限切れトークンはinvalid_token", func(t *testing.T) {
		t.Parallel()

		router := newJWTTestRouter(nil)
		raw, _ := token.Issue(testSecret, "user-1", "test@example.com", "user", -time.Minute)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if kind := errorKind(t, w.Body.Bytes()); kind != "invalid_token" {
			t.Errorf("kind: got %q, want %q", kind, "invalid_token")
		}
	})

	t.Run("失効済みトークンはrevoked_token", func(t *testing.T) {
		t.Parallel()

		revoker := token.NewRevoker(store.NewMemoryStore(nil))
		router := newJWTTestRouter(revoker)

		raw, _ := token.Issue(testSecret, "user-1", "test@example.com", "user", time.Hour)
		claims, err := token.Verify(testSecret, raw)
		if err != nil {
			t.Fatalf("トークン検証に失敗: %v", err)
		}
		if err := revoker.Revoke(context.Background(), claims); err != nil {
			t.Fatalf("失効登録に失敗: %v", err)
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if kind := errorKind(t, w.Body.Bytes()); kind != "revoked_token" {
			t.Errorf("kind: got %q, want %q", kind, "revoked_token")
		}
	})

	t.Run("失効確認のストア障害時はfail-closedで503を返す", func(t *testing.T) {
		t.Parallel()

		s := store.NewMemoryStore(nil)
		s.SetFailing(true)
		router := newJWTTestRouter(token.NewRevoker(s))

		raw, _ := token.Issue(testSecret, "user-1", "test@example.com", "user", time.Hour)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
		if kind := errorKind(t, w.Body.Bytes()); kind != "store_unavailable" {
			t.Errorf("kind: got %q, want %q", kind, "store_unavailable")
		}
	})
}
