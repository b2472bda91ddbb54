package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRecovery はパニックリカバリミドルウェアをテストする。
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("パニック発生時に500を返しプロセスは継続する", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID())
		router.Use(Recovery())
		router.GET("/panic", func(_ *gin.Context) {
			panic("予期しないエラー")
		})
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp["kind"] != "internal" {
			t.Errorf("kind: got %q, want %q", resp["kind"], "internal")
		}
		if resp["request_id"] == "" {
			t.Error("request_idフィールドが空")
		}

		// パニック後も後続リクエストは処理できる
		w2 := httptest.NewRecorder()
		req2 := httptest.NewRequest(http.MethodGet, "/ok", nil)
		router.ServeHTTP(w2, req2)
		if w2.Code != http.StatusOK {
			t.Errorf("パニック後のステータスコード: got %d, want %d", w2.Code, http.StatusOK)
		}
	})

	t.Run("パニック無しのリクエストには影響しない", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
	})
}
