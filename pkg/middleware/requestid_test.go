package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRequestID はリクエストID付与ミドルウェアをテストする。
func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("IDを生成してコンテキストとレスポンスヘッダーに設定する", func(t *testing.T) {
		t.Parallel()

		var gotID string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			gotID = GetRequestID(c)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		if gotID == "" {
			t.Error("コンテキストにリクエストIDが設定されていない")
		}
		if header := w.Header().Get(HeaderRequestID); header != gotID {
			t.Errorf("レスポンスヘッダー: got %q, want %q", header, gotID)
		}
	})

	t.Run("クライアント指定のX-Request-IDを引き継ぐ", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "client-supplied-id")
		router.ServeHTTP(w, req)

		if header := w.Header().Get(HeaderRequestID); header != "client-supplied-id" {
			t.Errorf("レスポンスヘッダー: got %q, want %q", header, "client-supplied-id")
		}
	})

	t.Run("リクエストごとに異なるIDが生成される", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		ids := make(map[string]struct{})
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)
			ids[w.Header().Get(HeaderRequestID)] = struct{}{}
		}

		if len(ids) != 3 {
			t.Errorf("一意なID数: got %d, want 3", len(ids))
		}
	})
}
