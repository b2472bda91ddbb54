package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestKindStatus はエラー種別とHTTPステータスの対応をテストする。
func TestKindStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want int
	}{
		{KindRouteNotFound, http.StatusNotFound},
		{KindMissingToken, http.StatusUnauthorized},
		{KindInvalidToken, http.StatusUnauthorized},
		{KindRevokedToken, http.StatusUnauthorized},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindCircuitOpen, http.StatusServiceUnavailable},
		{KindStoreUnavailable, http.StatusServiceUnavailable},
		{KindBackendError, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.want {
			t.Errorf("%s のステータス: got %d, want %d", tt.kind, got, tt.want)
		}
	}
}

// TestErrorUnwrap はラップした内部エラーの取り出しをテストする。
func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection refused")
	e := Wrap(KindBackendError, "バックエンドとの通信に失敗しました", inner)

	if !errors.Is(e, inner) {
		t.Error("内部エラーがUnwrapで取り出せない")
	}
	if e.Error() == "" {
		t.Error("Error()が空文字列を返した")
	}
}

// TestAbort はエラーレスポンスの書き込みをテストする。
func TestAbort(t *testing.T) {
	t.Parallel()

	t.Run("種別・メッセージ・リクエストIDを含むJSONを返す", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.GET("/test", func(c *gin.Context) {
			c.Set(ContextKeyRequestID, "req-123")
			Abort(c, New(KindRateLimited, "リクエスト数が上限を超えました"))
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusTooManyRequests)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if body["kind"] != string(KindRateLimited) {
			t.Errorf("kind: got %q, want %q", body["kind"], KindRateLimited)
		}
		if body["error"] == "" {
			t.Error("errorフィールドが空")
		}
		if body["request_id"] != "req-123" {
			t.Errorf("request_id: got %q, want %q", body["request_id"], "req-123")
		}
	})

	t.Run("内部エラーの内容はレスポンスに漏れない", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.GET("/test", func(c *gin.Context) {
			Abort(c, Wrap(KindBackendError, "バックエンドとの通信に失敗しました", errors.New("secret internal detail")))
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		if got := w.Body.String(); strings.Contains(got, "secret internal detail") {
			t.Errorf("内部エラーがレスポンスに含まれている: %s", got)
		}
	})
}
