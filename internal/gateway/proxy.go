package gateway

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmesh/gateway/pkg/apierror"
	"github.com/shopmesh/gateway/pkg/breaker"
	"github.com/shopmesh/gateway/pkg/middleware"
	"github.com/shopmesh/gateway/pkg/store"
	"github.com/shopmesh/gateway/pkg/token"
)

const (
	// headerUserID はバックエンドにユーザーIDを伝播するヘッダー。
	headerUserID = "X-User-ID"
	// headerUserRole はバックエンドにロールを伝播するヘッダー。
	headerUserRole = "X-User-Role"
)

// AuthContext は検証済みトークンから導出したリクエスト単位の認証情報。
// リクエストの処理中にのみ存在し、永続化されない。
type AuthContext struct {
	// UserID は呼び出し元ユーザーの一意識別子。
	UserID string
	// Email はユーザーのメールアドレス。
	Email string
	// Role はユーザーのロール。
	Role string
}

// handleDispatch はプロキシ対象リクエストの処理ハンドラを返す。
// ルート照合 → レート制限 → 認証 → 転送 の順に各ステージを適用し、
// いずれかのステージで拒否された場合はそこで応答を確定する。
func (s *Server) handleDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, ok := s.table.Match(c.Request.URL.Path)
		if !ok {
			apierror.Abort(c, apierror.New(apierror.KindRouteNotFound,
				fmt.Sprintf("ルートが見つかりません: %s", c.Request.URL.Path)))
			return
		}

		if !s.allowRate(c, route) {
			return
		}

		authCtx, aerr := s.authenticate(c, route)
		if aerr != nil {
			apierror.Abort(c, aerr)
			return
		}

		s.forward(c, route, authCtx)
	}
}

// allowRate はルートのグループ設定に従ってレート制限を適用する。
// 拒否した場合はエラーレスポンスを書き込みfalseを返す。
// キーにはクライアントIPを使用する。認証前のエンドポイント（ログイン等）にも
// 適用するため、ユーザーIDではなくIPでカウントする。
func (s *Server) allowRate(c *gin.Context, route *Route) bool {
	res, err := s.limiter.Allow(c.Request.Context(), c.ClientIP(), route.Group)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			log.Printf("[Gateway] レート制限ストア障害のためリクエストを拒否します: %v", err)
			apierror.Abort(c, apierror.Wrap(apierror.KindStoreUnavailable,
				"一時的にリクエストを受け付けられません", err))
			return false
		}
		apierror.Abort(c, apierror.Wrap(apierror.KindInternal, "内部サーバーエラーが発生しました", err))
		return false
	}

	if !res.Allowed {
		retryAfter := int64(res.RetryAfter / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		apierror.Abort(c, apierror.New(apierror.KindRateLimited,
			"リクエスト数が上限を超えました。しばらく待ってから再試行してください"))
		return false
	}
	return true
}

// authenticate はルートの認証ポリシーに従ってBearerトークンを検証する。
// 認証不要なルートではnilのAuthContextを返す。
// 「トークン無し」「無効・期限切れ」「失効済み」は別のエラー種別として返す。
func (s *Server) authenticate(c *gin.Context, route *Route) (*AuthContext, *apierror.Error) {
	required := route.Policy == AuthRequired ||
		(route.Policy == AuthMutationOnly && isMutation(c.Request.Method))
	if !required {
		return nil, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, apierror.New(apierror.KindMissingToken, "Authorizationヘッダーが必要です")
	}

	raw, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return nil, apierror.New(apierror.KindInvalidToken, "Bearer トークン形式が不正です")
	}

	claims, err := token.Verify(s.cfg.JWTSecret, raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, apierror.New(apierror.KindInvalidToken, "トークンの有効期限が切れています")
		}
		return nil, apierror.New(apierror.KindInvalidToken, "トークンが無効です")
	}

	// 失効確認はfail-closed。ストア障害時はトークンを受け入れない。
	revoked, err := s.revoker.IsRevoked(c.Request.Context(), claims.ID)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindStoreUnavailable, "認証状態を確認できません", err)
	}
	if revoked {
		return nil, apierror.New(apierror.KindRevokedToken, "トークンは失効しています")
	}

	return &AuthContext{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// isMutation は更新系メソッドかどうかを判定する。
func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// forward はリクエストをバックエンドインスタンスに転送する。
// 転送はサービスごとのサーキットブレーカーで保護される。
// バックエンドの5xx応答と通信エラーはブレーカーの失敗として記録されるが、
// 5xx応答のボディはそのままクライアントに転送する。
func (s *Server) forward(c *gin.Context, route *Route, authCtx *AuthContext) {
	instance := s.pickInstance(route.Service)
	targetURL := instance + route.RewritePath(c.Request.URL.Path)
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	header := http.Header{}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}
	if authz := c.GetHeader("Authorization"); authz != "" {
		header.Set("Authorization", authz)
	}
	header.Set(middleware.HeaderRequestID, middleware.GetRequestID(c))
	if authCtx != nil {
		header.Set(headerUserID, authCtx.UserID)
		header.Set(headerUserRole, authCtx.Role)
	}

	var resp *http.Response
	err := s.breakers.Do(string(route.Service), func() error {
		r, ferr := s.client.Forward(c.Request.Context(), c.Request.Method, targetURL, header, c.Request.Body)
		if ferr != nil {
			return ferr
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("バックエンドが異常応答を返しました: service=%s, status=%d", route.Service, r.StatusCode)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			apierror.Abort(c, apierror.New(apierror.KindCircuitOpen,
				fmt.Sprintf("サービス %s は一時的に利用できません", route.Service)))
			return
		}
		if resp == nil {
			log.Printf("[Gateway] 転送エラー: url=%s, request_id=%s, error=%v",
				targetURL, middleware.GetRequestID(c), err)
			apierror.Abort(c, apierror.Wrap(apierror.KindBackendError,
				"バックエンドとの通信に失敗しました", err))
			return
		}
		// 5xx応答: ブレーカーには失敗として記録済み。応答自体は転送する。
		log.Printf("[Gateway] バックエンド異常応答: url=%s, status=%d, request_id=%s",
			targetURL, resp.StatusCode, middleware.GetRequestID(c))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apierror.Abort(c, apierror.Wrap(apierror.KindBackendError, "レスポンスの読み取りに失敗しました", err))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

// pickInstance はサービスのバックエンドインスタンスを一様ランダムに選択する。
func (s *Server) pickInstance(svc Service) string {
	instances := s.cfg.Backends[svc]
	if len(instances) == 1 {
		return instances[0]
	}
	return instances[rand.IntN(len(instances))]
}
