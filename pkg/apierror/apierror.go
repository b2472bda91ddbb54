// Package apierror はGateway全体で使用するエラー分類を提供する。
//
// エラー種別ごとに安定したHTTPステータスコードとJSONレスポンス形式を定義し、
// クライアントと運用者が「ルート不一致」「認証失敗」「レート制限」
// 「サーキットブレーカー作動」「バックエンド障害」を区別できるようにする。
package apierror

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind はエラーの種別を表す。レスポンスボディのkindフィールドにそのまま出力される。
type Kind string

const (
	// KindRouteNotFound は設定されたルートプレフィックスに一致しないリクエスト。
	KindRouteNotFound Kind = "route_not_found"
	// KindMissingToken はAuthorizationヘッダーが存在しないリクエスト。
	KindMissingToken Kind = "missing_token"
	// KindInvalidToken は署名不正・形式不正・期限切れのトークン。
	KindInvalidToken Kind = "invalid_token"
	// KindRevokedToken は失効リストに登録済みのトークン。
	KindRevokedToken Kind = "revoked_token"
	// KindRateLimited はウィンドウ内の上限を超えたリクエスト。
	KindRateLimited Kind = "rate_limited"
	// KindCircuitOpen はサーキットブレーカーにより即時拒否された呼び出し。
	// バックエンド自体のエラー（KindBackendError）とは区別する。
	KindCircuitOpen Kind = "circuit_open"
	// KindBackendError はバックエンドへの到達失敗・タイムアウト・異常応答。
	KindBackendError Kind = "backend_error"
	// KindStoreUnavailable は共有ストア（カウンタ・失効リスト）への到達失敗。
	KindStoreUnavailable Kind = "store_unavailable"
	// KindInternal はリクエスト処理中の予期しない内部エラー。
	KindInternal Kind = "internal"
)

// ContextKeyRequestID はGinコンテキストにリクエストIDを格納するキー。
// middleware.RequestID が設定し、エラーレスポンス生成時に参照する。
const ContextKeyRequestID = "request_id"

// Status はエラー種別に対応するHTTPステータスコードを返す。
// 種別とステータスの対応は安定しており、クライアントはこれに依存してよい。
func (k Kind) Status() int {
	switch k {
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindMissingToken, KindInvalidToken, KindRevokedToken:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindCircuitOpen, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error はエラー種別とクライアント向けメッセージを持つエラー。
// 内部エラーはerrに保持し、レスポンスには含めない。
type Error struct {
	// Kind はエラーの種別。
	Kind Kind
	// Message はクライアントに返すメッセージ。内部情報を含めてはならない。
	Message string
	// err はラップした内部エラー。ログ出力用。
	err error
}

// New は指定した種別とメッセージのエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は内部エラーをラップしたエラーを生成する。
// 内部エラーはログにのみ出力され、クライアントには渡らない。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap はラップした内部エラーを返す。
func (e *Error) Unwrap() error {
	return e.err
}

// Abort はエラーレスポンスを書き込み、以降のハンドラを中断する。
// レスポンスボディは {"kind": ..., "error": ..., "request_id": ...} 形式。
func Abort(c *gin.Context, e *Error) {
	c.AbortWithStatusJSON(e.Kind.Status(), gin.H{
		"kind":       string(e.Kind),
		"error":      e.Message,
		"request_id": c.GetString(ContextKeyRequestID),
	})
}
