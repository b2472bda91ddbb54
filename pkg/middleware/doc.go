// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストID付与、JWT認証トークンの検証（失効確認を含む）、
// パニックリカバリ、CORS設定など、Gatewayとauthサービスで
// 共通して使用するミドルウェアを含む。
package middleware
