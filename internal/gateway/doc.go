// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 受信したHTTPリクエストをルートテーブルで照合し、レート制限とJWT認証を
// 適用した上でバックエンドサービスに転送する。転送はバックエンドごとの
// サーキットブレーカーで保護され、障害中のバックエンドへのリクエストは
// 即時に失敗してバックエンドの過負荷を防ぐ。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として機能する。
package gateway
