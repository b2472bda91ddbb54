// Package httpclient はGatewayからバックエンドサービスへの転送用HTTPクライアントを提供する。
//
// プロキシ転送のためボディには手を加えず、メソッド・ヘッダー・ボディを
// そのまま透過させる。呼び出し1回ごとにタイムアウトが適用される。
package httpclient
