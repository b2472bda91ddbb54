// Package auth は認証サービスを提供する。
//
// ユーザーの登録・ログイン・ログアウトを担当し、ログイン時にGatewayが検証する
// JWTトークンを発行する。ユーザー情報はSQLiteに保持し、ログアウトされたトークンは
// 共有ストア上の失効リストに登録する。Gatewayはこのサービスを/api/auth配下の
// 公開ルートとして転送する。
package auth
