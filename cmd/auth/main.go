// 認証サービスのエントリポイント。
// ユーザーの登録・ログイン・ログアウトとJWTトークンの発行を担当する。
package main

import (
	"log"

	"github.com/shopmesh/gateway/internal/auth"
)

func main() {
	cfg, err := auth.LoadConfig()
	if err != nil {
		log.Fatalf("認証サービス設定の読み込みに失敗: %v", err)
	}

	server, err := auth.NewServer(cfg)
	if err != nil {
		log.Fatalf("認証サーバーの初期化に失敗: %v", err)
	}

	log.Printf("認証サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("認証サービスの起動に失敗: %v", err)
	}
}
