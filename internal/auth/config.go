package auth

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config は認証サービスの設定。環境変数から読み込む。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWT署名用の秘密鍵。Gatewayと共有する。
	JWTSecret string
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string
	// TokenTTL は発行するトークンの有効期間。
	TokenTTL time.Duration
	// RedisAddr は失効リストを保持するRedisのアドレス。
	RedisAddr string
	// StoreTimeout は共有ストア操作のタイムアウト。
	StoreTimeout time.Duration
}

// LoadConfig は環境変数から認証サービスの設定を読み込む。
func LoadConfig() (*Config, error) {
	ttlHours, err := getEnvInt64("TOKEN_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	if ttlHours <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL_HOURSは正の値が必要: %d", ttlHours)
	}

	storeTimeoutMs, err := getEnvInt64("STORE_TIMEOUT_MS", 500)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:         getEnvOr("PORT", "8081"),
		JWTSecret:    getEnvOr("JWT_SECRET", "dev-secret-key"),
		DBPath:       getEnvOr("AUTH_DB_PATH", "/data/auth.db"),
		TokenTTL:     time.Duration(ttlHours) * time.Hour,
		RedisAddr:    getEnvOr("REDIS_ADDR", "localhost:6379"),
		StoreTimeout: time.Duration(storeTimeoutMs) * time.Millisecond,
	}, nil
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt64 は環境変数を整数として返す。未設定の場合はデフォルト値を返す。
func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s の値が不正: %q", key, v)
	}
	return n, nil
}
