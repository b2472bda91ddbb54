package gateway

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopmesh/gateway/pkg/ratelimit"
)

// Service はバックエンドの論理サービス名を表す。
// 既知のサービスのみを型で列挙し、未知のサービス名は設定読み込み時に拒否する。
type Service string

const (
	// ServiceAuth は認証サービス。ログイン・トークン発行を担当する。
	ServiceAuth Service = "auth"
	// ServiceProduct は商品サービス。
	ServiceProduct Service = "product"
	// ServiceOrder は注文サービス。
	ServiceOrder Service = "order"
)

// knownServices は設定検証に使用する既知サービスの一覧。
var knownServices = []Service{ServiceAuth, ServiceProduct, ServiceOrder}

// AuthPolicy はルートごとの認証要件を表す。
type AuthPolicy int

const (
	// AuthPublic は認証不要。
	AuthPublic AuthPolicy = iota
	// AuthMutationOnly は参照系（GET/HEAD/OPTIONS）は公開、更新系のみ認証必須。
	AuthMutationOnly
	// AuthRequired は全メソッドで認証必須。
	AuthRequired
)

// Route はURLパスプレフィックスとバックエンドサービスの対応を表す。
// 設定読み込み後は変更されない。
type Route struct {
	// Prefix は照合するURLパスのプレフィックス。
	Prefix string
	// Service は転送先の論理サービス。
	Service Service
	// TargetPrefix は転送時にPrefixを置き換えるパスプレフィックス。
	TargetPrefix string
	// Policy はこのルートの認証要件。
	Policy AuthPolicy
	// Group は適用するレート制限グループ。
	Group ratelimit.Group
}

// DefaultRoutes は既定のルートテーブルを返す。
// 認証系エンドポイントには厳しいレート制限グループを割り当てる。
func DefaultRoutes() []Route {
	return []Route{
		{Prefix: "/api/auth", Service: ServiceAuth, TargetPrefix: "/api/auth", Policy: AuthPublic, Group: ratelimit.GroupAuth},
		{Prefix: "/api/products", Service: ServiceProduct, TargetPrefix: "/api/products", Policy: AuthMutationOnly, Group: ratelimit.GroupGeneral},
		{Prefix: "/api/orders", Service: ServiceOrder, TargetPrefix: "/api/orders", Policy: AuthRequired, Group: ratelimit.GroupGeneral},
	}
}

// Config はGatewayの設定。環境変数から読み込まれる。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWT検証用の秘密鍵。
	JWTSecret string
	// FrontendURL はCORSで許可するフロントエンドのURL。
	FrontendURL string
	// RedisAddr は共有ストア（Redis）のアドレス。
	RedisAddr string
	// Backends はサービスごとのバックエンドインスタンスURL一覧。
	// 複数指定した場合はランダムに分散される。
	Backends map[Service][]string
	// Routes はルートテーブル。
	Routes []Route
	// RateLimits はグループごとのレート制限設定。
	RateLimits map[ratelimit.Group]ratelimit.Config
	// RateLimitFailOpen はストア障害時にレート制限を素通りさせるかどうか。
	// 既定はfalse（fail-closed）。trueは明示的な設定によってのみ有効になる。
	RateLimitFailOpen bool
	// BreakerThreshold はサーキットブレーカーの連続失敗しきい値。
	BreakerThreshold int
	// BreakerResetTimeout はOPENからHALF_OPENに遷移するまでの待機時間。
	BreakerResetTimeout time.Duration
	// ProxyTimeout はバックエンド転送1回あたりのタイムアウト。
	ProxyTimeout time.Duration
	// StoreTimeout は共有ストア操作1回あたりのタイムアウト。
	StoreTimeout time.Duration
}

// LoadConfig は環境変数からGateway設定を読み込み、検証する。
// 未知のサービスやバックエンド未設定のルートは起動時に拒否する。
func LoadConfig() (*Config, error) {
	backends := map[Service][]string{
		ServiceAuth:    splitURLs(getEnvOr("AUTH_SERVICE_URLS", "http://localhost:8081")),
		ServiceProduct: splitURLs(getEnvOr("PRODUCT_SERVICE_URLS", "http://localhost:8082")),
		ServiceOrder:   splitURLs(getEnvOr("ORDER_SERVICE_URLS", "http://localhost:8083")),
	}

	cfg := &Config{
		Port:        getEnvOr("PORT", "8080"),
		JWTSecret:   getEnvOr("JWT_SECRET", "dev-secret-key"),
		FrontendURL: getEnvOr("FRONTEND_URL", "http://localhost:3000"),
		RedisAddr:   getEnvOr("REDIS_ADDR", "localhost:6379"),
		Backends:    backends,
		Routes:      DefaultRoutes(),
		RateLimits: map[ratelimit.Group]ratelimit.Config{
			ratelimit.GroupAuth: {
				Window: getEnvDurationMs("AUTH_RATE_LIMIT_WINDOW_MS", time.Minute),
				Max:    getEnvInt64("AUTH_RATE_LIMIT_MAX", 5),
			},
			ratelimit.GroupGeneral: {
				Window: getEnvDurationMs("RATE_LIMIT_WINDOW_MS", time.Minute),
				Max:    getEnvInt64("RATE_LIMIT_MAX", 100),
			},
		},
		RateLimitFailOpen:   getEnvBool("RATE_LIMIT_FAIL_OPEN", false),
		BreakerThreshold:    int(getEnvInt64("CB_FAILURE_THRESHOLD", 5)),
		BreakerResetTimeout: getEnvDurationMs("CB_RESET_TIMEOUT_MS", 30*time.Second),
		ProxyTimeout:        getEnvDurationMs("PROXY_TIMEOUT_MS", 30*time.Second),
		StoreTimeout:        getEnvDurationMs("STORE_TIMEOUT_MS", 500*time.Millisecond),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は設定の整合性を検証する。
func (c *Config) validate() error {
	known := make(map[Service]struct{}, len(knownServices))
	for _, s := range knownServices {
		known[s] = struct{}{}
	}

	for svc, urls := range c.Backends {
		if _, ok := known[svc]; !ok {
			return fmt.Errorf("未知のサービス名です: %q", svc)
		}
		if len(urls) == 0 {
			return fmt.Errorf("サービス %q のバックエンドURLが設定されていません", svc)
		}
		for _, raw := range urls {
			u, err := url.Parse(raw)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("サービス %q のバックエンドURLが不正です: %q", svc, raw)
			}
		}
	}

	for _, r := range c.Routes {
		if _, ok := known[r.Service]; !ok {
			return fmt.Errorf("ルート %q が未知のサービス %q を参照しています", r.Prefix, r.Service)
		}
		if len(c.Backends[r.Service]) == 0 {
			return fmt.Errorf("ルート %q のサービス %q にバックエンドがありません", r.Prefix, r.Service)
		}
		if _, ok := c.RateLimits[r.Group]; !ok {
			return fmt.Errorf("ルート %q が未設定のレート制限グループ %q を参照しています", r.Prefix, r.Group)
		}
	}

	if c.BreakerThreshold <= 0 {
		return fmt.Errorf("CB_FAILURE_THRESHOLDは1以上を指定してください: %d", c.BreakerThreshold)
	}
	return nil
}

// splitURLs はカンマ区切りのURL一覧を分割する。空要素は除外する。
func splitURLs(raw string) []string {
	var urls []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvInt64 は整数の環境変数を取得する。未設定・不正な値はデフォルトを返す。
func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDurationMs はミリ秒指定の環境変数をDurationとして取得する。
func getEnvDurationMs(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

// getEnvBool は真偽値の環境変数を取得する。未設定・不正な値はデフォルトを返す。
func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
