package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopmesh/gateway/pkg/breaker"
	"github.com/shopmesh/gateway/pkg/httpclient"
	"github.com/shopmesh/gateway/pkg/middleware"
	"github.com/shopmesh/gateway/pkg/ratelimit"
	"github.com/shopmesh/gateway/pkg/store"
	"github.com/shopmesh/gateway/pkg/token"
)

// Server はAPI GatewayのHTTPサーバー。
// ブレーカーレジストリとレートリミッタはリクエスト処理経路に注入される
// 明示的な共有状態であり、グローバル変数は使用しない。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はGatewayの設定。
	cfg *Config
	// table はルート照合テーブル。
	table *routeTable
	// breakers はバックエンドサービスごとのサーキットブレーカー。
	breakers *breaker.Registry
	// limiter は共有ストア上のレートリミッタ。
	limiter *ratelimit.Limiter
	// revoker はトークン失効リストの参照。
	revoker *token.Revoker
	// client はバックエンドへの転送用HTTPクライアント。
	client *httpclient.Client
}

// NewServer は新しいGatewayサーバーを生成する。
// 共有ストアにはRedisを使用する。
func NewServer(cfg *Config) (*Server, error) {
	st := store.NewRedisStore(cfg.RedisAddr, cfg.StoreTimeout)
	return newServer(cfg, st)
}

// newServer は共有ストアを注入してGatewayサーバーを生成する。
// テストではインメモリストアを注入する。
func newServer(cfg *Config, st store.Store) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("Gateway設定が不正: %w", err)
	}

	table, err := newRouteTable(cfg.Routes)
	if err != nil {
		return nil, fmt.Errorf("ルートテーブルの構築に失敗: %w", err)
	}

	services := make([]string, 0, len(cfg.Backends))
	for svc := range cfg.Backends {
		services = append(services, string(svc))
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:   router,
		cfg:      cfg,
		table:    table,
		breakers: breaker.NewRegistry(services, cfg.BreakerThreshold, cfg.BreakerResetTimeout),
		limiter:  ratelimit.New(st, cfg.RateLimits, cfg.RateLimitFailOpen),
		revoker:  token.NewRevoker(st),
		client:   httpclient.New(cfg.ProxyTimeout),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// setupRoutes はAPIルーティングを設定する。
// プロキシ対象のトラフィックは全てNoRouteハンドラに集約し、
// ルートテーブルによる最長プレフィックス照合で振り分ける。
func (s *Server) setupRoutes() {
	// ヘルスチェック（常に公開。オーケストレーションのprobeが使用する）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	s.router.NoRoute(s.handleDispatch())
}
