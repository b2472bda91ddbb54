package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/shopmesh/gateway/pkg/middleware"
	"github.com/shopmesh/gateway/pkg/store"
	"github.com/shopmesh/gateway/pkg/token"
)

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は認証サービスの設定。
	cfg *Config
	// queries はusersテーブルへのクエリ実行オブジェクト。
	queries *userQueries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// revoker はトークン失効リストの管理。
	revoker *token.Revoker
}

// NewServer は新しい認証サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行い、失効リストにはRedisを使用する。
func NewServer(cfg *Config) (*Server, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	st := store.NewRedisStore(cfg.RedisAddr, cfg.StoreTimeout)
	return newServer(cfg, sqlDB, st)
}

// newServer はデータベース接続と共有ストアを注入して認証サーバーを生成する。
// テストではインメモリSQLiteとインメモリストアを注入する。
func newServer(cfg *Config, sqlDB *sql.DB, st store.Store) (*Server, error) {
	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		cfg:     cfg,
		queries: newUserQueries(sqlDB),
		db:      sqlDB,
		revoker: token.NewRevoker(st),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// setupRoutes はAPIルーティングを設定する。
// パスはGatewayの書き換え後のパスに合わせる（/api/auth配下をそのまま受ける）。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/auth")
	{
		// ユーザー登録
		api.POST("/register", s.handleRegister())
		// ログイン（トークン発行）
		api.POST("/login", s.handleLogin())

		authed := api.Group("")
		authed.Use(middleware.JWTAuth(s.cfg.JWTSecret, s.revoker))
		{
			// ログアウト（トークン失効）
			authed.POST("/logout", s.handleLogout())
			// 現在のユーザー情報取得
			authed.GET("/me", s.handleMe())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Email はメールアドレス（ログインID）。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード（平文。保存前にハッシュ化される）。
	Password string `json:"password" binding:"required,min=8"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// userResponse はユーザー情報のJSONレスポンス構造。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name"`
	// Role はユーザーのロール。
	Role string `json:"role"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// パスワードはbcryptでハッシュ化して保存する。メールアドレスの重複は409を返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		// 重複チェック。INSERT時のUNIQUE制約違反も下で捕捉するが、
		// 先に確認して明確なエラーメッセージを返す。
		if _, err := s.queries.GetUserByEmail(c.Request.Context(), req.Email); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの確認に失敗しました"})
			log.Printf("ユーザー確認エラー: %v", err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		userID := uuid.New().String()
		if err := s.queries.CreateUser(c.Request.Context(), createUserParams{
			ID:           userID,
			Email:        req.Email,
			PasswordHash: string(hash),
			DisplayName:  req.DisplayName,
			Role:         "user",
		}); err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの作成に失敗しました"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成したユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toUserResponse(created))
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 資格情報が正しい場合はJWTトークンを発行する。
// ユーザー不在とパスワード不一致は同じエラーメッセージを返す（列挙攻撃対策）。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		u, err := s.queries.GetUserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}

		raw, err := token.Issue(s.cfg.JWTSecret, u.ID, u.Email, u.Role, s.cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		// 最終ログイン日時の更新失敗はログインを妨げない
		if err := s.queries.TouchLastLogin(c.Request.Context(), u.ID); err != nil {
			log.Printf("最終ログイン日時の更新エラー: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"token": raw,
			"user":  toUserResponse(u),
		})
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// 提示されたトークンを失効リストに登録する。以降このトークンは
// 署名と有効期限が正当でもGatewayと認証サービスの双方で拒否される。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		// JWTAuthミドルウェアを通過済みなので、ヘッダーのトークンは検証済み
		raw, _ := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		claims, err := token.Verify(s.cfg.JWTSecret, raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "トークンが無効です"})
			return
		}

		if err := s.revoker.Revoke(c.Request.Context(), claims); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ログアウト処理に失敗しました。再試行してください"})
			log.Printf("トークン失効登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "ログアウトしました"})
	}
}

// handleMe は現在のユーザー情報取得を処理するハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		u, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(u))
	}
}
