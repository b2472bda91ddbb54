// Package token はJWTトークンの発行・検証と失効リストの管理を提供する。
//
// authサービスがログイン時にトークンを発行し、Gatewayが各リクエストで検証する。
// ログアウトされたトークンは共有ストア上の失効リストに登録され、
// 署名と有効期限が正当でも拒否される。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims はJWTトークンのクレーム（ペイロード）を表す。
// 呼び出し元の識別情報をGatewayから内部サービスへ伝播するために使用する。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーのロール（例: "user", "admin"）。
	Role string `json:"role"`
}

// issuer はこのシステムが発行するトークンのissクレーム値。
const issuer = "shopmesh-gateway"

// ErrMalformed はBearerトークンの形式が不正、または署名が検証できないことを表す。
var ErrMalformed = errors.New("トークンが無効です")

// ErrExpired はトークンの有効期限が切れていることを表す。
var ErrExpired = errors.New("トークンの有効期限が切れています")

// Issue はユーザー情報からJWTトークンを生成する。
// 各トークンには失効管理用の一意なID（jti）を付与する。
func Issue(secret, userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 期限切れはErrExpired、それ以外の検証失敗はErrMalformedとして区別される。
func Verify(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}
