package auth

import (
	"context"
	"database/sql"
	"time"
)

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はメールアドレス（ログインID）。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// DisplayName は表示名。
	DisplayName string
	// Role はユーザーのロール。
	Role string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// LastLoginAt は最終ログイン日時。未ログインの場合は無効。
	LastLoginAt sql.NullTime
}

// userQueries はusersテーブルへのクエリ実行オブジェクト。
type userQueries struct {
	db *sql.DB
}

// newUserQueries は新しいクエリ実行オブジェクトを生成する。
func newUserQueries(db *sql.DB) *userQueries {
	return &userQueries{db: db}
}

// createUserParams はユーザー作成のパラメータ。
type createUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
}

// CreateUser は新しいユーザーを作成する。
func (q *userQueries) CreateUser(ctx context.Context, p createUserParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, role) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.PasswordHash, p.DisplayName, p.Role)
	return err
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (q *userQueries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, role, created_at, last_login_at
		 FROM users WHERE email = ?`, email))
}

// GetUserByID はIDでユーザーを取得する。
func (q *userQueries) GetUserByID(ctx context.Context, id string) (User, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, role, created_at, last_login_at
		 FROM users WHERE id = ?`, id))
}

// TouchLastLogin は最終ログイン日時を現在時刻に更新する。
func (q *userQueries) TouchLastLogin(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = datetime('now') WHERE id = ?`, id)
	return err
}

// scanUser は1行をUserに読み込む。
func (q *userQueries) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.CreatedAt, &u.LastLoginAt)
	return u, err
}
