// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理者。全コンテンツに無条件でアクセスできる。
	RoleAdmin Role = "admin"
)

// User はストアの利用ユーザーを表す。
// PurchasedModulesは購入台帳（purchases）とは別に保持される非正規化キャッシュであり、
// 購入直後は台帳と一時的に食い違うことがある。アクセス判定では両方を参照すること。
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Role             Role
	PurchasedModules []string
	TotalSpent       float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsAdmin は管理者ユーザーかどうかを返す。nilレシーバーでも安全に呼べる。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
