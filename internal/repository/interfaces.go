// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/kidstore/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// RecordOwnership は購入確定後の非正規化キャッシュ更新を行う。
	// purchased_modulesへ未所持のIDを追記し、total_spentへamountを加算する。
	RecordOwnership(ctx context.Context, userID string, moduleIDs []string, amount float64) error

	// Upsert はリモートスナップショット由来のユーザーを冪等に取り込む。
	Upsert(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ModuleRepository はコンテンツデータの永続化インターフェース。
type ModuleRepository interface {
	// FindByID は指定IDのコンテンツを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Module, error)

	// ListVisible は可視コンテンツをposition昇順で返す。
	ListVisible(ctx context.Context) ([]model.Module, error)

	// ListAll は非表示を含む全コンテンツをposition昇順で返す。管理画面用。
	ListAll(ctx context.Context) ([]model.Module, error)

	// Create はコンテンツを作成する。
	Create(ctx context.Context, module *model.Module) error

	// Update はコンテンツを上書き更新する。
	Update(ctx context.Context, module *model.Module) error
}

// PackageRepository はパッケージデータの永続化インターフェース。
type PackageRepository interface {
	// FindByID は指定IDのパッケージを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Package, error)

	// ListVisible は可視パッケージを返す。
	ListVisible(ctx context.Context) ([]model.Package, error)

	// ListAll は非表示を含む全パッケージを返す。アクセス判定と管理画面用。
	ListAll(ctx context.Context) ([]model.Package, error)

	// Create はパッケージを作成する。
	Create(ctx context.Context, pkg *model.Package) error

	// Update はパッケージを上書き更新する。
	Update(ctx context.Context, pkg *model.Package) error

	// Upsert はリモートスナップショット由来のパッケージを冪等に取り込む。
	Upsert(ctx context.Context, pkg *model.Package) error
}

// PurchaseRepository は購入台帳の永続化インターフェース。
type PurchaseRepository interface {
	// ListByUserID は指定ユーザーの購入レコードを購入日昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Purchase, error)

	// Create は購入レコードを作成する。
	// 同一(user_id, module_id)のレコードが既に存在する場合は何もせずfalseを返す。
	Create(ctx context.Context, purchase *model.Purchase) (bool, error)

	// Upsert はリモートスナップショット由来の購入レコードを冪等に取り込む。
	Upsert(ctx context.Context, purchase *model.Purchase) error
}
