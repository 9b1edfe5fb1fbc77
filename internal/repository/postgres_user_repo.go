package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/kidstore/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, password_hash, role, purchased_modules, total_spent, created_at, updated_at`

// scanUser は1行分のユーザーレコードをスキャンする。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var purchased pq.StringArray
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&purchased, &user.TotalSpent, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.PurchasedModules = []string(purchased)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, purchased_modules, total_spent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		pq.Array(user.PurchasedModules), user.TotalSpent, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// RecordOwnership は購入確定後の非正規化キャッシュ更新を行う。
// purchased_modulesへ未所持のIDだけを追記し、total_spentへamountを加算する。
// 台帳（purchases）への書き込みとは独立しており、片方が先行しても
// アクセス判定はOR照合で救済される。
func (r *PostgresUserRepo) RecordOwnership(ctx context.Context, userID string, moduleIDs []string, amount float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET purchased_modules = purchased_modules ||
		     (SELECT COALESCE(array_agg(id), '{}') FROM unnest($2::text[]) AS id
		      WHERE NOT (id = ANY(purchased_modules))),
		     total_spent = total_spent + $3,
		     updated_at = now()
		 WHERE id = $1`,
		userID, pq.Array(moduleIDs), amount,
	)
	if err != nil {
		return fmt.Errorf("failed to record ownership: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// Upsert はリモートスナップショット由来のユーザーを冪等に取り込む。
// パスワードハッシュはローカル登録が正のため、既存行の値を上書きしない。
// purchased_modulesはローカルとリモートの和集合を取り、未送信の
// ローカル購入が消えないようにする。total_spentも後退させない。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, purchased_modules, total_spent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email,
		   name = EXCLUDED.name,
		   role = EXCLUDED.role,
		   purchased_modules = (
		     SELECT COALESCE(array_agg(DISTINCT id), '{}')
		     FROM unnest(users.purchased_modules || EXCLUDED.purchased_modules) AS id
		   ),
		   total_spent = GREATEST(users.total_spent, EXCLUDED.total_spent),
		   updated_at = now()`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		pq.Array(user.PurchasedModules), user.TotalSpent, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
