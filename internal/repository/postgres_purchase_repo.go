package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kidstore/internal/model"
)

// PostgresPurchaseRepo はPostgreSQLを使用した購入台帳リポジトリ。
type PostgresPurchaseRepo struct {
	db *sql.DB
}

// NewPostgresPurchaseRepo はPostgresPurchaseRepoを生成する。
func NewPostgresPurchaseRepo(db *sql.DB) *PostgresPurchaseRepo {
	return &PostgresPurchaseRepo{db: db}
}

// ListByUserID は指定ユーザーの購入レコードを購入日昇順で返す。
func (r *PostgresPurchaseRepo) ListByUserID(ctx context.Context, userID string) ([]model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, module_id, purchase_date, amount, status, type
		 FROM purchases WHERE user_id = $1 ORDER BY purchase_date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p := model.Purchase{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.ModuleID, &p.PurchaseDate, &p.Amount, &p.Status, &p.Type); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchases: %w", err)
	}
	return purchases, nil
}

// Create は購入レコードを作成する。
// 同一(user_id, module_id)のレコードが既に存在する場合は一意制約により
// 何も挿入されず、falseを返す。重複購入の防御的な吸収に使う。
func (r *PostgresPurchaseRepo) Create(ctx context.Context, p *model.Purchase) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO purchases (id, user_id, module_id, purchase_date, amount, status, type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, module_id) DO NOTHING`,
		p.ID, p.UserID, p.ModuleID, p.PurchaseDate, p.Amount, p.Status, p.Type,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert purchase: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Upsert はリモートスナップショット由来の購入レコードを冪等に取り込む。
// 同一(user_id, module_id)の既存行はステータスと金額を上書きする。
func (r *PostgresPurchaseRepo) Upsert(ctx context.Context, p *model.Purchase) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO purchases (id, user_id, module_id, purchase_date, amount, status, type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, module_id) DO UPDATE SET
		   purchase_date = EXCLUDED.purchase_date,
		   amount = EXCLUDED.amount,
		   status = EXCLUDED.status,
		   type = EXCLUDED.type`,
		p.ID, p.UserID, p.ModuleID, p.PurchaseDate, p.Amount, p.Status, p.Type,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert purchase: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PurchaseRepository = (*PostgresPurchaseRepo)(nil)
