package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kidstore/internal/model"
)

// PostgresModuleRepo はPostgreSQLを使用したコンテンツリポジトリ。
type PostgresModuleRepo struct {
	db *sql.DB
}

// NewPostgresModuleRepo はPostgresModuleRepoを生成する。
func NewPostgresModuleRepo(db *sql.DB) *PostgresModuleRepo {
	return &PostgresModuleRepo{db: db}
}

const moduleColumns = `id, title, description_html, summary, category, price, original_price,
	is_premium, is_visible, media_kind, media_value, position, created_at, updated_at`

// scanModule は1行分のコンテンツレコードをスキャンする。
func scanModule(scan func(dest ...any) error) (*model.Module, error) {
	m := &model.Module{}
	var originalPrice sql.NullFloat64
	err := scan(
		&m.ID, &m.Title, &m.DescriptionHTML, &m.Summary, &m.Category,
		&m.Price, &originalPrice, &m.IsPremium, &m.IsVisible,
		&m.Thumbnail.Kind, &m.Thumbnail.Value, &m.Position,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if originalPrice.Valid {
		m.OriginalPrice = &originalPrice.Float64
	}
	return m, nil
}

// FindByID は指定IDのコンテンツを取得する。見つからない場合はnilを返す。
func (r *PostgresModuleRepo) FindByID(ctx context.Context, id string) (*model.Module, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id,
	)
	m, err := scanModule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find module by ID: %w", err)
	}
	return m, nil
}

// ListVisible は可視コンテンツをposition昇順で返す。
func (r *PostgresModuleRepo) ListVisible(ctx context.Context) ([]model.Module, error) {
	return r.list(ctx, `SELECT `+moduleColumns+` FROM modules WHERE is_visible = TRUE ORDER BY position, created_at`)
}

// ListAll は非表示を含む全コンテンツをposition昇順で返す。管理画面用。
func (r *PostgresModuleRepo) ListAll(ctx context.Context) ([]model.Module, error) {
	return r.list(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY position, created_at`)
}

func (r *PostgresModuleRepo) list(ctx context.Context, query string) ([]model.Module, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []model.Module
	for rows.Next() {
		m, err := scanModule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate modules: %w", err)
	}
	return modules, nil
}

// Create はコンテンツを作成する。
func (r *PostgresModuleRepo) Create(ctx context.Context, m *model.Module) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO modules (id, title, description_html, summary, category, price, original_price,
		   is_premium, is_visible, media_kind, media_value, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.Title, m.DescriptionHTML, m.Summary, m.Category, m.Price, nullFloat(m.OriginalPrice),
		m.IsPremium, m.IsVisible, m.Thumbnail.Kind, m.Thumbnail.Value, m.Position,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert module: %w", err)
	}
	return nil
}

// Update はコンテンツを上書き更新する。
func (r *PostgresModuleRepo) Update(ctx context.Context, m *model.Module) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE modules SET title = $2, description_html = $3, summary = $4, category = $5,
		   price = $6, original_price = $7, is_premium = $8, is_visible = $9,
		   media_kind = $10, media_value = $11, position = $12, updated_at = now()
		 WHERE id = $1`,
		m.ID, m.Title, m.DescriptionHTML, m.Summary, m.Category,
		m.Price, nullFloat(m.OriginalPrice), m.IsPremium, m.IsVisible,
		m.Thumbnail.Kind, m.Thumbnail.Value, m.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("module not found: %s", m.ID)
	}
	return nil
}

// nullFloat は*float64をsql.NullFloat64に変換する。
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// compile-time interface check
var _ ModuleRepository = (*PostgresModuleRepo)(nil)
