package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/kidstore/internal/model"
)

// PostgresPackageRepo はPostgreSQLを使用したパッケージリポジトリ。
type PostgresPackageRepo struct {
	db *sql.DB
}

// NewPostgresPackageRepo はPostgresPackageRepoを生成する。
func NewPostgresPackageRepo(db *sql.DB) *PostgresPackageRepo {
	return &PostgresPackageRepo{db: db}
}

const packageColumns = `id, name, description, content_ids, price, is_visible, created_at, updated_at`

// FindByID は指定IDのパッケージを取得する。見つからない場合はnilを返す。
func (r *PostgresPackageRepo) FindByID(ctx context.Context, id string) (*model.Package, error) {
	pkg := &model.Package{}
	var contentIDs pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT `+packageColumns+` FROM packages WHERE id = $1`, id,
	).Scan(&pkg.ID, &pkg.Name, &pkg.Description, &contentIDs, &pkg.Price, &pkg.IsVisible, &pkg.CreatedAt, &pkg.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find package by ID: %w", err)
	}
	pkg.ContentIDs = []string(contentIDs)
	return pkg, nil
}

// ListVisible は可視パッケージを返す。
func (r *PostgresPackageRepo) ListVisible(ctx context.Context) ([]model.Package, error) {
	return r.list(ctx, `SELECT `+packageColumns+` FROM packages WHERE is_visible = TRUE ORDER BY created_at`)
}

// ListAll は非表示を含む全パッケージを返す。アクセス判定と管理画面用。
func (r *PostgresPackageRepo) ListAll(ctx context.Context) ([]model.Package, error) {
	return r.list(ctx, `SELECT `+packageColumns+` FROM packages ORDER BY created_at`)
}

func (r *PostgresPackageRepo) list(ctx context.Context, query string) ([]model.Package, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []model.Package
	for rows.Next() {
		pkg := model.Package{}
		var contentIDs pq.StringArray
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.Description, &contentIDs, &pkg.Price, &pkg.IsVisible, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		pkg.ContentIDs = []string(contentIDs)
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate packages: %w", err)
	}
	return packages, nil
}

// Create はパッケージを作成する。
func (r *PostgresPackageRepo) Create(ctx context.Context, pkg *model.Package) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO packages (id, name, description, content_ids, price, is_visible, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pkg.ID, pkg.Name, pkg.Description, pq.Array(pkg.ContentIDs), pkg.Price, pkg.IsVisible, pkg.CreatedAt, pkg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert package: %w", err)
	}
	return nil
}

// Update はパッケージを上書き更新する。
func (r *PostgresPackageRepo) Update(ctx context.Context, pkg *model.Package) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE packages SET name = $2, description = $3, content_ids = $4, price = $5, is_visible = $6, updated_at = now()
		 WHERE id = $1`,
		pkg.ID, pkg.Name, pkg.Description, pq.Array(pkg.ContentIDs), pkg.Price, pkg.IsVisible,
	)
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("package not found: %s", pkg.ID)
	}
	return nil
}

// Upsert はリモートスナップショット由来のパッケージを冪等に取り込む。
func (r *PostgresPackageRepo) Upsert(ctx context.Context, pkg *model.Package) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO packages (id, name, description, content_ids, price, is_visible, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   content_ids = EXCLUDED.content_ids,
		   price = EXCLUDED.price,
		   is_visible = EXCLUDED.is_visible,
		   updated_at = now()`,
		pkg.ID, pkg.Name, pkg.Description, pq.Array(pkg.ContentIDs), pkg.Price, pkg.IsVisible, pkg.CreatedAt, pkg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert package: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PackageRepository = (*PostgresPackageRepo)(nil)
