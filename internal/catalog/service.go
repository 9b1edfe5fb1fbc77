package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/repository"
)

// Service はカタログに関するビジネスロジックを提供する。
type Service struct {
	moduleRepo  repository.ModuleRepository
	packageRepo repository.PackageRepository
	sanitizer   Sanitizer
}

// NewService はServiceを生成する。
func NewService(
	moduleRepo repository.ModuleRepository,
	packageRepo repository.PackageRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		moduleRepo:  moduleRepo,
		packageRepo: packageRepo,
		sanitizer:   sanitizer,
	}
}

// ListVisible は公開中のモジュール一覧を表示順で取得する。
func (s *Service) ListVisible(ctx context.Context) ([]model.Module, error) {
	modules, err := s.moduleRepo.ListVisible(ctx)
	if err != nil {
		return nil, fmt.Errorf("モジュール一覧の取得に失敗しました: %w", err)
	}
	return modules, nil
}

// ListAll は非公開を含む全モジュールを取得する。管理画面用。
func (s *Service) ListAll(ctx context.Context) ([]model.Module, error) {
	modules, err := s.moduleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("モジュール一覧の取得に失敗しました: %w", err)
	}
	return modules, nil
}

// GetModule はIDでモジュールを取得する。
// 存在しない場合はModuleNotFoundエラーを返す。
func (s *Service) GetModule(ctx context.Context, id string) (*model.Module, error) {
	module, err := s.moduleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("モジュールの取得に失敗しました: %w", err)
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(id)
	}
	return module, nil
}

// ListVisiblePackages は公開中のパッケージ一覧を取得する。
func (s *Service) ListVisiblePackages(ctx context.Context) ([]model.Package, error) {
	packages, err := s.packageRepo.ListVisible(ctx)
	if err != nil {
		return nil, fmt.Errorf("パッケージ一覧の取得に失敗しました: %w", err)
	}
	return packages, nil
}

// ListAllPackages は非公開を含む全パッケージを取得する。管理画面用。
func (s *Service) ListAllPackages(ctx context.Context) ([]model.Package, error) {
	packages, err := s.packageRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("パッケージ一覧の取得に失敗しました: %w", err)
	}
	return packages, nil
}

// GetPackage はIDでパッケージを取得する。
// 存在しない場合はPackageNotFoundエラーを返す。
func (s *Service) GetPackage(ctx context.Context, id string) (*model.Package, error) {
	pkg, err := s.packageRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("パッケージの取得に失敗しました: %w", err)
	}
	if pkg == nil {
		return nil, model.NewPackageNotFoundError(id)
	}
	return pkg, nil
}

// ModuleInput はモジュール作成・更新の入力値。
type ModuleInput struct {
	Title           string
	DescriptionHTML string
	Category        string
	Price           float64
	OriginalPrice   *float64
	IsPremium       bool
	IsVisible       bool
	Thumbnail       model.MediaRef
	Position        int
}

// CreateModule は新しいモジュールを作成する。
// 説明文はサニタイズされ、一覧表示用サマリーが自動生成される。
func (s *Service) CreateModule(ctx context.Context, input ModuleInput) (*model.Module, error) {
	if err := validateModuleInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	module := &model.Module{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}
	applyModuleInput(module, input, s.sanitizer, now)

	if err := s.moduleRepo.Create(ctx, module); err != nil {
		return nil, fmt.Errorf("モジュールの作成に失敗しました: %w", err)
	}

	slog.Info("モジュールを作成しました",
		slog.String("module_id", module.ID),
		slog.String("title", module.Title),
	)

	return module, nil
}

// UpdateModule は既存のモジュールを更新する。
func (s *Service) UpdateModule(ctx context.Context, id string, input ModuleInput) (*model.Module, error) {
	if err := validateModuleInput(input); err != nil {
		return nil, err
	}

	module, err := s.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}

	applyModuleInput(module, input, s.sanitizer, time.Now())

	if err := s.moduleRepo.Update(ctx, module); err != nil {
		return nil, fmt.Errorf("モジュールの更新に失敗しました: %w", err)
	}

	return module, nil
}

// PackageInput はパッケージ作成・更新の入力値。
type PackageInput struct {
	Name        string
	Description string
	ContentIDs  []string
	Price       float64
	IsVisible   bool
}

// CreatePackage は新しいパッケージを作成する。
// 収録モジュールIDの重複は取り除かれる。
func (s *Service) CreatePackage(ctx context.Context, input PackageInput) (*model.Package, error) {
	if err := s.validatePackageInput(ctx, input); err != nil {
		return nil, err
	}

	now := time.Now()
	pkg := &model.Package{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}
	applyPackageInput(pkg, input, now)

	if err := s.packageRepo.Create(ctx, pkg); err != nil {
		return nil, fmt.Errorf("パッケージの作成に失敗しました: %w", err)
	}

	slog.Info("パッケージを作成しました",
		slog.String("package_id", pkg.ID),
		slog.String("name", pkg.Name),
	)

	return pkg, nil
}

// UpdatePackage は既存のパッケージを更新する。
func (s *Service) UpdatePackage(ctx context.Context, id string, input PackageInput) (*model.Package, error) {
	if err := s.validatePackageInput(ctx, input); err != nil {
		return nil, err
	}

	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}

	applyPackageInput(pkg, input, time.Now())

	if err := s.packageRepo.Update(ctx, pkg); err != nil {
		return nil, fmt.Errorf("パッケージの更新に失敗しました: %w", err)
	}

	return pkg, nil
}

func validateModuleInput(input ModuleInput) error {
	if input.Title == "" {
		return &model.APIError{
			Code:     "INVALID_MODULE",
			Message:  "タイトルは必須です。",
			Category: "validation",
			Action:   "タイトルを入力してください。",
		}
	}
	if input.Price < 0 {
		return &model.APIError{
			Code:     "INVALID_MODULE",
			Message:  "価格は0以上で指定してください。",
			Category: "validation",
			Action:   "価格を確認してください。",
		}
	}
	if input.Thumbnail.Kind != "" &&
		input.Thumbnail.Kind != model.MediaKindURL &&
		input.Thumbnail.Kind != model.MediaKindBlob {
		return &model.APIError{
			Code:     "INVALID_MODULE",
			Message:  "サムネイルの種別が不正です。",
			Category: "validation",
			Action:   "url または blob を指定してください。",
		}
	}
	return nil
}

func applyModuleInput(module *model.Module, input ModuleInput, sanitizer Sanitizer, now time.Time) {
	sanitized := sanitizer.Sanitize(input.DescriptionHTML)

	module.Title = input.Title
	module.DescriptionHTML = sanitized
	module.Summary = ExtractSummary(sanitized)
	module.Category = input.Category
	module.Price = input.Price
	module.OriginalPrice = input.OriginalPrice
	module.IsPremium = input.IsPremium
	module.IsVisible = input.IsVisible
	module.Thumbnail = input.Thumbnail
	module.Position = input.Position
	module.UpdatedAt = now
}

// validatePackageInput は収録モジュールが全て実在することを確認する。
func (s *Service) validatePackageInput(ctx context.Context, input PackageInput) error {
	if input.Name == "" {
		return &model.APIError{
			Code:     "INVALID_PACKAGE",
			Message:  "パッケージ名は必須です。",
			Category: "validation",
			Action:   "パッケージ名を入力してください。",
		}
	}
	if input.Price < 0 {
		return &model.APIError{
			Code:     "INVALID_PACKAGE",
			Message:  "価格は0以上で指定してください。",
			Category: "validation",
			Action:   "価格を確認してください。",
		}
	}

	for _, contentID := range dedupeIDs(input.ContentIDs) {
		module, err := s.moduleRepo.FindByID(ctx, contentID)
		if err != nil {
			return fmt.Errorf("収録モジュールの確認に失敗しました: %w", err)
		}
		if module == nil {
			return model.NewModuleNotFoundError(contentID)
		}
	}
	return nil
}

func applyPackageInput(pkg *model.Package, input PackageInput, now time.Time) {
	pkg.Name = input.Name
	pkg.Description = input.Description
	pkg.ContentIDs = dedupeIDs(input.ContentIDs)
	pkg.Price = input.Price
	pkg.IsVisible = input.IsVisible
	pkg.UpdatedAt = now
}

// dedupeIDs はIDリストの重複を除き、初出順を保って返す。
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
