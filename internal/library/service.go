// Package library は所有コンテンツの照会とアクセス判定のユースケースを提供する。
package library

import (
	"context"
	"fmt"

	"github.com/hitoshi/kidstore/internal/entitlement"
	"github.com/hitoshi/kidstore/internal/metrics"
	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/repository"
)

// Service は所有・アクセス判定に必要なデータの取得と判定本体を束ねる。
type Service struct {
	userRepo     repository.UserRepository
	moduleRepo   repository.ModuleRepository
	packageRepo  repository.PackageRepository
	purchaseRepo repository.PurchaseRepository
	collector    metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	moduleRepo repository.ModuleRepository,
	packageRepo repository.PackageRepository,
	purchaseRepo repository.PurchaseRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		userRepo:     userRepo,
		moduleRepo:   moduleRepo,
		packageRepo:  packageRepo,
		purchaseRepo: purchaseRepo,
		collector:    collector,
	}
}

// AccessResult はアクセス判定の結果と判定対象をまとめる。
type AccessResult struct {
	Granted bool
	Reason  entitlement.Reason
	Module  *model.Module
}

// CheckAccess は指定コンテンツへのアクセス可否を判定する。
// userIDが空文字列の場合は未ログインとして判定する。
func (s *Service) CheckAccess(ctx context.Context, userID, moduleID string) (*AccessResult, error) {
	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました: %w", err)
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(moduleID)
	}

	user, purchases, packages, err := s.loadEntitlementInputs(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := entitlement.Evaluate(user, module, purchases, packages)
	s.collector.RecordAccessDecision(decision.Granted, string(decision.Reason))

	return &AccessResult{
		Granted: decision.Granted,
		Reason:  decision.Reason,
		Module:  module,
	}, nil
}

// Owned はユーザーが所有するコンテンツの一覧を返す。
// 非表示になったコンテンツも購入済みであれば含まれる。
func (s *Service) Owned(ctx context.Context, userID string) ([]model.Module, error) {
	user, purchases, packages, err := s.loadEntitlementInputs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	allModules, err := s.moduleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました: %w", err)
	}

	return entitlement.OwnedModules(user, allModules, purchases, packages), nil
}

// Available はユーザーが未所有かつ購入可能なコンテンツの一覧を返す。
// userIDが空文字列の場合は可視コンテンツ全件が対象になる。
func (s *Service) Available(ctx context.Context, userID string) ([]model.Module, error) {
	user, purchases, packages, err := s.loadEntitlementInputs(ctx, userID)
	if err != nil {
		return nil, err
	}

	allModules, err := s.moduleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました: %w", err)
	}

	return entitlement.AvailableModules(user, allModules, purchases, packages), nil
}

// loadEntitlementInputs は判定に必要なユーザー、購入台帳、パッケージ一覧を取得する。
// パッケージは非表示を含む全件を参照する。購入済みパッケージが後から非表示に
// なっても、同梱コンテンツへのアクセスは失われない。
func (s *Service) loadEntitlementInputs(ctx context.Context, userID string) (*model.User, []model.Purchase, []model.Package, error) {
	var user *model.User
	var purchases []model.Purchase

	if userID != "" {
		var err error
		user, err = s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if user != nil {
			purchases, err = s.purchaseRepo.ListByUserID(ctx, userID)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("購入履歴の取得に失敗しました: %w", err)
			}
		}
	}

	packages, err := s.packageRepo.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("パッケージ一覧の取得に失敗しました: %w", err)
	}

	return user, purchases, packages, nil
}
