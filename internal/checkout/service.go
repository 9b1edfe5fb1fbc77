// Package checkout はかごの決済と購入記録の作成を提供する。
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kidstore/internal/cart"
	"github.com/hitoshi/kidstore/internal/metrics"
	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/repository"
	"github.com/hitoshi/kidstore/internal/vps"
)

// RemoteLedger は購入記録と所有状態をリモートストアへ書き戻す。
type RemoteLedger interface {
	AddPurchase(ctx context.Context, userID string, purchase vps.RemotePurchase) error
	UpdateUser(ctx context.Context, user vps.RemoteUser) error
}

// Service は決済のビジネスロジックを提供する。
// 決済時にはかご明細のスナップショット価格をカタログの現在価格と照合し、
// 不一致があれば決済全体を中止する。
type Service struct {
	cartStore    cart.Store
	moduleRepo   repository.ModuleRepository
	packageRepo  repository.PackageRepository
	purchaseRepo repository.PurchaseRepository
	userRepo     repository.UserRepository
	remote       RemoteLedger // nilの場合は書き戻しなし
	collector    metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	cartStore cart.Store,
	moduleRepo repository.ModuleRepository,
	packageRepo repository.PackageRepository,
	purchaseRepo repository.PurchaseRepository,
	userRepo repository.UserRepository,
	remote RemoteLedger,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		cartStore:    cartStore,
		moduleRepo:   moduleRepo,
		packageRepo:  packageRepo,
		purchaseRepo: purchaseRepo,
		userRepo:     userRepo,
		remote:       remote,
		collector:    collector,
	}
}

// Receipt は決済結果を表す。
type Receipt struct {
	PurchaseIDs []string
	ModuleIDs   []string
	TotalAmount float64
	PurchasedAt time.Time
}

// CheckoutCart はかごの全明細を決済する。
// 途中でエラーが発生した場合、かごは保持される。
func (s *Service) CheckoutCart(ctx context.Context, userID string) (*Receipt, error) {
	userCart, err := s.cartStore.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(userCart.Items) == 0 {
		s.collector.RecordCheckoutFailure("cart_empty")
		return nil, model.NewCartEmptyError()
	}

	// 決済前に全明細の価格を照合する
	modules := make([]*model.Module, 0, len(userCart.Items))
	for _, item := range userCart.Items {
		module, err := s.moduleRepo.FindByID(ctx, item.ModuleID)
		if err != nil {
			return nil, fmt.Errorf("モジュールの取得に失敗しました: %w", err)
		}
		if module == nil || !module.IsVisible {
			s.collector.RecordCheckoutFailure("module_not_found")
			return nil, model.NewModuleNotFoundError(item.ModuleID)
		}
		if module.Price != item.Price {
			s.collector.RecordCheckoutFailure("price_mismatch")
			return nil, model.NewPriceMismatchError(item.ModuleID)
		}
		modules = append(modules, module)
	}

	now := time.Now()
	receipt := &Receipt{PurchasedAt: now}
	var newPurchases []*model.Purchase

	for i, module := range modules {
		purchase := &model.Purchase{
			ID:           uuid.New().String(),
			UserID:       userID,
			ModuleID:     module.ID,
			PurchaseDate: now,
			Amount:       module.Price * float64(userCart.Items[i].Quantity),
			Status:       model.PurchaseStatusCompleted,
			Type:         model.PurchaseTypeVideo,
		}

		created, err := s.purchaseRepo.Create(ctx, purchase)
		if err != nil {
			s.collector.RecordCheckoutFailure("purchase_insert")
			return nil, fmt.Errorf("購入記録の作成に失敗しました: %w", err)
		}
		// 既に台帳にある重複購入は静かに吸収する
		if created {
			receipt.PurchaseIDs = append(receipt.PurchaseIDs, purchase.ID)
			receipt.TotalAmount += purchase.Amount
			newPurchases = append(newPurchases, purchase)
		}
		receipt.ModuleIDs = append(receipt.ModuleIDs, module.ID)
	}

	if err := s.userRepo.RecordOwnership(ctx, userID, receipt.ModuleIDs, receipt.TotalAmount); err != nil {
		s.collector.RecordCheckoutFailure("ownership_update")
		return nil, fmt.Errorf("購入済みキャッシュの更新に失敗しました: %w", err)
	}

	if err := s.cartStore.Clear(ctx, userID); err != nil {
		// 所有権は確定済みのため決済自体は成功として扱う
		slog.Warn("決済後のかごクリアに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.publishReceipt(ctx, userID, newPurchases)

	s.collector.RecordCheckoutSuccess(len(receipt.ModuleIDs), receipt.TotalAmount)

	slog.Info("決済が完了しました",
		slog.String("user_id", userID),
		slog.Int("item_count", len(receipt.ModuleIDs)),
		slog.Float64("total_amount", receipt.TotalAmount),
	)

	return receipt, nil
}

// BuyPackage はパッケージを単体で購入する。
// 所有済みパッケージの再購入は新しい台帳レコードを作らない。
func (s *Service) BuyPackage(ctx context.Context, userID, packageID string) (*Receipt, error) {
	pkg, err := s.packageRepo.FindByID(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("パッケージの取得に失敗しました: %w", err)
	}
	if pkg == nil || !pkg.IsVisible {
		s.collector.RecordCheckoutFailure("package_not_found")
		return nil, model.NewPackageNotFoundError(packageID)
	}

	now := time.Now()
	purchase := &model.Purchase{
		ID:           uuid.New().String(),
		UserID:       userID,
		ModuleID:     pkg.ID,
		PurchaseDate: now,
		Amount:       pkg.Price,
		Status:       model.PurchaseStatusCompleted,
		Type:         model.PurchaseTypePackage,
	}

	created, err := s.purchaseRepo.Create(ctx, purchase)
	if err != nil {
		s.collector.RecordCheckoutFailure("purchase_insert")
		return nil, fmt.Errorf("購入記録の作成に失敗しました: %w", err)
	}

	receipt := &Receipt{
		ModuleIDs:   []string{pkg.ID},
		PurchasedAt: now,
	}
	var newPurchases []*model.Purchase
	if created {
		receipt.PurchaseIDs = []string{purchase.ID}
		receipt.TotalAmount = pkg.Price
		newPurchases = append(newPurchases, purchase)
	}

	if err := s.userRepo.RecordOwnership(ctx, userID, []string{pkg.ID}, receipt.TotalAmount); err != nil {
		s.collector.RecordCheckoutFailure("ownership_update")
		return nil, fmt.Errorf("購入済みキャッシュの更新に失敗しました: %w", err)
	}

	s.publishReceipt(ctx, userID, newPurchases)

	s.collector.RecordCheckoutSuccess(1, receipt.TotalAmount)

	slog.Info("パッケージを購入しました",
		slog.String("user_id", userID),
		slog.String("package_id", pkg.ID),
	)

	return receipt, nil
}

// publishReceipt は確定した購入と更新後の所有状態をリモートストアへ書き戻す。
// ベストエフォートで実行し、失敗してもローカルの決済結果には影響しない。
func (s *Service) publishReceipt(ctx context.Context, userID string, purchases []*model.Purchase) {
	if s.remote == nil || len(purchases) == 0 {
		return
	}

	for _, p := range purchases {
		if err := s.remote.AddPurchase(ctx, userID, vps.RemotePurchase{
			ID:           p.ID,
			ModuleID:     p.ModuleID,
			PurchaseDate: p.PurchaseDate,
			Amount:       p.Amount,
			Status:       string(p.Status),
			Type:         string(p.Type),
		}); err != nil {
			slog.Warn("リモートストアへの購入書き戻しに失敗しました",
				slog.String("user_id", userID),
				slog.String("purchase_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("書き戻し用ユーザーの取得に失敗しました",
			slog.String("user_id", userID),
		)
		return
	}

	if err := s.remote.UpdateUser(ctx, vps.RemoteUser{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             string(user.Role),
		PurchasedModules: user.PurchasedModules,
		TotalSpent:       user.TotalSpent,
	}); err != nil {
		slog.Warn("リモートストアへの所有状態書き戻しに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
