package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kidstore/internal/metrics"
	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/repository"
	"github.com/hitoshi/kidstore/internal/vps"
)

// SnapshotLoader はスナップショット取得のインターフェース。
type SnapshotLoader interface {
	LoadData(ctx context.Context, forceRefresh bool) (*vps.Snapshot, error)
}

// ImportStats は1回の取り込み結果の集計。
type ImportStats struct {
	Users     int
	Purchases int
	Packages  int
}

// Importer はVPSスナップショットをローカルDBへ冪等に取り込む。
// ユーザー・購入・パッケージをUPSERTし、ローカルで先行した購入は
// リポジトリ側の和集合マージにより保持される。
type Importer struct {
	loader       SnapshotLoader
	userRepo     repository.UserRepository
	purchaseRepo repository.PurchaseRepository
	packageRepo  repository.PackageRepository
	collector    metrics.MetricsCollector
	logger       *slog.Logger
}

// NewImporter はImporterの新しいインスタンスを生成する。
func NewImporter(
	loader SnapshotLoader,
	userRepo repository.UserRepository,
	purchaseRepo repository.PurchaseRepository,
	packageRepo repository.PackageRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Importer {
	return &Importer{
		loader:       loader,
		userRepo:     userRepo,
		purchaseRepo: purchaseRepo,
		packageRepo:  packageRepo,
		collector:    collector,
		logger:       logger,
	}
}

// Import はスナップショットを1回取り込む。
// 個別レコードの失敗は記録して続行し、スナップショット取得自体の
// 失敗のみエラーを返す。
func (i *Importer) Import(ctx context.Context, forceRefresh bool) (*ImportStats, error) {
	start := time.Now()

	snapshot, err := i.loader.LoadData(ctx, forceRefresh)
	if err != nil {
		i.collector.RecordSyncFailure("snapshot_load")
		return nil, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}

	stats := &ImportStats{}

	for _, remoteUser := range snapshot.Users {
		if err := i.importUser(ctx, remoteUser); err != nil {
			i.logger.Error("ユーザーの取り込みに失敗しました",
				slog.String("user_id", remoteUser.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		stats.Users++

		for _, remotePurchase := range remoteUser.Purchases {
			if err := i.importPurchase(ctx, remoteUser.ID, remotePurchase); err != nil {
				i.logger.Error("購入記録の取り込みに失敗しました",
					slog.String("user_id", remoteUser.ID),
					slog.String("purchase_id", remotePurchase.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			stats.Purchases++
		}
	}

	for _, remotePackage := range snapshot.Packages {
		if err := i.importPackage(ctx, remotePackage); err != nil {
			i.logger.Error("パッケージの取り込みに失敗しました",
				slog.String("package_id", remotePackage.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		stats.Packages++
	}

	i.collector.RecordSyncSuccess()

	i.logger.Info("スナップショット同期が完了しました",
		slog.Int("users", stats.Users),
		slog.Int("purchases", stats.Purchases),
		slog.Int("packages", stats.Packages),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return stats, nil
}

func (i *Importer) importUser(ctx context.Context, remote vps.RemoteUser) error {
	role := model.RoleUser
	if remote.Role == string(model.RoleAdmin) {
		role = model.RoleAdmin
	}

	now := time.Now()
	return i.userRepo.Upsert(ctx, &model.User{
		ID:               remote.ID,
		Email:            remote.Email,
		Name:             remote.Name,
		Role:             role,
		PurchasedModules: remote.PurchasedModules,
		TotalSpent:       remote.TotalSpent,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func (i *Importer) importPurchase(ctx context.Context, userID string, remote vps.RemotePurchase) error {
	status := model.PurchaseStatus(remote.Status)
	switch status {
	case model.PurchaseStatusCompleted, model.PurchaseStatusPending, model.PurchaseStatusFailed:
	default:
		return fmt.Errorf("不明な購入ステータスです: %s", remote.Status)
	}

	purchaseType := model.PurchaseType(remote.Type)
	switch purchaseType {
	case model.PurchaseTypeVideo, model.PurchaseTypePackage:
	default:
		purchaseType = model.PurchaseTypeVideo
	}

	return i.purchaseRepo.Upsert(ctx, &model.Purchase{
		ID:           remote.ID,
		UserID:       userID,
		ModuleID:     remote.ModuleID,
		PurchaseDate: remote.PurchaseDate,
		Amount:       remote.Amount,
		Status:       status,
		Type:         purchaseType,
	})
}

func (i *Importer) importPackage(ctx context.Context, remote vps.RemotePackage) error {
	now := time.Now()
	return i.packageRepo.Upsert(ctx, &model.Package{
		ID:          remote.ID,
		Name:        remote.Name,
		Description: remote.Description,
		ContentIDs:  remote.ContentIDs,
		Price:       remote.Price,
		IsVisible:   remote.IsVisible,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
