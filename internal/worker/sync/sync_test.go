package sync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/vps"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		want       SyncResult
	}{
		{200, SyncResultOK},
		{304, SyncResultNotModified},
		{404, SyncResultStop},
		{410, SyncResultStop},
		{401, SyncResultStop},
		{403, SyncResultStop},
		{429, SyncResultBackoff},
		{500, SyncResultBackoff},
		{503, SyncResultBackoff},
		{302, SyncResultUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.statusCode); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.statusCode, got, tt.want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		consecutiveErrors int
		want              time.Duration
	}{
		{0, 1 * time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{4, 16 * time.Minute},
		{5, 30 * time.Minute},
		{20, 30 * time.Minute},
	}

	for _, tt := range tests {
		if got := CalculateBackoff(tt.consecutiveErrors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.consecutiveErrors, got, tt.want)
		}
	}
}

// mockLoader はSnapshotLoaderのモック。
type mockLoader struct {
	snapshot *vps.Snapshot
	err      error
}

func (m *mockLoader) LoadData(ctx context.Context, forceRefresh bool) (*vps.Snapshot, error) {
	return m.snapshot, m.err
}

// recordingRepos はUpsertされたレコードを記録するモック群。
type recordingUserRepo struct {
	upserted []model.User
}

func (m *recordingUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *recordingUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *recordingUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (m *recordingUserRepo) RecordOwnership(ctx context.Context, userID string, moduleIDs []string, amount float64) error {
	return nil
}

func (m *recordingUserRepo) Upsert(ctx context.Context, user *model.User) error {
	m.upserted = append(m.upserted, *user)
	return nil
}

type recordingPurchaseRepo struct {
	upserted []model.Purchase
	failFor  string
}

func (m *recordingPurchaseRepo) ListByUserID(ctx context.Context, userID string) ([]model.Purchase, error) {
	return nil, nil
}

func (m *recordingPurchaseRepo) Create(ctx context.Context, purchase *model.Purchase) (bool, error) {
	return true, nil
}

func (m *recordingPurchaseRepo) Upsert(ctx context.Context, purchase *model.Purchase) error {
	if purchase.ID == m.failFor {
		return errors.New("boom")
	}
	m.upserted = append(m.upserted, *purchase)
	return nil
}

type recordingPackageRepo struct {
	upserted []model.Package
}

func (m *recordingPackageRepo) FindByID(ctx context.Context, id string) (*model.Package, error) {
	return nil, nil
}

func (m *recordingPackageRepo) ListVisible(ctx context.Context) ([]model.Package, error) {
	return nil, nil
}

func (m *recordingPackageRepo) ListAll(ctx context.Context) ([]model.Package, error) {
	return nil, nil
}

func (m *recordingPackageRepo) Create(ctx context.Context, pkg *model.Package) error { return nil }
func (m *recordingPackageRepo) Update(ctx context.Context, pkg *model.Package) error { return nil }

func (m *recordingPackageRepo) Upsert(ctx context.Context, pkg *model.Package) error {
	m.upserted = append(m.upserted, *pkg)
	return nil
}

// nopCollector はメトリクス収集を無視するテスト用実装。
type nopCollector struct{}

func (nopCollector) RecordAccessDecision(granted bool, reason string)    {}
func (nopCollector) RecordCheckoutSuccess(itemCount int, amount float64) {}
func (nopCollector) RecordCheckoutFailure(reason string)                 {}
func (nopCollector) RecordSyncSuccess()                                  {}
func (nopCollector) RecordSyncFailure(reason string)                     {}
func (nopCollector) RecordSyncHTTPStatus(statusCode int)                 {}
func (nopCollector) RecordSyncLatency(duration time.Duration)            {}

func testSnapshot() *vps.Snapshot {
	return &vps.Snapshot{
		Users: []vps.RemoteUser{
			{
				ID: "user-1", Email: "a@example.com", Role: "admin",
				PurchasedModules: []string{"mod-1"}, TotalSpent: 500,
				Purchases: []vps.RemotePurchase{
					{ID: "p-1", ModuleID: "mod-1", Amount: 500, Status: "completed", Type: "video"},
					{ID: "p-2", ModuleID: "mod-2", Amount: 0, Status: "pending", Type: "video"},
				},
			},
			{ID: "user-2", Email: "b@example.com", Role: "unknown-role"},
		},
		Packages: []vps.RemotePackage{
			{ID: "pkg-1", Name: "セット", ContentIDs: []string{"mod-1"}, Price: 1500, IsVisible: true},
		},
	}
}

func TestImport(t *testing.T) {
	userRepo := &recordingUserRepo{}
	purchaseRepo := &recordingPurchaseRepo{}
	packageRepo := &recordingPackageRepo{}

	importer := NewImporter(
		&mockLoader{snapshot: testSnapshot()},
		userRepo, purchaseRepo, packageRepo,
		nopCollector{}, slog.Default(),
	)

	stats, err := importer.Import(context.Background(), true)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if stats.Users != 2 || stats.Purchases != 2 || stats.Packages != 1 {
		t.Errorf("stats = %+v, want 2 users / 2 purchases / 1 package", stats)
	}

	if userRepo.upserted[0].Role != model.RoleAdmin {
		t.Errorf("user-1 role = %q, want admin", userRepo.upserted[0].Role)
	}
	// 不明なロールはuserとして取り込む
	if userRepo.upserted[1].Role != model.RoleUser {
		t.Errorf("user-2 role = %q, want user fallback", userRepo.upserted[1].Role)
	}

	if purchaseRepo.upserted[0].UserID != "user-1" || purchaseRepo.upserted[0].Status != model.PurchaseStatusCompleted {
		t.Errorf("purchase = %+v", purchaseRepo.upserted[0])
	}
	if packageRepo.upserted[0].Name != "セット" {
		t.Errorf("package = %+v", packageRepo.upserted[0])
	}
}

func TestImport_RecordFailureContinues(t *testing.T) {
	purchaseRepo := &recordingPurchaseRepo{failFor: "p-1"}

	importer := NewImporter(
		&mockLoader{snapshot: testSnapshot()},
		&recordingUserRepo{}, purchaseRepo, &recordingPackageRepo{},
		nopCollector{}, slog.Default(),
	)

	stats, err := importer.Import(context.Background(), true)
	if err != nil {
		t.Fatalf("Import() should continue past record failures, got %v", err)
	}
	// p-1は失敗、p-2は取り込まれる
	if stats.Purchases != 1 {
		t.Errorf("purchases = %d, want 1", stats.Purchases)
	}
}

func TestImport_SnapshotLoadFailure(t *testing.T) {
	importer := NewImporter(
		&mockLoader{err: errors.New("connection refused")},
		&recordingUserRepo{}, &recordingPurchaseRepo{}, &recordingPackageRepo{},
		nopCollector{}, slog.Default(),
	)

	if _, err := importer.Import(context.Background(), true); err == nil {
		t.Fatal("Import() should fail when snapshot cannot be loaded")
	}
}

// mockImporter はSnapshotImporterのモック。
type mockImporter struct {
	calls int
	err   error
}

func (m *mockImporter) Import(ctx context.Context, forceRefresh bool) (*ImportStats, error) {
	m.calls++
	return &ImportStats{}, m.err
}

func TestScheduler_RunOnce(t *testing.T) {
	importer := &mockImporter{}
	scheduler := NewScheduler(importer, slog.Default())

	if _, err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if importer.calls != 1 {
		t.Errorf("calls = %d, want 1", importer.calls)
	}
}

func TestScheduler_NextDelayBacksOff(t *testing.T) {
	scheduler := NewScheduler(&mockImporter{}, slog.Default())
	interval := 5 * time.Minute

	if got := scheduler.nextDelay(interval); got != interval {
		t.Errorf("nextDelay with no errors = %v, want %v", got, interval)
	}

	scheduler.consecutiveErrors = 4
	if got := scheduler.nextDelay(interval); got != 8*time.Minute {
		t.Errorf("nextDelay with 4 errors = %v, want 8m", got)
	}

	// バックオフが通常間隔以下の場合は通常間隔
	scheduler.consecutiveErrors = 1
	if got := scheduler.nextDelay(interval); got != interval {
		t.Errorf("nextDelay with 1 error = %v, want %v", got, interval)
	}
}

func TestScheduler_StartStopsOnCancel(t *testing.T) {
	importer := &mockImporter{}
	scheduler := NewScheduler(importer, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回が実行されるまで少し待つ
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}

	if importer.calls != 1 {
		t.Errorf("calls = %d, want 1 (startup run)", importer.calls)
	}
}
