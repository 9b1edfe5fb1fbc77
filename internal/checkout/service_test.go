package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/vps"
)

// memoryCartStore はテスト用のインメモリのかごストア。
type memoryCartStore struct {
	carts map[string]*model.Cart
}

func newMemoryCartStore() *memoryCartStore {
	return &memoryCartStore{carts: make(map[string]*model.Cart)}
}

func (s *memoryCartStore) Get(ctx context.Context, userID string) (*model.Cart, error) {
	if cart, ok := s.carts[userID]; ok {
		return cart, nil
	}
	return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
}

func (s *memoryCartStore) Save(ctx context.Context, cart *model.Cart) error {
	s.carts[cart.UserID] = cart
	return nil
}

func (s *memoryCartStore) Clear(ctx context.Context, userID string) error {
	delete(s.carts, userID)
	return nil
}

// mockModuleRepo はModuleRepositoryのモック。
type mockModuleRepo struct {
	modules map[string]*model.Module
}

func (m *mockModuleRepo) FindByID(ctx context.Context, id string) (*model.Module, error) {
	return m.modules[id], nil
}

func (m *mockModuleRepo) ListVisible(ctx context.Context) ([]model.Module, error) { return nil, nil }
func (m *mockModuleRepo) ListAll(ctx context.Context) ([]model.Module, error)     { return nil, nil }
func (m *mockModuleRepo) Create(ctx context.Context, module *model.Module) error  { return nil }
func (m *mockModuleRepo) Update(ctx context.Context, module *model.Module) error  { return nil }

// mockPackageRepo はPackageRepositoryのモック。
type mockPackageRepo struct {
	packages map[string]*model.Package
}

func (m *mockPackageRepo) FindByID(ctx context.Context, id string) (*model.Package, error) {
	return m.packages[id], nil
}

func (m *mockPackageRepo) ListVisible(ctx context.Context) ([]model.Package, error) { return nil, nil }
func (m *mockPackageRepo) ListAll(ctx context.Context) ([]model.Package, error)     { return nil, nil }
func (m *mockPackageRepo) Create(ctx context.Context, pkg *model.Package) error     { return nil }
func (m *mockPackageRepo) Update(ctx context.Context, pkg *model.Package) error     { return nil }
func (m *mockPackageRepo) Upsert(ctx context.Context, pkg *model.Package) error     { return nil }

// mockPurchaseRepo はPurchaseRepositoryのモック。
// ON CONFLICT DO NOTHINGの挙動をユーザー・対象キーで再現する。
type mockPurchaseRepo struct {
	inserted map[string]model.Purchase
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{inserted: make(map[string]model.Purchase)}
}

func (m *mockPurchaseRepo) ListByUserID(ctx context.Context, userID string) ([]model.Purchase, error) {
	return nil, nil
}

func (m *mockPurchaseRepo) Create(ctx context.Context, purchase *model.Purchase) (bool, error) {
	key := purchase.UserID + "/" + purchase.ModuleID
	if _, ok := m.inserted[key]; ok {
		return false, nil
	}
	m.inserted[key] = *purchase
	return true, nil
}

func (m *mockPurchaseRepo) Upsert(ctx context.Context, purchase *model.Purchase) error {
	return nil
}

// mockRemoteLedger はRemoteLedgerのモック。
type mockRemoteLedger struct {
	pushErr   error
	purchases []vps.RemotePurchase
	updated   *vps.RemoteUser
}

func (m *mockRemoteLedger) AddPurchase(ctx context.Context, userID string, purchase vps.RemotePurchase) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.purchases = append(m.purchases, purchase)
	return nil
}

func (m *mockRemoteLedger) UpdateUser(ctx context.Context, user vps.RemoteUser) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.updated = &user
	return nil
}

// mockUserRepo はUserRepositoryのモック。
type mockUserRepo struct {
	user        *model.User
	ownedIDs    []string
	addedAmount float64
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.user, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) RecordOwnership(ctx context.Context, userID string, moduleIDs []string, amount float64) error {
	m.ownedIDs = append(m.ownedIDs, moduleIDs...)
	m.addedAmount += amount
	return nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *model.User) error { return nil }

// nopCollector はメトリクス収集を無視するテスト用実装。
type nopCollector struct{}

func (nopCollector) RecordAccessDecision(granted bool, reason string)      {}
func (nopCollector) RecordCheckoutSuccess(itemCount int, amount float64)   {}
func (nopCollector) RecordCheckoutFailure(reason string)                   {}
func (nopCollector) RecordSyncSuccess()                                    {}
func (nopCollector) RecordSyncFailure(reason string)                       {}
func (nopCollector) RecordSyncHTTPStatus(statusCode int)                   {}
func (nopCollector) RecordSyncLatency(duration time.Duration)              {}

type testEnv struct {
	service      *Service
	cartStore    *memoryCartStore
	purchaseRepo *mockPurchaseRepo
	userRepo     *mockUserRepo
}

func newTestEnv(modules map[string]*model.Module, packages map[string]*model.Package) *testEnv {
	cartStore := newMemoryCartStore()
	purchaseRepo := newMockPurchaseRepo()
	userRepo := &mockUserRepo{}
	service := NewService(
		cartStore,
		&mockModuleRepo{modules: modules},
		&mockPackageRepo{packages: packages},
		purchaseRepo,
		userRepo,
		nil,
		nopCollector{},
	)
	return &testEnv{
		service:      service,
		cartStore:    cartStore,
		purchaseRepo: purchaseRepo,
		userRepo:     userRepo,
	}
}

func TestCheckoutCart(t *testing.T) {
	env := newTestEnv(map[string]*model.Module{
		"mod-1": {ID: "mod-1", Price: 500, IsVisible: true},
		"mod-2": {ID: "mod-2", Price: 300, IsVisible: true},
	}, nil)

	env.cartStore.carts["user-1"] = &model.Cart{
		UserID: "user-1",
		Items: []model.CartItem{
			{ModuleID: "mod-1", Price: 500, Quantity: 1},
			{ModuleID: "mod-2", Price: 300, Quantity: 2},
		},
	}

	receipt, err := env.service.CheckoutCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CheckoutCart() error = %v", err)
	}

	if len(receipt.PurchaseIDs) != 2 {
		t.Errorf("purchases = %d, want 2", len(receipt.PurchaseIDs))
	}
	if receipt.TotalAmount != 1100 {
		t.Errorf("TotalAmount = %v, want 1100", receipt.TotalAmount)
	}
	if len(env.userRepo.ownedIDs) != 2 {
		t.Errorf("owned modules = %v, want mod-1 and mod-2", env.userRepo.ownedIDs)
	}
	if _, ok := env.cartStore.carts["user-1"]; ok {
		t.Error("cart should be cleared after checkout")
	}
}

func TestCheckoutCart_Empty(t *testing.T) {
	env := newTestEnv(nil, nil)

	_, err := env.service.CheckoutCart(context.Background(), "user-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "CART_EMPTY" {
		t.Errorf("error = %v, want CART_EMPTY", err)
	}
}

func TestCheckoutCart_PriceMismatch(t *testing.T) {
	env := newTestEnv(map[string]*model.Module{
		"mod-1": {ID: "mod-1", Price: 700, IsVisible: true},
	}, nil)

	env.cartStore.carts["user-1"] = &model.Cart{
		UserID: "user-1",
		Items:  []model.CartItem{{ModuleID: "mod-1", Price: 500, Quantity: 1}},
	}

	_, err := env.service.CheckoutCart(context.Background(), "user-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "PRICE_MISMATCH" {
		t.Errorf("error = %v, want PRICE_MISMATCH", err)
	}
	if len(env.purchaseRepo.inserted) != 0 {
		t.Error("no purchase should be recorded on price mismatch")
	}
	if _, ok := env.cartStore.carts["user-1"]; !ok {
		t.Error("cart should be kept on failure")
	}
}

func TestCheckoutCart_DuplicateAbsorbed(t *testing.T) {
	env := newTestEnv(map[string]*model.Module{
		"mod-1": {ID: "mod-1", Price: 500, IsVisible: true},
	}, nil)

	// 既に台帳に購入記録がある状態
	env.purchaseRepo.inserted["user-1/mod-1"] = model.Purchase{UserID: "user-1", ModuleID: "mod-1"}

	env.cartStore.carts["user-1"] = &model.Cart{
		UserID: "user-1",
		Items:  []model.CartItem{{ModuleID: "mod-1", Price: 500, Quantity: 1}},
	}

	receipt, err := env.service.CheckoutCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CheckoutCart() error = %v", err)
	}
	if len(receipt.PurchaseIDs) != 0 {
		t.Errorf("duplicate purchase should not create a new record: %v", receipt.PurchaseIDs)
	}
	if receipt.TotalAmount != 0 {
		t.Errorf("TotalAmount = %v, want 0 for duplicate", receipt.TotalAmount)
	}
}

func TestBuyPackage(t *testing.T) {
	env := newTestEnv(nil, map[string]*model.Package{
		"pkg-1": {ID: "pkg-1", Name: "さんすうセット", Price: 1500, IsVisible: true},
	})

	receipt, err := env.service.BuyPackage(context.Background(), "user-1", "pkg-1")
	if err != nil {
		t.Fatalf("BuyPackage() error = %v", err)
	}

	if receipt.TotalAmount != 1500 {
		t.Errorf("TotalAmount = %v, want 1500", receipt.TotalAmount)
	}
	purchase, ok := env.purchaseRepo.inserted["user-1/pkg-1"]
	if !ok {
		t.Fatal("package purchase should be recorded")
	}
	if purchase.Type != model.PurchaseTypePackage {
		t.Errorf("purchase type = %q, want package", purchase.Type)
	}
	if len(env.userRepo.ownedIDs) != 1 || env.userRepo.ownedIDs[0] != "pkg-1" {
		t.Errorf("owned IDs = %v, want [pkg-1]", env.userRepo.ownedIDs)
	}
}

func TestBuyPackage_NotFound(t *testing.T) {
	env := newTestEnv(nil, map[string]*model.Package{
		"hidden": {ID: "hidden", IsVisible: false},
	})

	for _, id := range []string{"ghost", "hidden"} {
		_, err := env.service.BuyPackage(context.Background(), "user-1", id)

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "PACKAGE_NOT_FOUND" {
			t.Errorf("BuyPackage(%q) error = %v, want PACKAGE_NOT_FOUND", id, err)
		}
	}
}

func TestCheckoutCart_PushesToRemote(t *testing.T) {
	env := newTestEnv(map[string]*model.Module{
		"mod-1": {ID: "mod-1", Price: 500, IsVisible: true},
	}, nil)
	env.userRepo.user = &model.User{
		ID:               "user-1",
		Email:            "kid@example.com",
		Role:             model.RoleUser,
		PurchasedModules: []string{"mod-1"},
		TotalSpent:       500,
	}
	remote := &mockRemoteLedger{}
	env.service.remote = remote

	env.cartStore.carts["user-1"] = &model.Cart{
		UserID: "user-1",
		Items:  []model.CartItem{{ModuleID: "mod-1", Price: 500, Quantity: 1}},
	}

	if _, err := env.service.CheckoutCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("CheckoutCart() error = %v", err)
	}

	if len(remote.purchases) != 1 || remote.purchases[0].ModuleID != "mod-1" {
		t.Errorf("pushed purchases = %+v, want mod-1", remote.purchases)
	}
	if remote.purchases[0].Status != "completed" {
		t.Errorf("pushed status = %q, want completed", remote.purchases[0].Status)
	}
	if remote.updated == nil || remote.updated.TotalSpent != 500 {
		t.Errorf("pushed user = %+v, want updated ownership state", remote.updated)
	}
}

func TestCheckoutCart_RemotePushFailureIsNonFatal(t *testing.T) {
	env := newTestEnv(map[string]*model.Module{
		"mod-1": {ID: "mod-1", Price: 500, IsVisible: true},
	}, nil)
	env.service.remote = &mockRemoteLedger{pushErr: errors.New("vps unreachable")}

	env.cartStore.carts["user-1"] = &model.Cart{
		UserID: "user-1",
		Items:  []model.CartItem{{ModuleID: "mod-1", Price: 500, Quantity: 1}},
	}

	// 書き戻しはベストエフォートであり、失敗しても決済は成立する
	receipt, err := env.service.CheckoutCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CheckoutCart() error = %v", err)
	}
	if len(receipt.PurchaseIDs) != 1 {
		t.Errorf("purchases = %d, want 1", len(receipt.PurchaseIDs))
	}
}

func TestBuyPackage_PushesToRemote(t *testing.T) {
	env := newTestEnv(nil, map[string]*model.Package{
		"pkg-1": {ID: "pkg-1", Price: 1000, IsVisible: true},
	})
	env.userRepo.user = &model.User{ID: "user-1", PurchasedModules: []string{"pkg-1"}, TotalSpent: 1000}
	remote := &mockRemoteLedger{}
	env.service.remote = remote

	if _, err := env.service.BuyPackage(context.Background(), "user-1", "pkg-1"); err != nil {
		t.Fatalf("BuyPackage() error = %v", err)
	}

	if len(remote.purchases) != 1 || remote.purchases[0].Type != "package" {
		t.Errorf("pushed purchases = %+v, want one package purchase", remote.purchases)
	}
	if remote.updated == nil {
		t.Error("updated ownership state was not pushed")
	}
}
