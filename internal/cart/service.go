package cart

import (
	"context"
	"time"

	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/repository"
)

// Service はかご操作のビジネスロジックを提供する。
// 明細にはカタログのタイトルと価格をスナップショットとして保持し、
// 決済時にカタログの現在価格と照合される。
type Service struct {
	store      Store
	moduleRepo repository.ModuleRepository
}

// NewService はServiceを生成する。
func NewService(store Store, moduleRepo repository.ModuleRepository) *Service {
	return &Service{
		store:      store,
		moduleRepo: moduleRepo,
	}
}

// View はかごの内容と集計値をまとめた表示用の構造体。
type View struct {
	Cart         *model.Cart
	TotalItems   int
	TotalPrice   float64
	TotalSavings float64
}

// Get はユーザーのかごを集計付きで取得する。
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newView(cart), nil
}

// Add はモジュールをかごに追加する。既にある場合は数量を合算する。
// 非公開のモジュールは追加できない。
func (s *Service) Add(ctx context.Context, userID, moduleID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, model.NewInvalidQuantityError(quantity)
	}

	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil || !module.IsVisible {
		return nil, model.NewModuleNotFoundError(moduleID)
	}

	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	MergeItem(cart, model.CartItem{
		ModuleID:      module.ID,
		Title:         module.Title,
		Price:         module.Price,
		OriginalPrice: module.OriginalPrice,
		Quantity:      quantity,
		AddedAt:       time.Now(),
	})

	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return newView(cart), nil
}

// UpdateQuantity は明細の数量を変更する。0以下を指定した場合は明細を取り除く。
func (s *Service) UpdateQuantity(ctx context.Context, userID, moduleID string, quantity int) (*View, error) {
	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !SetQuantity(cart, moduleID, quantity) {
		return nil, model.NewCartItemNotFoundError(moduleID)
	}

	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return newView(cart), nil
}

// Remove は明細をかごから取り除く。
func (s *Service) Remove(ctx context.Context, userID, moduleID string) (*View, error) {
	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !RemoveItem(cart, moduleID) {
		return nil, model.NewCartItemNotFoundError(moduleID)
	}

	if err := s.store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return newView(cart), nil
}

// Clear はかごを空にする。
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Clear(ctx, userID)
}

func newView(cart *model.Cart) *View {
	return &View{
		Cart:         cart,
		TotalItems:   TotalItems(cart),
		TotalPrice:   TotalPrice(cart),
		TotalSavings: TotalSavings(cart),
	}
}
