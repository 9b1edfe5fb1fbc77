package cart

import "github.com/hitoshi/kidstore/internal/model"

// maxQuantity は1明細あたりの数量上限。
const maxQuantity = 99

// MergeItem はかごに明細を追加する。同一モジュールが既にある場合は
// 数量を合算し、上限を超える分は切り詰める。明細の順序は保たれる。
func MergeItem(cart *model.Cart, item model.CartItem) {
	for i := range cart.Items {
		if cart.Items[i].ModuleID == item.ModuleID {
			cart.Items[i].Quantity = clampQuantity(cart.Items[i].Quantity + item.Quantity)
			return
		}
	}
	item.Quantity = clampQuantity(item.Quantity)
	cart.Items = append(cart.Items, item)
}

// SetQuantity は既存明細の数量を変更する。0以下を指定した場合は明細を取り除く。
// 明細が存在しない場合はfalseを返す。
func SetQuantity(cart *model.Cart, moduleID string, quantity int) bool {
	if quantity <= 0 {
		return RemoveItem(cart, moduleID)
	}
	for i := range cart.Items {
		if cart.Items[i].ModuleID == moduleID {
			cart.Items[i].Quantity = clampQuantity(quantity)
			return true
		}
	}
	return false
}

// RemoveItem はかごから明細を取り除く。
// 明細が存在しない場合はfalseを返す。
func RemoveItem(cart *model.Cart, moduleID string) bool {
	for i := range cart.Items {
		if cart.Items[i].ModuleID == moduleID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return true
		}
	}
	return false
}

// TotalItems はかご内の数量合計を返す。
func TotalItems(cart *model.Cart) int {
	total := 0
	for _, item := range cart.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice はかご内の販売価格合計を返す。
func TotalPrice(cart *model.Cart) float64 {
	total := 0.0
	for _, item := range cart.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// TotalSavings は割引前価格との差額合計を返す。
// 割引前価格が未設定または販売価格以下の明細は割引なしとして扱う。
func TotalSavings(cart *model.Cart) float64 {
	savings := 0.0
	for _, item := range cart.Items {
		if item.OriginalPrice == nil {
			continue
		}
		diff := *item.OriginalPrice - item.Price
		if diff <= 0 {
			continue
		}
		savings += diff * float64(item.Quantity)
	}
	return savings
}

func clampQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	if quantity > maxQuantity {
		return maxQuantity
	}
	return quantity
}
