// Package model はドメインモデルを定義する。
package model

import "time"

// CartItem はカート内の1行を表す。
// Quantityは常に1以上。最後の1個を取り除くと行自体が消える。
type CartItem struct {
	ModuleID      string
	Title         string
	Price         float64
	OriginalPrice *float64 // 割引前価格。未設定の行は割引額の計算に寄与しない
	Quantity      int
	AddedAt       time.Time
}

// Cart はユーザーごとの保留中購入リストを表す。
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}
