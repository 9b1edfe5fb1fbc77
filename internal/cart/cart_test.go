package cart

import (
	"testing"

	"github.com/hitoshi/kidstore/internal/model"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestMergeItem(t *testing.T) {
	cart := &model.Cart{UserID: "user-1"}

	MergeItem(cart, model.CartItem{ModuleID: "mod-1", Price: 500, Quantity: 1})
	MergeItem(cart, model.CartItem{ModuleID: "mod-2", Price: 300, Quantity: 2})
	MergeItem(cart, model.CartItem{ModuleID: "mod-1", Price: 500, Quantity: 3})

	if len(cart.Items) != 2 {
		t.Fatalf("items = %d, want 2 (merged)", len(cart.Items))
	}
	if cart.Items[0].ModuleID != "mod-1" || cart.Items[0].Quantity != 4 {
		t.Errorf("first item = %+v, want mod-1 with quantity 4", cart.Items[0])
	}
	if cart.Items[1].ModuleID != "mod-2" {
		t.Errorf("item order was not preserved: %+v", cart.Items)
	}
}

func TestMergeItem_QuantityClamp(t *testing.T) {
	cart := &model.Cart{}

	MergeItem(cart, model.CartItem{ModuleID: "mod-1", Quantity: 90})
	MergeItem(cart, model.CartItem{ModuleID: "mod-1", Quantity: 50})

	if cart.Items[0].Quantity != maxQuantity {
		t.Errorf("quantity = %d, want clamped to %d", cart.Items[0].Quantity, maxQuantity)
	}
}

func TestSetQuantity(t *testing.T) {
	cart := &model.Cart{Items: []model.CartItem{{ModuleID: "mod-1", Quantity: 1}}}

	if !SetQuantity(cart, "mod-1", 5) {
		t.Fatal("SetQuantity should find mod-1")
	}
	if cart.Items[0].Quantity != 5 {
		t.Errorf("quantity = %d, want 5", cart.Items[0].Quantity)
	}
	if SetQuantity(cart, "ghost", 3) {
		t.Error("SetQuantity should report missing item")
	}
}

func TestSetQuantity_ZeroRemoves(t *testing.T) {
	cart := &model.Cart{Items: []model.CartItem{
		{ModuleID: "mod-1", Quantity: 2},
		{ModuleID: "mod-2", Quantity: 1},
	}}

	// 0以下の指定は明細の削除として扱う
	if !SetQuantity(cart, "mod-1", 0) {
		t.Fatal("SetQuantity should find mod-1")
	}
	if len(cart.Items) != 1 || cart.Items[0].ModuleID != "mod-2" {
		t.Errorf("items = %+v, want only mod-2", cart.Items)
	}

	if SetQuantity(cart, "ghost", -1) {
		t.Error("SetQuantity should report missing item")
	}
}

func TestRemoveItem(t *testing.T) {
	cart := &model.Cart{Items: []model.CartItem{
		{ModuleID: "mod-1"},
		{ModuleID: "mod-2"},
		{ModuleID: "mod-3"},
	}}

	if !RemoveItem(cart, "mod-2") {
		t.Fatal("RemoveItem should find mod-2")
	}
	if len(cart.Items) != 2 || cart.Items[0].ModuleID != "mod-1" || cart.Items[1].ModuleID != "mod-3" {
		t.Errorf("items after removal = %+v", cart.Items)
	}
	if RemoveItem(cart, "ghost") {
		t.Error("RemoveItem should report missing item")
	}
}

func TestTotals(t *testing.T) {
	cart := &model.Cart{Items: []model.CartItem{
		{ModuleID: "mod-1", Price: 500, OriginalPrice: floatPtr(800), Quantity: 2},
		{ModuleID: "mod-2", Price: 300, Quantity: 1},
		{ModuleID: "mod-3", Price: 400, OriginalPrice: floatPtr(400), Quantity: 1},
	}}

	if got := TotalItems(cart); got != 4 {
		t.Errorf("TotalItems = %d, want 4", got)
	}
	if got := TotalPrice(cart); got != 1700 {
		t.Errorf("TotalPrice = %v, want 1700", got)
	}
	// 割引があるのはmod-1のみ: (800-500)*2
	if got := TotalSavings(cart); got != 600 {
		t.Errorf("TotalSavings = %v, want 600", got)
	}
}

func TestTotals_Empty(t *testing.T) {
	cart := &model.Cart{}

	if TotalItems(cart) != 0 || TotalPrice(cart) != 0 || TotalSavings(cart) != 0 {
		t.Error("empty cart totals should all be zero")
	}
}
