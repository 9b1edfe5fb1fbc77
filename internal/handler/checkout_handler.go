package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kidstore/internal/checkout"
	"github.com/hitoshi/kidstore/internal/middleware"
)

// CheckoutServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	CheckoutCart(ctx context.Context, userID string) (*checkout.Receipt, error)
	BuyPackage(ctx context.Context, userID, packageID string) (*checkout.Receipt, error)
}

// CheckoutHandler は決済のHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

type receiptResponse struct {
	PurchaseIDs []string  `json:"purchaseIds"`
	ModuleIDs   []string  `json:"moduleIds"`
	TotalAmount float64   `json:"totalAmount"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

func toReceiptResponse(receipt *checkout.Receipt) receiptResponse {
	purchaseIDs := receipt.PurchaseIDs
	if purchaseIDs == nil {
		purchaseIDs = []string{}
	}
	moduleIDs := receipt.ModuleIDs
	if moduleIDs == nil {
		moduleIDs = []string{}
	}
	return receiptResponse{
		PurchaseIDs: purchaseIDs,
		ModuleIDs:   moduleIDs,
		TotalAmount: receipt.TotalAmount,
		PurchasedAt: receipt.PurchasedAt,
	}
}

// CheckoutCart はかごの全明細を決済する。
// POST /api/checkout
func (h *CheckoutHandler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	receipt, err := h.service.CheckoutCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toReceiptResponse(receipt))
}

// BuyPackage はパッケージを直接購入する。
// POST /api/packages/:id/purchase
func (h *CheckoutHandler) BuyPackage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	packageID := chi.URLParam(r, "id")

	receipt, err := h.service.BuyPackage(r.Context(), userID, packageID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toReceiptResponse(receipt))
}
