package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kidstore/internal/cart"
	"github.com/hitoshi/kidstore/internal/middleware"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Get(ctx context.Context, userID string) (*cart.View, error)
	Add(ctx context.Context, userID, moduleID string, quantity int) (*cart.View, error)
	UpdateQuantity(ctx context.Context, userID, moduleID string, quantity int) (*cart.View, error)
	Remove(ctx context.Context, userID, moduleID string) (*cart.View, error)
	Clear(ctx context.Context, userID string) error
}

// CartHandler は買い物かごのHTTPハンドラー。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

type addCartItemRequest struct {
	ModuleID string `json:"moduleId"`
	Quantity int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartItemResponse struct {
	ModuleID      string    `json:"moduleId"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Quantity      int       `json:"quantity"`
	AddedAt       time.Time `json:"addedAt"`
}

type cartResponse struct {
	Items        []cartItemResponse `json:"items"`
	TotalItems   int                `json:"totalItems"`
	TotalPrice   float64            `json:"totalPrice"`
	TotalSavings float64            `json:"totalSavings"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func toCartResponse(view *cart.View) cartResponse {
	items := make([]cartItemResponse, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		items = append(items, cartItemResponse{
			ModuleID:      item.ModuleID,
			Title:         item.Title,
			Price:         item.Price,
			OriginalPrice: item.OriginalPrice,
			Quantity:      item.Quantity,
			AddedAt:       item.AddedAt,
		})
	}
	return cartResponse{
		Items:        items,
		TotalItems:   view.TotalItems,
		TotalPrice:   view.TotalPrice,
		TotalSavings: view.TotalSavings,
		UpdatedAt:    view.Cart.UpdatedAt,
	}
}

// Get は現在のかごの内容を返す。
// GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	view, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toCartResponse(view))
}

// AddItem はかごにコンテンツを追加する。同じコンテンツは数量が加算される。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	view, err := h.service.Add(r.Context(), userID, req.ModuleID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toCartResponse(view))
}

// UpdateItem はかご内の数量を変更する。
// PUT /api/cart/items/:moduleID
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	moduleID := chi.URLParam(r, "moduleID")

	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	view, err := h.service.UpdateQuantity(r.Context(), userID, moduleID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toCartResponse(view))
}

// RemoveItem はかごから1行を取り除く。
// DELETE /api/cart/items/:moduleID
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	moduleID := chi.URLParam(r, "moduleID")

	view, err := h.service.Remove(r.Context(), userID, moduleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toCartResponse(view))
}

// Clear はかごを空にする。
// DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Clear(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
