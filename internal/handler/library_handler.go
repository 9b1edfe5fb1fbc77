package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kidstore/internal/library"
	"github.com/hitoshi/kidstore/internal/middleware"
	"github.com/hitoshi/kidstore/internal/model"
)

// LibraryServiceInterface はライブラリハンドラーが必要とするサービスインターフェース。
type LibraryServiceInterface interface {
	CheckAccess(ctx context.Context, userID, moduleID string) (*library.AccessResult, error)
	Owned(ctx context.Context, userID string) ([]model.Module, error)
	Available(ctx context.Context, userID string) ([]model.Module, error)
}

// LibraryHandler は所有コンテンツとアクセス判定のHTTPハンドラー。
type LibraryHandler struct {
	service LibraryServiceInterface
}

// NewLibraryHandler はLibraryHandlerを生成する。
func NewLibraryHandler(service LibraryServiceInterface) *LibraryHandler {
	return &LibraryHandler{service: service}
}

type libraryResponse struct {
	Owned     []moduleResponse `json:"owned"`
	Available []moduleResponse `json:"available"`
}

type accessResponse struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Library は所有コンテンツと購入可能コンテンツの一覧を返す。
// GET /api/library
func (h *LibraryHandler) Library(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	owned, err := h.service.Owned(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	available, err := h.service.Available(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := libraryResponse{
		Owned:     make([]moduleResponse, 0, len(owned)),
		Available: make([]moduleResponse, 0, len(available)),
	}
	for i := range owned {
		resp.Owned = append(resp.Owned, toModuleListResponse(&owned[i]))
	}
	for i := range available {
		resp.Available = append(resp.Available, toModuleListResponse(&available[i]))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// CheckAccess は指定コンテンツへのアクセス可否を返す。
// 未ログインでも呼び出せる。無料コンテンツは匿名でも許可される。
// GET /api/modules/:id/access
func (h *LibraryHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "id")

	// 匿名アクセスはuserID空文字列として判定する
	userID, _ := middleware.UserIDFromContext(r.Context())

	result, err := h.service.CheckAccess(r.Context(), userID, moduleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, accessResponse{
		Granted: result.Granted,
		Reason:  string(result.Reason),
		Message: result.Reason.Message(),
	})
}
