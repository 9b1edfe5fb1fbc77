package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kidstore/internal/catalog"
	"github.com/hitoshi/kidstore/internal/model"
	syncworker "github.com/hitoshi/kidstore/internal/worker/sync"
)

// AdminCatalogServiceInterface は管理ハンドラーが必要とするカタログ操作。
type AdminCatalogServiceInterface interface {
	ListAll(ctx context.Context) ([]model.Module, error)
	GetModule(ctx context.Context, id string) (*model.Module, error)
	CreateModule(ctx context.Context, input catalog.ModuleInput) (*model.Module, error)
	UpdateModule(ctx context.Context, id string, input catalog.ModuleInput) (*model.Module, error)
	ListAllPackages(ctx context.Context) ([]model.Package, error)
	GetPackage(ctx context.Context, id string) (*model.Package, error)
	CreatePackage(ctx context.Context, input catalog.PackageInput) (*model.Package, error)
	UpdatePackage(ctx context.Context, id string, input catalog.PackageInput) (*model.Package, error)
}

// SyncRunner はリモートストアからの取り込みを手動実行するインターフェース。
type SyncRunner interface {
	RunOnce(ctx context.Context) (*syncworker.ImportStats, error)
}

// AdminHandler は管理APIのHTTPハンドラー。
// 全ルートが管理者ミドルウェアの内側に配置される前提で、権限チェックは行わない。
type AdminHandler struct {
	catalog AdminCatalogServiceInterface
	sync    SyncRunner
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(catalogService AdminCatalogServiceInterface, syncRunner SyncRunner) *AdminHandler {
	return &AdminHandler{
		catalog: catalogService,
		sync:    syncRunner,
	}
}

type moduleInputRequest struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	Price         float64           `json:"price"`
	OriginalPrice *float64          `json:"originalPrice"`
	IsPremium     bool              `json:"isPremium"`
	IsVisible     bool              `json:"isVisible"`
	Thumbnail     *mediaRefResponse `json:"thumbnail"`
	Position      int               `json:"position"`
}

func (req *moduleInputRequest) toInput() catalog.ModuleInput {
	input := catalog.ModuleInput{
		Title:           req.Title,
		DescriptionHTML: req.Description,
		Category:        req.Category,
		Price:           req.Price,
		OriginalPrice:   req.OriginalPrice,
		IsPremium:       req.IsPremium,
		IsVisible:       req.IsVisible,
		Position:        req.Position,
	}
	if req.Thumbnail != nil {
		input.Thumbnail = model.MediaRef{
			Kind:  model.MediaKind(req.Thumbnail.Kind),
			Value: req.Thumbnail.Value,
		}
	}
	return input
}

type packageInputRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ContentIDs  []string `json:"contentIds"`
	Price       float64  `json:"price"`
	IsVisible   bool     `json:"isVisible"`
}

func (req *packageInputRequest) toInput() catalog.PackageInput {
	return catalog.PackageInput{
		Name:        req.Name,
		Description: req.Description,
		ContentIDs:  req.ContentIDs,
		Price:       req.Price,
		IsVisible:   req.IsVisible,
	}
}

type syncResultResponse struct {
	Users     int `json:"users"`
	Purchases int `json:"purchases"`
	Packages  int `json:"packages"`
}

// ListModules は非表示を含む全コンテンツを返す。
// GET /api/admin/modules
func (h *AdminHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.catalog.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]moduleResponse, 0, len(modules))
	for i := range modules {
		resp = append(resp, toModuleDetailResponse(&modules[i]))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// GetModule はコンテンツ詳細を返す。非表示コンテンツも取得できる。
// GET /api/admin/modules/:id
func (h *AdminHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	module, err := h.catalog.GetModule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toModuleDetailResponse(module))
}

// CreateModule は新しいコンテンツを作成する。
// POST /api/admin/modules
func (h *AdminHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	var req moduleInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	module, err := h.catalog.CreateModule(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toModuleDetailResponse(module))
}

// UpdateModule はコンテンツを上書き更新する。
// PATCH /api/admin/modules/:id
func (h *AdminHandler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	var req moduleInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	module, err := h.catalog.UpdateModule(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toModuleDetailResponse(module))
}

// ListPackages は非表示を含む全パッケージを返す。
// GET /api/admin/packages
func (h *AdminHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.catalog.ListAllPackages(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]packageResponse, 0, len(packages))
	for i := range packages {
		resp = append(resp, toPackageResponse(&packages[i]))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// GetPackage はパッケージ詳細を返す。
// GET /api/admin/packages/:id
func (h *AdminHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.catalog.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toPackageResponse(pkg))
}

// CreatePackage は新しいパッケージを作成する。
// POST /api/admin/packages
func (h *AdminHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pkg, err := h.catalog.CreatePackage(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toPackageResponse(pkg))
}

// UpdatePackage はパッケージを上書き更新する。
// PATCH /api/admin/packages/:id
func (h *AdminHandler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pkg, err := h.catalog.UpdatePackage(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPackageResponse(pkg))
}

// TriggerSync はリモートストアからの取り込みを即時実行する。
// POST /api/admin/sync
func (h *AdminHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "SYNC_UNAVAILABLE",
			Message:  "同期機能が構成されていません。",
			Category: "sync",
			Action:   "サーバー構成を確認してください。",
		})
		return
	}

	stats, err := h.sync.RunOnce(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, syncResultResponse{
		Users:     stats.Users,
		Purchases: stats.Purchases,
		Packages:  stats.Packages,
	})
}
