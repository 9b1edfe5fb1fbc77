package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kidstore/internal/model"
)

// StoreServiceInterface はストアフロントハンドラーが必要とするサービスインターフェース。
type StoreServiceInterface interface {
	ListVisible(ctx context.Context) ([]model.Module, error)
	GetModule(ctx context.Context, id string) (*model.Module, error)
	ListVisiblePackages(ctx context.Context) ([]model.Package, error)
	GetPackage(ctx context.Context, id string) (*model.Package, error)
}

// StoreHandler はストアフロント（公開カタログ）のHTTPハンドラー。
type StoreHandler struct {
	service StoreServiceInterface
}

// NewStoreHandler はStoreHandlerを生成する。
func NewStoreHandler(service StoreServiceInterface) *StoreHandler {
	return &StoreHandler{service: service}
}

type mediaRefResponse struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type moduleResponse struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Summary       string            `json:"summary"`
	Description   string            `json:"description,omitempty"`
	Category      string            `json:"category"`
	Price         float64           `json:"price"`
	OriginalPrice *float64          `json:"originalPrice,omitempty"`
	IsPremium     bool              `json:"isPremium"`
	IsFree        bool              `json:"isFree"`
	IsVisible     bool              `json:"isVisible"`
	Thumbnail     *mediaRefResponse `json:"thumbnail,omitempty"`
	Position      int               `json:"position"`
	CreatedAt     time.Time         `json:"createdAt"`
}

type packageResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ContentIDs  []string  `json:"contentIds"`
	Price       float64   `json:"price"`
	IsVisible   bool      `json:"isVisible"`
	CreatedAt   time.Time `json:"createdAt"`
}

// toModuleListResponse は一覧用の軽量表現を返す。説明HTMLは含まない。
func toModuleListResponse(m *model.Module) moduleResponse {
	resp := moduleResponse{
		ID:            m.ID,
		Title:         m.Title,
		Summary:       m.Summary,
		Category:      m.Category,
		Price:         m.Price,
		OriginalPrice: m.OriginalPrice,
		IsPremium:     m.IsPremium,
		IsFree:        m.IsFree(),
		IsVisible:     m.IsVisible,
		Position:      m.Position,
		CreatedAt:     m.CreatedAt,
	}
	if m.Thumbnail.Value != "" {
		resp.Thumbnail = &mediaRefResponse{
			Kind:  string(m.Thumbnail.Kind),
			Value: m.Thumbnail.Value,
		}
	}
	return resp
}

// toModuleDetailResponse は詳細用の表現を返す。サニタイズ済み説明HTMLを含む。
func toModuleDetailResponse(m *model.Module) moduleResponse {
	resp := toModuleListResponse(m)
	resp.Description = m.DescriptionHTML
	return resp
}

func toPackageResponse(p *model.Package) packageResponse {
	contentIDs := p.ContentIDs
	if contentIDs == nil {
		contentIDs = []string{}
	}
	return packageResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ContentIDs:  contentIDs,
		Price:       p.Price,
		IsVisible:   p.IsVisible,
		CreatedAt:   p.CreatedAt,
	}
}

// ListModules は販売中のコンテンツ一覧を返す。
// GET /api/store/modules
func (h *StoreHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListVisible(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]moduleResponse, 0, len(modules))
	for i := range modules {
		resp = append(resp, toModuleListResponse(&modules[i]))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// GetModule はコンテンツ詳細を返す。
// GET /api/store/modules/:id
func (h *StoreHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "id")

	module, err := h.service.GetModule(r.Context(), moduleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 非表示コンテンツは存在しないものとして扱う
	if !module.IsVisible {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewModuleNotFoundError(moduleID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toModuleDetailResponse(module))
}

// ListPackages は販売中のパッケージ一覧を返す。
// GET /api/store/packages
func (h *StoreHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.service.ListVisiblePackages(r.Context())
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
// GET /api/store/packages/:id
func (h *StoreHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	packageID := chi.URLParam(r, "id")

	pkg, err := h.service.GetPackage(r.Context(), packageID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !pkg.IsVisible {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPackageNotFoundError(packageID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toPackageResponse(pkg))
}
