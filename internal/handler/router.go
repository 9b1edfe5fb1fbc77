package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kidstore/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ストアフロント
	StoreService StoreServiceInterface

	// ライブラリ・アクセス判定
	LibraryService LibraryServiceInterface

	// カート・決済
	CartService     CartServiceInterface
	CheckoutService CheckoutServiceInterface

	// 管理
	AdminCatalogService AdminCatalogServiceInterface
	SyncRunner          SyncRunner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Optional)Session → RateLimit
//
// 認証ルート（/auth/*）はセッションミドルウェアの外に配置する。
// ストアフロントは任意セッション（未ログインでも閲覧可能）、
// ライブラリ・カート・決済は必須セッション、管理APIはさらに管理者チェックを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	storeHandler := NewStoreHandler(deps.StoreService)
	libraryHandler := NewLibraryHandler(deps.LibraryService)
	cartHandler := NewCartHandler(deps.CartService)
	checkoutHandler := NewCheckoutHandler(deps.CheckoutService)
	adminHandler := NewAdminHandler(deps.AdminCatalogService, deps.SyncRunner)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 公開ストアフロント（任意セッション） ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/store", func(r chi.Router) {
			r.Get("/modules", storeHandler.ListModules)
			r.Get("/modules/{id}", storeHandler.GetModule)
			r.Get("/packages", storeHandler.ListPackages)
			r.Get("/packages/{id}", storeHandler.GetPackage)
		})

		// 無料コンテンツは未ログインでも判定が通る
		r.Get("/api/modules/{id}/access", libraryHandler.CheckAccess)
	})

	// --- 要認証ルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/library", libraryHandler.Library)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{moduleID}", cartHandler.UpdateItem)
			r.Delete("/items/{moduleID}", cartHandler.RemoveItem)
		})

		// 決済は専用の厳しいレート制限を重ねる
		r.With(deps.RateLimiter.CheckoutMiddleware()).
			Post("/api/checkout", checkoutHandler.CheckoutCart)
		r.With(deps.RateLimiter.CheckoutMiddleware()).
			Post("/api/packages/{id}/purchase", checkoutHandler.BuyPackage)
	})

	// --- 管理ルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewAdminMiddleware(deps.UserFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/modules", adminHandler.ListModules)
			r.Post("/modules", adminHandler.CreateModule)
			r.Get("/modules/{id}", adminHandler.GetModule)
			r.Patch("/modules/{id}", adminHandler.UpdateModule)

			r.Get("/packages", adminHandler.ListPackages)
			r.Post("/packages", adminHandler.CreatePackage)
			r.Get("/packages/{id}", adminHandler.GetPackage)
			r.Patch("/packages/{id}", adminHandler.UpdatePackage)

			r.Post("/sync", adminHandler.TriggerSync)
		})
	})

	return r
}
