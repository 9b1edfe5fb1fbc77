// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/kidstore/internal/auth"
	"github.com/hitoshi/kidstore/internal/cart"
	"github.com/hitoshi/kidstore/internal/catalog"
	"github.com/hitoshi/kidstore/internal/checkout"
	"github.com/hitoshi/kidstore/internal/config"
	"github.com/hitoshi/kidstore/internal/database"
	"github.com/hitoshi/kidstore/internal/handler"
	"github.com/hitoshi/kidstore/internal/library"
	"github.com/hitoshi/kidstore/internal/logger"
	"github.com/hitoshi/kidstore/internal/metrics"
	"github.com/hitoshi/kidstore/internal/middleware"
	"github.com/hitoshi/kidstore/internal/repository"
	"github.com/hitoshi/kidstore/internal/vps"
	"github.com/hitoshi/kidstore/internal/worker/cleanup"
	syncworker "github.com/hitoshi/kidstore/internal/worker/sync"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、.envと環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envがあれば読み込む（本番では環境変数のみ）
	if err := godotenv.Load(); err != nil {
		slog.Debug(".envファイルが見つかりません。環境変数のみを使用します")
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとRedisの接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（カートストア）
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	moduleRepo := repository.NewPostgresModuleRepo(db)
	packageRepo := repository.NewPostgresPackageRepo(db)
	purchaseRepo := repository.NewPostgresPurchaseRepo(db)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. リモートスナップショットストア（VPS未設定なら無効）
	var vpsClient *vps.Client
	if cfg.VPSBaseURL != "" {
		vpsClient, err = buildVPSClient(cfg, collector)
		if err != nil {
			return err
		}
	}

	// 6. ドメインサービスの初期化
	// vpsClientがnilのインターフェース引数には型付きnilを渡さない
	var remoteRegistry auth.RemoteRegistry
	var remoteLedger checkout.RemoteLedger
	if vpsClient != nil {
		remoteRegistry = vpsClient
		remoteLedger = vpsClient
	}

	authService := auth.NewService(
		userRepo, sessionRepo, remoteRegistry,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	catalogService := catalog.NewService(moduleRepo, packageRepo, catalog.NewSanitizer())
	libraryService := library.NewService(userRepo, moduleRepo, packageRepo, purchaseRepo, collector)

	cartStore := cart.NewRedisStore(redisClient, cfg.CartTTL)
	cartService := cart.NewService(cartStore, moduleRepo)
	checkoutService := checkout.NewService(
		cartStore, moduleRepo, packageRepo, purchaseRepo, userRepo, remoteLedger, collector,
	)

	// 7. 手動同期トリガー（VPS未設定なら無効）
	var syncRunner handler.SyncRunner
	if vpsClient != nil {
		syncRunner = buildSyncScheduler(vpsClient, userRepo, purchaseRepo, packageRepo, collector)
	}

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		StoreService:        catalogService,
		LibraryService:      libraryService,
		CartService:         cartService,
		CheckoutService:     checkoutService,
		AdminCatalogService: catalogService,
		SyncRunner:          syncRunner,
	}

	router := handler.NewRouter(deps)

	// 9. メトリクスサーバーの起動（内部ポート）
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は同期ワーカーモードで起動する。
// リモートスナップショットストアからの定期取り込みと、
// 期限切れセッションのクリーンアップを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	packageRepo := repository.NewPostgresPackageRepo(db)
	purchaseRepo := repository.NewPostgresPurchaseRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 4. クリーンアップジョブを日次でバックグラウンド実行
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 5. 同期スケジューラをメインgoroutineで実行（ブロッキング）
	if cfg.VPSBaseURL == "" {
		slog.Warn("VPS_BASE_URLが未設定のため、スナップショット同期は無効です")
		<-ctx.Done()
	} else {
		client, err := buildVPSClient(cfg, collector)
		if err != nil {
			return err
		}
		scheduler := buildSyncScheduler(client, userRepo, purchaseRepo, packageRepo, collector)
		scheduler.Start(ctx, cfg.SyncInterval)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// buildVPSClient はリモートスナップショットストアのHTTPクライアントを構築する。
func buildVPSClient(cfg *config.Config, collector metrics.MetricsCollector) (*vps.Client, error) {
	guard := vps.NewGuard()
	if err := guard.ValidateURL(cfg.VPSBaseURL); err != nil {
		return nil, fmt.Errorf("invalid VPS_BASE_URL: %w", err)
	}

	return vps.NewClient(vps.ClientConfig{
		BaseURL:     cfg.VPSBaseURL,
		APIKey:      cfg.VPSAPIKey,
		Timeout:     cfg.SyncTimeout,
		MaxBodySize: cfg.SyncMaxSize,
		CacheTTL:    cfg.SnapshotTTL,
	}, guard, collector), nil
}

// buildSyncScheduler はスナップショット取り込みのスケジューラを構築する。
func buildSyncScheduler(
	client *vps.Client,
	userRepo repository.UserRepository,
	purchaseRepo repository.PurchaseRepository,
	packageRepo repository.PackageRepository,
	collector metrics.MetricsCollector,
) *syncworker.Scheduler {
	importer := syncworker.NewImporter(
		client, userRepo, purchaseRepo, packageRepo, collector, slog.Default(),
	)
	return syncworker.NewScheduler(importer, slog.Default())
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
