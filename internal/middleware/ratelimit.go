package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	CheckoutRate    rate.Limit    // 決済のレート（req/sec）
	CheckoutBurst   int           // 決済のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、決済 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		CheckoutRate:    rate.Limit(10.0 / 60.0),
		CheckoutBurst:   10,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool はキーごとのリミッターの集合。
type limiterPool struct {
	mu       sync.RWMutex
	limiters map[string]*userLimiter
	r        rate.Limit
	burst    int
}

func newLimiterPool(r rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		limiters: make(map[string]*userLimiter),
		r:        r,
		burst:    burst,
	}
}

// getOrCreate はキーに対応するリミッターを取得または作成する。
func (p *limiterPool) getOrCreate(key string) *rate.Limiter {
	p.mu.RLock()
	ul, exists := p.limiters[key]
	p.mu.RUnlock()

	if exists {
		p.mu.Lock()
		ul.lastAccess = time.Now()
		p.mu.Unlock()
		return ul.limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// ダブルチェック
	if ul, exists := p.limiters[key]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(p.r, p.burst)
	p.limiters[key] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (p *limiterPool) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.limiters)
}

func (p *limiterPool) cleanup(ttl time.Duration) {
	now := time.Now()
	p.mu.Lock()
	for key, ul := range p.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(p.limiters, key)
		}
	}
	p.mu.Unlock()
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般のレート制限と決済専用のレート制限の2種類を提供する。
type RateLimiter struct {
	config   RateLimiterConfig
	general  *limiterPool
	checkout *limiterPool
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		general:  newLimiterPool(config.GeneralRate, config.GeneralBurst),
		checkout: newLimiterPool(config.CheckoutRate, config.CheckoutBurst),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// コンテキストにユーザーIDがあればユーザー単位、なければクライアントIP単位で制限する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, "general", rl.config.GeneralRate)
}

// CheckoutMiddleware は決済専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) CheckoutMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.checkout, "checkout", rl.config.CheckoutRate)
}

func (rl *RateLimiter) middleware(pool *limiterPool, limitType string, r rate.Limit) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// 匿名リクエスト（公開ストアフロント閲覧）はクライアントIP単位で制限する
			key, err := UserIDFromContext(req.Context())
			if err != nil {
				key = "ip:" + clientIP(req)
			}

			if !pool.getOrCreate(key).Allow() {
				writeRateLimitResponse(w, r)
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", limitType),
				)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// CheckoutLimiterCount は現在管理されている決済リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) CheckoutLimiterCount() int {
	return rl.checkout.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
// 最終アクセス時刻がCleanupIntervalの2倍を超えたエントリが削除対象となる。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ttl := rl.config.CleanupInterval * 2
			rl.general.cleanup(ttl)
			rl.checkout.cleanup(ttl)
		case <-rl.stopCh:
			return
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "リクエストが多すぎます。しばらく待ってから再度お試しください。",
		"category": "system",
		"action":   "指定時間の経過後に再試行してください。",
	})
}

// clientIP はリクエスト元のIPアドレスを返す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
