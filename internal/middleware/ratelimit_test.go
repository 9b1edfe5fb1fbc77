package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiterConfig(generalBurst, checkoutBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中に補充されない低レート
		GeneralBurst:    generalBurst,
		CheckoutRate:    rate.Limit(0.001),
		CheckoutBurst:   checkoutBurst,
		CleanupInterval: time.Hour,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(mw func(http.Handler) http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestGeneralMiddleware_AllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(3, 1))
	defer rl.Stop()
	mw := rl.GeneralMiddleware()

	for i := 0; i < 3; i++ {
		if rec := doRequest(mw, "user-1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := doRequest(mw, "user-1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 after burst", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After header")
	}
}

func TestGeneralMiddleware_PerUser(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	mw := rl.GeneralMiddleware()

	if rec := doRequest(mw, "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("user-1 first request: %d", rec.Code)
	}
	if rec := doRequest(mw, "user-1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("user-1 second request = %d, want 429", rec.Code)
	}
	// 別ユーザーは独立したリミッターを持つ
	if rec := doRequest(mw, "user-2"); rec.Code != http.StatusOK {
		t.Errorf("user-2 request = %d, want 200", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestCheckoutMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(10, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()
	checkout := rl.CheckoutMiddleware()

	if rec := doRequest(checkout, "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("first checkout: %d", rec.Code)
	}
	if rec := doRequest(checkout, "user-1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second checkout = %d, want 429", rec.Code)
	}
	// 決済リミッターの枯渇はAPI全般に影響しない
	if rec := doRequest(general, "user-1"); rec.Code != http.StatusOK {
		t.Errorf("general request = %d, want 200", rec.Code)
	}
}

func TestMiddleware_AnonymousLimitedByClientIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	mw := rl.GeneralMiddleware()

	// 未ログインのリクエストはクライアントIP単位で制限される
	if rec := doRequest(mw, ""); rec.Code != http.StatusOK {
		t.Fatalf("first anonymous request: %d", rec.Code)
	}
	if rec := doRequest(mw, ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second anonymous request = %d, want 429", rec.Code)
	}
	// ログイン済みユーザーはIPリミッターとは独立
	if rec := doRequest(mw, "user-1"); rec.Code != http.StatusOK {
		t.Errorf("authenticated request = %d, want 200", rec.Code)
	}
}
