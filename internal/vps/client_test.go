package vps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/kidstore/internal/model"
)

// allowAllGuard はテスト用にhttptestサーバーへの接続を許可するGuard。
type allowAllGuard struct{}

func (allowAllGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (allowAllGuard) ValidateURL(rawURL string) error {
	return nil
}

// nopCollector はメトリクス収集を無視するテスト用実装。
type nopCollector struct{}

func (nopCollector) RecordAccessDecision(granted bool, reason string)    {}
func (nopCollector) RecordCheckoutSuccess(itemCount int, amount float64) {}
func (nopCollector) RecordCheckoutFailure(reason string)                 {}
func (nopCollector) RecordSyncSuccess()                                  {}
func (nopCollector) RecordSyncFailure(reason string)                     {}
func (nopCollector) RecordSyncHTTPStatus(statusCode int)                 {}
func (nopCollector) RecordSyncLatency(duration time.Duration)            {}

func newTestClient(serverURL string, cacheTTL time.Duration) *Client {
	return NewClient(ClientConfig{
		BaseURL:     serverURL,
		APIKey:      "test-key",
		Timeout:     5 * time.Second,
		MaxBodySize: 1 << 20,
		CacheTTL:    cacheTTL,
	}, allowAllGuard{}, nopCollector{})
}

const snapshotJSON = `{
	"users": [
		{"id": "user-1", "email": "a@example.com", "role": "user",
		 "purchasedModules": ["mod-1"], "totalSpent": 500,
		 "purchases": [{"id": "p-1", "moduleId": "mod-1", "amount": 500, "status": "completed", "type": "video"}]}
	],
	"packages": [
		{"id": "pkg-1", "name": "セット", "contentIds": ["mod-1", "mod-2"], "price": 1500, "isVisible": true}
	]
}`

func TestLoadData(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/data" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(snapshotJSON))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Hour)

	snapshot, err := client.LoadData(context.Background(), false)
	if err != nil {
		t.Fatalf("LoadData() error = %v", err)
	}

	if len(snapshot.Users) != 1 || snapshot.Users[0].ID != "user-1" {
		t.Errorf("users = %+v", snapshot.Users)
	}
	if len(snapshot.Users[0].Purchases) != 1 || snapshot.Users[0].Purchases[0].ModuleID != "mod-1" {
		t.Errorf("purchases = %+v", snapshot.Users[0].Purchases)
	}
	if len(snapshot.Packages) != 1 || snapshot.Packages[0].Price != 1500 {
		t.Errorf("packages = %+v", snapshot.Packages)
	}

	// TTL内の2回目はキャッシュが返り、リクエストは発生しない
	if _, err := client.LoadData(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (cached)", requests)
	}

	// forceRefreshはキャッシュを無視する
	if _, err := client.LoadData(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2 after force refresh", requests)
	}
}

func TestLoadData_ETag(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(snapshotJSON))
	}))
	defer server.Close()

	// TTLを0にして毎回再取得させる
	client := newTestClient(server.URL, 0)

	first, err := client.LoadData(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.LoadData(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}

	if requests != 2 {
		t.Fatalf("requests = %d, want 2", requests)
	}
	// 304応答時は前回のスナップショットがそのまま返る
	if first != second {
		t.Error("304 response should return the cached snapshot")
	}
}

func TestLoadData_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Hour)

	_, err := client.LoadData(context.Background(), false)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "SNAPSHOT_FETCH_FAILED" {
		t.Errorf("error = %v, want SNAPSHOT_FETCH_FAILED", err)
	}
}

func TestLoadData_StaleCacheOnFailure(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(snapshotJSON))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)

	if _, err := client.LoadData(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	// サーバー障害時は期限切れキャッシュで継続する
	healthy = false
	snapshot, err := client.LoadData(context.Background(), false)
	if err != nil {
		t.Fatalf("LoadData() should fall back to stale cache, got error %v", err)
	}
	if len(snapshot.Users) != 1 {
		t.Errorf("stale snapshot users = %+v", snapshot.Users)
	}
}

func TestLoadData_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:     server.URL,
		Timeout:     5 * time.Second,
		MaxBodySize: 1024,
		CacheTTL:    time.Hour,
	}, allowAllGuard{}, nopCollector{})

	_, err := client.LoadData(context.Background(), false)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "SNAPSHOT_FETCH_FAILED" {
		t.Errorf("error = %v, want SNAPSHOT_FETCH_FAILED for oversized body", err)
	}
}

func TestAddPurchase_InvalidatesCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		requests++
		w.Write([]byte(snapshotJSON))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Hour)

	if _, err := client.LoadData(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	err := client.AddPurchase(context.Background(), "user-1", RemotePurchase{
		ID: "p-2", ModuleID: "mod-2", Amount: 300, Status: "completed", Type: "video",
	})
	if err != nil {
		t.Fatalf("AddPurchase() error = %v", err)
	}

	// 書き込み後の読み込みは再取得になる
	if _, err := client.LoadData(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if requests != 2 {
		t.Errorf("GET requests = %d, want 2 (cache invalidated)", requests)
	}
}
