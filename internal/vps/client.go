package vps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/kidstore/internal/metrics"
	"github.com/hitoshi/kidstore/internal/model"
)

// Snapshot はVPSが配信する全データのスナップショット。
type Snapshot struct {
	Users    []RemoteUser    `json:"users"`
	Packages []RemotePackage `json:"packages"`
}

// RemoteUser はVPS上のユーザーレコード。
type RemoteUser struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	Name             string           `json:"name"`
	Role             string           `json:"role"`
	PurchasedModules []string         `json:"purchasedModules"`
	TotalSpent       float64          `json:"totalSpent"`
	Purchases        []RemotePurchase `json:"purchases"`
}

// RemotePurchase はVPS上の購入レコード。
type RemotePurchase struct {
	ID           string    `json:"id"`
	ModuleID     string    `json:"moduleId"`
	PurchaseDate time.Time `json:"purchaseDate"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	Type         string    `json:"type"`
}

// RemotePackage はVPS上のパッケージレコード。
type RemotePackage struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ContentIDs  []string `json:"contentIds"`
	Price       float64  `json:"price"`
	IsVisible   bool     `json:"isVisible"`
}

// Client はVPSデータストアのHTTPクライアント。
// スナップショットをTTL付きでキャッシュし、ETagによる条件付きGETで
// 帯域を節約する。書き込み操作後はキャッシュを無効化する。
type Client struct {
	baseURL     string
	apiKey      string
	guard       Guard
	collector   metrics.MetricsCollector
	timeout     time.Duration
	maxBodySize int64
	cacheTTL    time.Duration

	mu        sync.Mutex
	cached    *Snapshot
	fetchedAt time.Time
	etag      string
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxBodySize int64
	CacheTTL    time.Duration
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig, guard Guard, collector metrics.MetricsCollector) *Client {
	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		apiKey:      config.APIKey,
		guard:       guard,
		collector:   collector,
		timeout:     config.Timeout,
		maxBodySize: config.MaxBodySize,
		cacheTTL:    config.CacheTTL,
	}
}

// LoadData はVPSからスナップショットを取得する。
// TTL内のキャッシュがあればそれを返す。forceRefreshが真の場合は
// キャッシュを無視して必ず再取得する。
func (c *Client) LoadData(ctx context.Context, forceRefresh bool) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.cached != nil && time.Since(c.fetchedAt) < c.cacheTTL {
		return c.cached, nil
	}

	snapshot, err := c.fetchSnapshot(ctx)
	if err != nil {
		// 取得に失敗しても期限切れキャッシュが残っていればそれで継続する
		if c.cached != nil {
			slog.Warn("スナップショットの取得に失敗したためキャッシュを継続利用します",
				slog.String("error", err.Error()),
			)
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = snapshot
	c.fetchedAt = time.Now()
	return snapshot, nil
}

// fetchSnapshot はVPSの/dataエンドポイントからスナップショットを取得する。
// 呼び出し側でmuを保持していること。
func (c *Client) fetchSnapshot(ctx context.Context) (*Snapshot, error) {
	endpoint := c.baseURL + "/data"
	if err := c.guard.ValidateURL(endpoint); err != nil {
		c.collector.RecordSyncFailure("ssrf_blocked")
		return nil, model.NewSnapshotFetchError(fmt.Sprintf("URL検証に失敗しました: %s", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	c.setHeaders(req)
	if c.etag != "" {
		req.Header.Set("If-None-Match", c.etag)
	}

	start := time.Now()
	resp, err := c.guard.NewSafeClient(c.timeout).Do(req)
	if err != nil {
		c.collector.RecordSyncFailure("request_failed")
		return nil, model.NewSnapshotFetchError(fmt.Sprintf("リクエストに失敗しました: %s", err))
	}
	defer resp.Body.Close()

	c.collector.RecordSyncLatency(time.Since(start))
	c.collector.RecordSyncHTTPStatus(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotModified && c.cached != nil:
		c.fetchedAt = time.Now()
		return c.cached, nil
	case resp.StatusCode != http.StatusOK:
		c.collector.RecordSyncFailure("http_status")
		return nil, model.NewSnapshotFetchError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		c.collector.RecordSyncFailure("read_failed")
		return nil, model.NewSnapshotFetchError(fmt.Sprintf("レスポンスの読み込みに失敗しました: %s", err))
	}
	if int64(len(body)) > c.maxBodySize {
		c.collector.RecordSyncFailure("body_too_large")
		return nil, model.NewSnapshotFetchError(fmt.Sprintf("レスポンスが上限 %d バイトを超えています", c.maxBodySize))
	}

	snapshot := &Snapshot{}
	if err := json.Unmarshal(body, snapshot); err != nil {
		c.collector.RecordSyncFailure("decode_failed")
		return nil, model.NewSnapshotFetchError(fmt.Sprintf("JSONのデコードに失敗しました: %s", err))
	}

	c.etag = resp.Header.Get("ETag")
	return snapshot, nil
}

// GetUsers はスナップショットからユーザー一覧を取得する。
func (c *Client) GetUsers(ctx context.Context) ([]RemoteUser, error) {
	snapshot, err := c.LoadData(ctx, false)
	if err != nil {
		return nil, err
	}
	return snapshot.Users, nil
}

// GetPackages はスナップショットからパッケージ一覧を取得する。
func (c *Client) GetPackages(ctx context.Context) ([]RemotePackage, error) {
	snapshot, err := c.LoadData(ctx, false)
	if err != nil {
		return nil, err
	}
	return snapshot.Packages, nil
}

// AddUser は新規ユーザーをVPSへ書き戻す。
func (c *Client) AddUser(ctx context.Context, user RemoteUser) error {
	return c.post(ctx, "/users", user)
}

// UpdateUser は既存ユーザーをVPSへ書き戻す。
func (c *Client) UpdateUser(ctx context.Context, user RemoteUser) error {
	return c.put(ctx, "/users/"+user.ID, user)
}

// AddPurchase は購入記録をVPSへ書き戻す。
func (c *Client) AddPurchase(ctx context.Context, userID string, purchase RemotePurchase) error {
	return c.post(ctx, "/users/"+userID+"/purchases", purchase)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	return c.write(ctx, http.MethodPost, path, payload)
}

func (c *Client) put(ctx context.Context, path string, payload any) error {
	return c.write(ctx, http.MethodPut, path, payload)
}

func (c *Client) write(ctx context.Context, method, path string, payload any) error {
	endpoint := c.baseURL + path
	if err := c.guard.ValidateURL(endpoint); err != nil {
		return fmt.Errorf("URL検証に失敗しました: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.guard.NewSafeClient(c.timeout).Do(req)
	if err != nil {
		return fmt.Errorf("リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("VPSへの書き込みに失敗しました: HTTPステータス %d", resp.StatusCode)
	}

	// 書き込み後は次回読み込みで必ず再取得させる
	c.mu.Lock()
	c.cached = nil
	c.etag = ""
	c.mu.Unlock()

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Kidstore/1.0 Sync Client")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
