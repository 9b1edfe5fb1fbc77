package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	total := 0.0
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordAccessDecision_CountsByOutcome はアクセス判定カウンタが
// 許可・拒否の両方で増加することを検証する。
func TestRecordAccessDecision_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAccessDecision(true, "purchased")
	c.RecordAccessDecision(true, "free")
	c.RecordAccessDecision(false, "purchase_required")

	if got := counterValue(t, reg, "kidstore_access_decisions_total"); got != 3 {
		t.Errorf("access_decisions_total = %v, want 3", got)
	}
}

// TestRecordCheckoutSuccess_AddsItemsAndAmount は決済成功の記録で
// 件数と金額が加算されることを検証する。
func TestRecordCheckoutSuccess_AddsItemsAndAmount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckoutSuccess(3, 1500)
	c.RecordCheckoutSuccess(1, 500)

	if got := counterValue(t, reg, "kidstore_checkout_success_total"); got != 2 {
		t.Errorf("checkout_success_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "kidstore_checkout_items_total"); got != 4 {
		t.Errorf("checkout_items_total = %v, want 4", got)
	}
	if got := counterValue(t, reg, "kidstore_checkout_amount_total"); got != 2000 {
		t.Errorf("checkout_amount_total = %v, want 2000", got)
	}
}

// TestRecordSyncMetrics は同期関連メトリクスの記録を検証する。
func TestRecordSyncMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess()
	c.RecordSyncFailure("timeout")
	c.RecordSyncHTTPStatus(503)
	c.RecordSyncLatency(250 * time.Millisecond)

	if got := counterValue(t, reg, "kidstore_sync_success_total"); got != 1 {
		t.Errorf("sync_success_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "kidstore_sync_fail_total"); got != 1 {
		t.Errorf("sync_fail_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "kidstore_sync_http_status_total"); got != 1 {
		t.Errorf("sync_http_status_total = %v, want 1", got)
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsエンドポイントが
// 登録済みメトリクスを返すことを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCheckoutFailure("price_mismatch")

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "kidstore_checkout_fail_total") {
		t.Error("response should contain kidstore_checkout_fail_total")
	}
}
