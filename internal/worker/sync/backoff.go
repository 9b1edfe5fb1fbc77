// Package sync はリモートVPSスナップショットの定期同期を提供する。
// スケジューラ、インポーター、リトライ/バックオフ戦略を含む。
package sync

import "time"

// SyncResult はHTTPステータスコードに基づく同期結果の分類。
type SyncResult int

const (
	// SyncResultOK は取得成功（200）。
	SyncResultOK SyncResult = iota
	// SyncResultNotModified はコンテンツ未変更（304）。
	SyncResultNotModified
	// SyncResultStop は同期停止が必要なステータス（404/410/401/403）。
	// 認証エラーやエンドポイント消失はリトライしても回復しない。
	SyncResultStop
	// SyncResultBackoff はバックオフが必要なステータス（429/5xx）。
	SyncResultBackoff
	// SyncResultUnknown は未知のステータスコード。
	SyncResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = 1 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（30分）。
	maxBackoff = 30 * time.Minute
)

// ClassifyHTTPStatus はHTTPステータスコードを同期結果に分類する。
func ClassifyHTTPStatus(statusCode int) SyncResult {
	switch {
	case statusCode == 200:
		return SyncResultOK
	case statusCode == 304:
		return SyncResultNotModified
	case statusCode == 404 || statusCode == 410:
		return SyncResultStop
	case statusCode == 401 || statusCode == 403:
		return SyncResultStop
	case statusCode == 429:
		return SyncResultBackoff
	case statusCode >= 500:
		return SyncResultBackoff
	default:
		return SyncResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大30分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
