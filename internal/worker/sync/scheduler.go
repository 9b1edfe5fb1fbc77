package sync

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotImporter はスナップショット取り込みの実行インターフェース。
type SnapshotImporter interface {
	// Import はスナップショットを1回取り込む。
	Import(ctx context.Context, forceRefresh bool) (*ImportStats, error)
}

// Scheduler はスナップショット同期の定期実行を行う。
// 固定間隔のティッカーで取り込みを実行し、連続失敗時は
// 指数バックオフで次回実行を遅らせる。
type Scheduler struct {
	importer          SnapshotImporter
	logger            *slog.Logger
	consecutiveErrors int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(importer SnapshotImporter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		importer: importer,
		logger:   logger,
	}
}

// Start は指定間隔で同期スケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.runCycle(ctx)

	timer := time.NewTimer(s.nextDelay(interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-timer.C:
			s.runCycle(ctx)
			timer.Reset(s.nextDelay(interval))
		}
	}
}

// RunOnce は同期を1回だけ実行する。管理APIからの手動実行用。
func (s *Scheduler) RunOnce(ctx context.Context) (*ImportStats, error) {
	return s.importer.Import(ctx, true)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, err := s.importer.Import(ctx, true); err != nil {
		s.consecutiveErrors++
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", s.consecutiveErrors),
		)
		return
	}
	s.consecutiveErrors = 0
}

// nextDelay は次回実行までの遅延を返す。
// 連続失敗時はバックオフ遅延が通常間隔を上回る場合にそちらを採用する。
func (s *Scheduler) nextDelay(interval time.Duration) time.Duration {
	if s.consecutiveErrors == 0 {
		return interval
	}
	backoff := CalculateBackoff(s.consecutiveErrors - 1)
	if backoff > interval {
		return backoff
	}
	return interval
}
