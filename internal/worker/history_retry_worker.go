package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-booking/internal/pkg/logger"
)

// HistoryRetrier は保存に失敗した予約履歴を再送するインターフェース
type HistoryRetrier interface {
	RetryPendingHistory(ctx context.Context) (int, error)
	PendingHistory() int
}

// HistoryRetryWorker は一定間隔で予約履歴の再送を行うワーカー
type HistoryRetryWorker struct {
	retrier  HistoryRetrier
	interval time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// DefaultRetryInterval は間隔が指定されなかった場合の再送間隔
const DefaultRetryInterval = 30 * time.Second

// NewHistoryRetryWorker は新しいワーカーを作成
// interval が 0 以下なら DefaultRetryInterval を使う
func NewHistoryRetryWorker(r HistoryRetrier, interval time.Duration) *HistoryRetryWorker {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return &HistoryRetryWorker{
		retrier:  r,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はワーカーを開始（停止するまでブロックする）
// 停止時に残っている履歴があれば最後に1回だけ再送する
func (w *HistoryRetryWorker) Start(ctx context.Context) {
	logger.Info("予約履歴の再送ワーカー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("予約履歴の再送ワーカー停止（コンテキストキャンセル）")
			w.flush()
			return
		case <-w.stopCh:
			logger.Info("予約履歴の再送ワーカー停止（シグナル受信）")
			w.flush()
			return
		case <-ticker.C:
			w.retry(ctx)
		}
	}
}

// Stop はワーカーを停止し、終了を待つ
func (w *HistoryRetryWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *HistoryRetryWorker) retry(ctx context.Context) {
	log := logger.Get()
	if w.retrier.PendingHistory() == 0 {
		return
	}

	saved, err := w.retrier.RetryPendingHistory(ctx)
	if saved > 0 {
		log.Info("予約履歴を再送", zap.Int("count", saved))
	}
	if err != nil {
		log.Warn("予約履歴の再送に一部失敗",
			zap.Int("remaining", w.retrier.PendingHistory()),
			zap.Error(err),
		)
	}
}

func (w *HistoryRetryWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.retry(ctx)

	if remaining := w.retrier.PendingHistory(); remaining > 0 {
		logger.Error("保存できなかった予約履歴が残っています", zap.Int("remaining", remaining))
	}
}
