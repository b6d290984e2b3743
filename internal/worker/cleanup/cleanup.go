// Package cleanup は期限切れの認証データを削除するジョブを提供する。
// 期限切れセッションと、使用済みまたは期限切れのパスワード再設定トークンを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/fnadesk/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// 削除対象の種類。メトリクスのラベルとログに使う。
const (
	KindSessions    = "sessions"
	KindResetTokens = "password_reset_tokens"
)

// purge は1種類の削除クエリ。$1 に猶予期間のintervalを受け取る。
type purge struct {
	kind  string
	query string
}

var purges = []purge{
	{
		kind:  KindSessions,
		query: `DELETE FROM sessions WHERE expires_at < now() - $1::interval`,
	},
	{
		kind: KindResetTokens,
		query: `DELETE FROM password_reset_tokens
		        WHERE (used_at IS NOT NULL AND used_at < now() - $1::interval)
		           OR expires_at < now() - $1::interval`,
	},
}

// CleanupJob は期限切れセッションと再設定トークンの削除ジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db        Executor
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	GraceDays int // 期限切れ後に残しておく日数（デフォルト: 1）
}

// NewCleanupJob は新しいCleanupJobを生成する。mがnilの場合はメトリクスを記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, m metrics.MetricsCollector) *CleanupJob {
	if m == nil {
		m = metrics.Nop{}
	}
	return &CleanupJob{
		db:        db,
		logger:    logger,
		metrics:   m,
		GraceDays: 1,
	}
}

// Run は全種類の削除を順に実行する。
// 1種類が失敗しても残りは実行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	interval := fmt.Sprintf("%d days", j.GraceDays)

	var firstErr error
	var total int64
	for _, p := range purges {
		if err := ctx.Err(); err != nil {
			return err
		}

		deleted, err := j.exec(ctx, p, interval)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += deleted
		j.metrics.RecordCleanupPurged(p.kind, deleted)
	}

	j.logger.Info("認証データのクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", total),
		slog.Int("grace_days", j.GraceDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return firstErr
}

func (j *CleanupJob) exec(ctx context.Context, p purge, interval string) (int64, error) {
	result, err := j.db.ExecContext(ctx, p.query, interval)
	if err != nil {
		j.logger.Error("クリーンアップの実行に失敗しました",
			slog.String("kind", p.kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%s のクリーンアップに失敗: %w", p.kind, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("kind", p.kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%s の削除件数の取得に失敗: %w", p.kind, err)
	}

	j.logger.Info("期限切れデータを削除しました",
		slog.String("kind", p.kind),
		slog.Int64("deleted_count", deleted),
	)
	return deleted, nil
}
