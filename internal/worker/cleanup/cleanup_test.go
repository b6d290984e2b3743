package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/fnadesk/internal/metrics"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

type execCall struct {
	query string
	args  []interface{}
}

// mockExecutor はクエリごとに結果を返すExecutorのモック。
// resultFnがnilの場合は0件削除として扱う。
type mockExecutor struct {
	calls    []execCall
	resultFn func(query string) (sql.Result, error)
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.calls = append(m.calls, execCall{query: query, args: args})
	if m.resultFn != nil {
		return m.resultFn(query)
	}
	return &fakeResult{}, nil
}

// purgeRecorder はRecordCleanupPurgedの呼び出しを記録する。
type purgeRecorder struct {
	metrics.Nop
	mu     sync.Mutex
	purged map[string]int64
}

func (p *purgeRecorder) RecordCleanupPurged(kind string, count int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.purged == nil {
		p.purged = make(map[string]int64)
	}
	p.purged[kind] += count
}

var _ metrics.MetricsCollector = (*purgeRecorder)(nil)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// rowsByTable はテーブル名ごとの削除件数を返すresultFnを作る。
func rowsByTable(rows map[string]int64) func(string) (sql.Result, error) {
	return func(query string) (sql.Result, error) {
		for table, n := range rows {
			if strings.Contains(query, "FROM "+table) {
				return &fakeResult{rowsAffected: n}, nil
			}
		}
		return &fakeResult{}, nil
	}
}

func TestNewCleanupJob_Defaults(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{}, newTestLogger(&buf), nil)

	if job.GraceDays != 1 {
		t.Errorf("GraceDays = %d, want 1", job.GraceDays)
	}
	if job.metrics == nil {
		t.Error("metrics should default to Nop")
	}
}

func TestCleanupJob_Run_PurgesSessionsAndResetTokens(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{resultFn: rowsByTable(map[string]int64{
		"sessions":              4,
		"password_reset_tokens": 2,
	})}
	rec := &purgeRecorder{}
	job := NewCleanupJob(mock, newTestLogger(&buf), rec)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(mock.calls) != 2 {
		t.Fatalf("ExecContext called %d times, want 2", len(mock.calls))
	}
	if !strings.Contains(mock.calls[0].query, "DELETE FROM sessions") || !strings.Contains(mock.calls[0].query, "expires_at") {
		t.Errorf("first query = %q", mock.calls[0].query)
	}
	if !strings.Contains(mock.calls[1].query, "DELETE FROM password_reset_tokens") || !strings.Contains(mock.calls[1].query, "used_at IS NOT NULL") {
		t.Errorf("second query = %q", mock.calls[1].query)
	}
	if rec.purged[KindSessions] != 4 || rec.purged[KindResetTokens] != 2 {
		t.Errorf("purged = %v", rec.purged)
	}
}

func TestCleanupJob_Run_UsesGraceInterval(t *testing.T) {
	tests := []struct {
		graceDays int
		want      string
	}{
		{1, "1 days"},
		{7, "7 days"},
		{0, "0 days"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			mock := &mockExecutor{}
			job := NewCleanupJob(mock, newTestLogger(&buf), nil)
			job.GraceDays = tt.graceDays

			if err := job.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, c := range mock.calls {
				if len(c.args) != 1 || c.args[0] != tt.want {
					t.Errorf("args = %v, want [%q]", c.args, tt.want)
				}
			}
		})
	}
}

func TestCleanupJob_Run_LogsTotal(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{resultFn: rowsByTable(map[string]int64{"sessions": 3, "password_reset_tokens": 5})}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if last["deleted_count"] != float64(8) {
		t.Errorf("deleted_count = %v, want 8", last["deleted_count"])
	}
	if _, ok := last["duration_ms"]; !ok {
		t.Error("duration_ms should be logged")
	}
}

func TestCleanupJob_Run_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection reset")
	mock := &mockExecutor{resultFn: func(query string) (sql.Result, error) {
		if strings.Contains(query, "FROM sessions") {
			return nil, dbErr
		}
		return &fakeResult{rowsAffected: 1}, nil
	}}
	rec := &purgeRecorder{}
	job := NewCleanupJob(mock, newTestLogger(&buf), rec)

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, dbErr)
	}
	if len(mock.calls) != 2 {
		t.Errorf("ExecContext called %d times, want 2", len(mock.calls))
	}
	if rec.purged[KindResetTokens] != 1 {
		t.Errorf("reset tokens should still be purged, got %v", rec.purged)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Error("failure should be logged at ERROR level")
	}
}

func TestCleanupJob_Run_RowsAffectedError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{resultFn: func(string) (sql.Result, error) {
		return &fakeResult{err: errors.New("not supported")}, nil
	}}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err == nil {
		t.Error("Run() should return an error")
	}
}

func TestCleanupJob_Run_CanceledContext(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("ExecContext should not be called, got %d calls", len(mock.calls))
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
}
