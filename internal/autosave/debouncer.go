// Package autosave は静止期間付きの自動保存（デバウンス）を提供する。
// 最後の変更から静止期間が経過した時点の最新スナップショットだけを保存し、
// 保存処理は1件ずつ直列に実行する。
package autosave

import (
	"context"
	"sync"
	"time"
)

// DefaultQuietPeriod はデフォルトの静止期間。
const DefaultQuietPeriod = 1000 * time.Millisecond

// defaultSaveTimeout は1回の保存処理のタイムアウト。
const defaultSaveTimeout = 10 * time.Second

// SaveFunc はスナップショットを永続化する関数。
type SaveFunc[T any] func(ctx context.Context, snapshot T) error

// State は保存状態を表す。
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSaving  State = "saving"
	StateSaved   State = "saved"
	StateError   State = "error"
)

// Status は直近の保存状態。
type Status struct {
	State       State
	LastSavedAt time.Time
	LastError   error
}

// Options はDebouncerの設定。
type Options struct {
	QuietPeriod time.Duration   // 静止期間（0以下ならDefaultQuietPeriod）
	SaveTimeout time.Duration   // 1回の保存のタイムアウト（0以下なら10秒）
	OnError     func(err error) // 保存失敗時のコールバック（リトライはしない）
	OnSaved     func(time.Time) // 保存成功時のコールバック
}

// Debouncer は最新スナップショットを静止期間後に保存する。
type Debouncer[T any] struct {
	save SaveFunc[T]
	opts Options

	mu         sync.Mutex
	pending    T
	hasPending bool
	gen        uint64
	timer      *time.Timer
	stopped    bool
	status     Status

	// saveMu は保存処理を直列化する
	saveMu sync.Mutex
}

// New はDebouncerを生成する。
func New[T any](save SaveFunc[T], opts Options) *Debouncer[T] {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	return &Debouncer[T]{
		save:   save,
		opts:   opts,
		status: Status{State: StateIdle},
	}
}

// Observe は最新スナップショットを記録し、静止期間タイマーを再始動する。
// Stop後の呼び出しは無視する。
func (d *Debouncer[T]) Observe(snapshot T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending = snapshot
	d.hasPending = true
	d.gen++
	if d.status.State != StateSaving {
		d.status.State = StatePending
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.opts.QuietPeriod, func() {
		d.fire(gen)
	})
}

// fire はタイマー満了時に呼ばれる。満了までに新しい変更があった場合は何もしない。
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.SaveTimeout)
	defer cancel()
	_ = d.saveLatest(ctx, gen)
}

// Flush は保留中のスナップショットを直ちに保存する。保留がなければ何もしない。
func (d *Debouncer[T]) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	return d.saveLatest(ctx, anyGen)
}

// Stop は保留中のタイマーを取り消し、以降のObserveを無視する。
// 保留中のスナップショットは破棄される。必要であれば先にFlushを呼ぶこと。
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending は未保存のスナップショットがあるかを返す。
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// Status は直近の保存状態を返す。
func (d *Debouncer[T]) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// anyGen は世代を問わず保存することを表す。タイマーの世代は1から始まる。
const anyGen uint64 = 0

// saveLatest は保存ロックを取得した時点の最新スナップショットを保存する。
// genがanyGen以外の場合、保存ロック待ちの間に新しい変更があれば保存しない。
// その変更は自身のタイマー満了で保存される。
func (d *Debouncer[T]) saveLatest(ctx context.Context, gen uint64) error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	if !d.hasPending || (gen != anyGen && gen != d.gen) {
		d.mu.Unlock()
		return nil
	}
	snapshot := d.pending
	d.hasPending = false
	d.status.State = StateSaving
	d.mu.Unlock()

	err := d.save(ctx, snapshot)

	d.mu.Lock()
	now := time.Now()
	if err != nil {
		d.status.State = StateError
		d.status.LastError = err
	} else {
		d.status.LastSavedAt = now
		d.status.LastError = nil
		d.status.State = StateSaved
	}
	if d.hasPending {
		d.status.State = StatePending
	}
	d.mu.Unlock()

	if err != nil {
		if d.opts.OnError != nil {
			d.opts.OnError(err)
		}
		return err
	}
	if d.opts.OnSaved != nil {
		d.opts.OnSaved(now)
	}
	return nil
}
