package fna

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/fnadesk/internal/autosave"
	"github.com/hitoshi/fnadesk/internal/metrics"
	"github.com/hitoshi/fnadesk/internal/model"
	"github.com/hitoshi/fnadesk/internal/repository"
	"github.com/hitoshi/fnadesk/internal/wizard"
)

// DefaultIdleTimeout は無操作のウィザードセッションを破棄するまでの時間。
const DefaultIdleTimeout = 30 * time.Minute

// summaryKey は家庭保障ステップの回答に付加する計算結果のキー。
const summaryKey = "summary"

// completionSaveTimeout は完了時の即時保存のタイムアウト。
// リクエストが切断されても完了時の保存は続ける。
const completionSaveTimeout = 10 * time.Second

// Config はFNAサービスの設定。
type Config struct {
	QuietPeriod time.Duration  // 自動保存の静止期間
	IdleTimeout time.Duration  // セッションの無操作タイムアウト
	Location    *time.Location // 年齢計算の基準タイムゾーン
}

// View はクライアントに返すウィザードの状態。
type View struct {
	StepIndex   int                        `json:"step_index"`
	Step        string                     `json:"step"`
	Steps       []string                   `json:"steps"`
	Answers     map[string]json.RawMessage `json:"answers"`
	Completed   bool                       `json:"completed"`
	SaveStatus  autosave.State             `json:"save_status"`
	LastUpdated *time.Time                 `json:"last_updated,omitempty"`
}

// SnapshotView は顧問が閲覧する顧客のFNA回答。
type SnapshotView struct {
	ClientID    string                     `json:"client_id"`
	Data        map[string]json.RawMessage `json:"data"`
	Completed   bool                       `json:"completed"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	LastUpdated *time.Time                 `json:"last_updated,omitempty"`
}

// session は顧客1人分のウィザード状態と自動保存。
type session struct {
	clientID string
	ctrl     *wizard.Controller
	saver    *autosave.Debouncer[*model.FnaSnapshot]

	// mu は回答の変更と自動保存への通知の順序を保つ
	mu          sync.Mutex
	closed      bool
	completedAt *time.Time
	loadedAt    *time.Time
	lastAccess  time.Time
}

// Service は顧客ごとのFNAウィザードセッションを管理する。
type Service struct {
	snapshots    repository.FnaSnapshotRepository
	appointments repository.AppointmentRepository
	metrics      metrics.MetricsCollector
	config       Config
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService はServiceを生成する。
func NewService(
	snapshots repository.FnaSnapshotRepository,
	appointments repository.AppointmentRepository,
	m metrics.MetricsCollector,
	config Config,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if config.QuietPeriod <= 0 {
		config.QuietPeriod = autosave.DefaultQuietPeriod
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Service{
		snapshots:    snapshots,
		appointments: appointments,
		metrics:      m,
		config:       config,
		now:          time.Now,
		sessions:     make(map[string]*session),
	}
}

// Load は顧客の現在のウィザード状態を返す。初回は保存済みスナップショットから復元する。
func (s *Service) Load(ctx context.Context, clientID string) (*View, error) {
	var view *View
	err := s.withSession(ctx, clientID, func(sess *session) error {
		view = s.viewLocked(sess)
		return nil
	})
	return view, err
}

// Advance は現在ステップに回答を保存して次へ進む。
// 最終ステップではウィザードの完了処理（complete）が即時保存まで行う。
func (s *Service) Advance(ctx context.Context, clientID string, payload json.RawMessage) (*View, error) {
	var view *View
	err := s.withSession(ctx, clientID, func(sess *session) error {
		step := sess.ctrl.State().Step
		normalized, err := s.normalizeStep(step, payload)
		if err != nil {
			return err
		}

		if _, completed := sess.ctrl.Advance(normalized); !completed {
			sess.saver.Observe(s.snapshotLocked(sess))
		}
		view = s.viewLocked(sess)
		return nil
	})
	return view, err
}

// complete はウィザードの完了コールバック。完了日時を記録し、自動保存を待たずに保存する。
// Advanceの中からsess.muを保持した状態で呼ばれる。
func (s *Service) complete(sess *session, answers map[string]json.RawMessage) {
	now := s.now()
	sess.completedAt = &now
	sess.saver.Observe(&model.FnaSnapshot{
		ClientID:    sess.clientID,
		Data:        answers,
		CompletedAt: sess.completedAt,
	})

	ctx, cancel := context.WithTimeout(context.Background(), completionSaveTimeout)
	defer cancel()
	if err := sess.saver.Flush(ctx); err != nil {
		// 保存失敗はsave_statusで返す
		slog.Error("FNA完了時の保存に失敗しました",
			slog.String("client_id", sess.clientID),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("fna completed", slog.String("client_id", sess.clientID))
}

// Retreat は1つ前のステップへ戻る。
func (s *Service) Retreat(ctx context.Context, clientID string) (*View, error) {
	var view *View
	err := s.withSession(ctx, clientID, func(sess *session) error {
		sess.ctrl.Retreat()
		view = s.viewLocked(sess)
		return nil
	})
	return view, err
}

// ClientSnapshot は顧問が担当顧客のFNA回答を取得する。
// 顧問はその顧客との面談がある場合のみ閲覧でき、管理者は制限なし。
func (s *Service) ClientSnapshot(ctx context.Context, principal *model.Principal, clientID string) (*SnapshotView, error) {
	if principal == nil {
		return nil, model.NewUnauthorizedError()
	}
	if !principal.Capabilities.Has(model.RoleAdmin) {
		if !principal.Capabilities.Has(model.RoleConsultant) {
			return nil, model.NewForbiddenError()
		}
		ok, err := s.appointments.HasClient(ctx, principal.UserID, clientID)
		if err != nil {
			return nil, fmt.Errorf("failed to check consultant client: %w", err)
		}
		if !ok {
			return nil, model.NewClientNotAssignedError(clientID)
		}
	}

	// 編集中のセッションがあれば未保存分も含めて返す
	s.mu.Lock()
	sess := s.sessions[clientID]
	s.mu.Unlock()
	if sess != nil {
		sess.mu.Lock()
		closed := sess.closed
		var view *SnapshotView
		if !closed {
			snap := s.snapshotLocked(sess)
			view = &SnapshotView{
				ClientID:    clientID,
				Data:        snap.Data,
				Completed:   snap.CompletedAt != nil,
				CompletedAt: snap.CompletedAt,
				LastUpdated: lastUpdated(sess),
			}
		}
		sess.mu.Unlock()
		if view != nil {
			return view, nil
		}
	}

	snap, err := s.snapshots.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fna snapshot: %w", err)
	}
	if snap == nil {
		return &SnapshotView{ClientID: clientID, Data: map[string]json.RawMessage{}}, nil
	}
	updated := snap.LastUpdated
	return &SnapshotView{
		ClientID:    clientID,
		Data:        snap.Data,
		Completed:   snap.CompletedAt != nil,
		CompletedAt: snap.CompletedAt,
		LastUpdated: &updated,
	}, nil
}

// EvictIdle は無操作時間がIdleTimeoutを超えたセッションを保存してから破棄する。
// 保存に失敗したセッションは残す。破棄した件数を返す。
func (s *Service) EvictIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.config.IdleTimeout)
	evicted := 0
	for _, sess := range s.liveSessions() {
		sess.mu.Lock()
		if sess.closed || sess.lastAccess.After(cutoff) {
			sess.mu.Unlock()
			continue
		}
		if err := s.closeLocked(ctx, sess); err != nil {
			slog.Error("アイドルセッションの保存に失敗しました",
				slog.String("client_id", sess.clientID),
				slog.String("error", err.Error()),
			)
			sess.mu.Unlock()
			continue
		}
		sess.mu.Unlock()
		evicted++
	}
	return evicted
}

// FlushAll は全セッションの未保存分を保存して破棄する。シャットダウン時に使用する。
func (s *Service) FlushAll(ctx context.Context) error {
	var firstErr error
	for _, sess := range s.liveSessions() {
		sess.mu.Lock()
		if !sess.closed {
			if err := s.closeLocked(ctx, sess); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to flush fna session %s: %w", sess.clientID, err)
			}
		}
		sess.mu.Unlock()
	}
	return firstErr
}

// RunEvictor はintervalごとにEvictIdleを実行する。ctxのキャンセルで終了する。
func (s *Service) RunEvictor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.config.IdleTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ctx); n > 0 {
				slog.Info("idle fna sessions evicted", slog.Int("count", n))
			}
		}
	}
}

// withSession は顧客のセッションをロックしてfnを実行する。
// 破棄済みのセッションを掴んだ場合は取り直す。
func (s *Service) withSession(ctx context.Context, clientID string, fn func(*session) error) error {
	for {
		sess, err := s.getOrLoad(ctx, clientID)
		if err != nil {
			return err
		}

		if ok, err := s.runLocked(sess, fn); ok {
			return err
		}
	}
}

// runLocked はsess.muを保持してfnを実行する。破棄済みの場合はok=falseを返す。
func (s *Service) runLocked(sess *session, fn func(*session) error) (bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return false, nil
	}
	defer func() { sess.lastAccess = s.now() }()
	return true, fn(sess)
}

func (s *Service) getOrLoad(ctx context.Context, clientID string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[clientID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	snap, err := s.snapshots.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fna snapshot: %w", err)
	}
	created := s.newSession(clientID, snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	// 読み込み中に他のリクエストが先に登録した場合はそちらを使う
	if existing, ok := s.sessions[clientID]; ok {
		created.saver.Stop()
		return existing, nil
	}
	s.sessions[clientID] = created
	return created, nil
}

func (s *Service) newSession(clientID string, snap *model.FnaSnapshot) *session {
	sess := &session{clientID: clientID, lastAccess: s.now()}

	var answers map[string]json.RawMessage
	if snap != nil {
		answers = snap.Data
		sess.completedAt = snap.CompletedAt
		updated := snap.LastUpdated
		sess.loadedAt = &updated
	}
	sess.ctrl = wizard.Restore(wizard.FNASteps, answers, func(answers map[string]json.RawMessage) {
		s.complete(sess, answers)
	})

	sess.saver = autosave.New(s.save, autosave.Options{
		QuietPeriod: s.config.QuietPeriod,
		OnError: func(err error) {
			slog.Error("FNAの自動保存に失敗しました",
				slog.String("client_id", clientID),
				slog.String("error", err.Error()),
			)
		},
	})
	return sess
}

// save はスナップショットを永続化する。自動保存から呼ばれる。
func (s *Service) save(ctx context.Context, snap *model.FnaSnapshot) error {
	start := time.Now()
	snap.LastUpdated = s.now()
	err := s.snapshots.Upsert(ctx, snap)
	s.metrics.RecordAutosave(err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to save fna snapshot: %w", err)
	}
	return nil
}

// closeLocked は保留中の変更を保存し、セッションをマップから外す。sess.muを保持して呼ぶこと。
func (s *Service) closeLocked(ctx context.Context, sess *session) error {
	if err := sess.saver.Flush(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.sessions[sess.clientID] == sess {
		delete(s.sessions, sess.clientID)
	}
	s.mu.Unlock()

	sess.closed = true
	sess.saver.Stop()
	return nil
}

func (s *Service) liveSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Service) snapshotLocked(sess *session) *model.FnaSnapshot {
	return &model.FnaSnapshot{
		ClientID:    sess.clientID,
		Data:        sess.ctrl.Answers(),
		CompletedAt: sess.completedAt,
	}
}

func (s *Service) viewLocked(sess *session) *View {
	st := sess.ctrl.State()
	status := sess.saver.Status()
	state := status.State
	if state == autosave.StateIdle && sess.loadedAt != nil {
		state = autosave.StateSaved
	}
	return &View{
		StepIndex:   st.Index,
		Step:        st.Step,
		Steps:       st.Steps,
		Answers:     st.Answers,
		Completed:   sess.completedAt != nil,
		SaveStatus:  state,
		LastUpdated: lastUpdated(sess),
	}
}

func lastUpdated(sess *session) *time.Time {
	if saved := sess.saver.Status().LastSavedAt; !saved.IsZero() {
		return &saved
	}
	return sess.loadedAt
}

// normalizeStep はステップごとに回答を検証・正規化する。
func (s *Service) normalizeStep(step string, payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, model.NewInvalidStepPayloadError(step, "invalid JSON")
	}

	switch step {
	case wizard.StepFamilyMembers:
		var members []FamilyMember
		if err := json.Unmarshal(payload, &members); err != nil {
			return nil, model.NewInvalidStepPayloadError(step, "expected an array of family members")
		}
		normalized, err := NormalizeMembers(members, s.now().In(s.config.Location))
		if err != nil {
			return nil, model.NewInvalidStepPayloadError(step, err.Error())
		}
		return json.Marshal(normalized)

	case wizard.StepFinancialGoals:
		ids, err := goalIDs(payload)
		if err != nil {
			return nil, model.NewInvalidStepPayloadError(step, err.Error())
		}
		if len(ids) == 0 {
			return nil, model.NewInvalidStepPayloadError(step, "select at least one goal")
		}
		if err := ValidateGoalSelection(ids); err != nil {
			return nil, model.NewInvalidStepPayloadError(step, err.Error())
		}
		return payload, nil

	case wizard.StepFamilySecurity:
		var in SecurityInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, model.NewInvalidStepPayloadError(step, "expected family security amounts")
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
			return nil, model.NewInvalidStepPayloadError(step, "expected an object")
		}
		summary, err := json.Marshal(in.Summary())
		if err != nil {
			return nil, fmt.Errorf("failed to encode summary: %w", err)
		}
		fields[summaryKey] = summary
		return json.Marshal(fields)
	}

	return payload, nil
}

// goalIDs は目標IDの配列、またはidを持つオブジェクトの配列から選択順のIDを取り出す。
func goalIDs(payload json.RawMessage) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(payload, &ids); err == nil {
		return ids, nil
	}
	var goals []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &goals); err != nil {
		return nil, fmt.Errorf("expected an array of goal ids")
	}
	ids = make([]string, len(goals))
	for i, g := range goals {
		ids[i] = g.ID
	}
	return ids, nil
}
