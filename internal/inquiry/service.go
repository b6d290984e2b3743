package inquiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fnadesk/internal/metrics"
	"github.com/hitoshi/fnadesk/internal/model"
	"github.com/hitoshi/fnadesk/internal/repository"
)

// ConfirmationSender は申請受付メールの送信インターフェース。
type ConfirmationSender interface {
	SendInquiryReceived(ctx context.Context, to, name string, requestedTime time.Time) error
}

// DefaultNotificationTimeout は申請受付メール送信のデフォルトタイムアウト。
const DefaultNotificationTimeout = 15 * time.Second

// Service は面談申請の受付を提供する。
type Service struct {
	repo          repository.InquiryRepository
	mailer        ConfirmationSender
	metrics       metrics.MetricsCollector
	validator     *Validator
	notifyTimeout time.Duration
}

// NewService はServiceを生成する。notifyTimeoutが0以下ならDefaultNotificationTimeoutを使う。
func NewService(
	repo repository.InquiryRepository,
	mailer ConfirmationSender,
	m metrics.MetricsCollector,
	validator *Validator,
	notifyTimeout time.Duration,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotificationTimeout
	}
	return &Service{
		repo:          repo,
		mailer:        mailer,
		metrics:       m,
		validator:     validator,
		notifyTimeout: notifyTimeout,
	}
}

// Submit は申請を検証してpending状態で保存し、確認メールを送信する。
// メール送信の失敗はログとメトリクスに記録するのみで、受付結果には影響しない。
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*model.Inquiry, error) {
	form, requested, err := s.validator.Validate(req)
	if err != nil {
		return nil, err
	}

	inq := &model.Inquiry{
		ID:            uuid.New().String(),
		FormData:      *form,
		RequestedTime: requested,
		Status:        model.InquiryStatusPending,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.Create(ctx, inq); err != nil {
		return nil, fmt.Errorf("failed to create inquiry: %w", err)
	}
	s.metrics.RecordInquirySubmitted()

	slog.Info("inquiry submitted",
		slog.String("inquiry_id", inq.ID),
		slog.Time("requested_time", inq.RequestedTime),
	)

	// 保存済みの申請に対する通知は、リクエストが切断されても送信する
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.mailer.SendInquiryReceived(nctx, form.Email, form.Name, requested); err != nil {
		s.metrics.RecordNotificationFailure(metrics.NotifyInquiryReceived)
		slog.Error("申請受付メールの送信に失敗しました",
			slog.String("inquiry_id", inq.ID),
			slog.String("error", err.Error()),
		)
	}

	return inq, nil
}

// ListPending は受付待ちの申請一覧を返す。
func (s *Service) ListPending(ctx context.Context) ([]*model.Inquiry, error) {
	inquiries, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending inquiries: %w", err)
	}
	if inquiries == nil {
		inquiries = []*model.Inquiry{}
	}
	return inquiries, nil
}
