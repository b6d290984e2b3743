// Package appointment は顧問による面談申請の受付処理を提供する。
package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/fnadesk/internal/auth"
	"github.com/hitoshi/fnadesk/internal/mailer"
	"github.com/hitoshi/fnadesk/internal/metrics"
	"github.com/hitoshi/fnadesk/internal/model"
	"github.com/hitoshi/fnadesk/internal/repository"
)

// ConflictMessage は顧問の時間帯が既に埋まっている場合のメッセージ。
const ConflictMessage = "此時段您已有其他預約"

const meetingLinkPrefix = "https://meet.google.com/"

// Authorizer は顧問のGoogle認可を扱うインターフェース。
type Authorizer interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*model.GoogleTokens, error)
}

// Notifier は面談確定時の通知メール送信インターフェース。
type Notifier interface {
	SendClientConfirmation(ctx context.Context, c mailer.Confirmation) error
	SendConsultantNotification(ctx context.Context, c mailer.Confirmation) error
}

// AcceptResult は受付処理の結果。
// 認可が必要な場合と時間帯が競合する場合は何も作成せずに返る。
type AcceptResult struct {
	Success     bool               `json:"success,omitempty"`
	NeedsAuth   bool               `json:"needsAuth,omitempty"`
	AuthURL     string             `json:"authUrl,omitempty"`
	Conflict    bool               `json:"conflict,omitempty"`
	Message     string             `json:"message,omitempty"`
	Appointment *model.Appointment `json:"appointment,omitempty"`
}

// Config は受付処理の設定。
type Config struct {
	// NotificationTimeout は通知メール送信全体の上限時間。
	NotificationTimeout time.Duration
}

// Service は面談受付のビジネスロジックを提供する。
type Service struct {
	inquiries    repository.InquiryRepository
	profiles     repository.ProfileRepository
	appointments repository.AppointmentRepository
	authorizer   Authorizer
	notifier     Notifier
	metrics      metrics.MetricsCollector
	config       Config

	now            func() time.Time
	newPassword    func() string
	newMeetingLink func() string
}

// NewService はServiceを生成する。
func NewService(
	inquiries repository.InquiryRepository,
	profiles repository.ProfileRepository,
	appointments repository.AppointmentRepository,
	authorizer Authorizer,
	notifier Notifier,
	m metrics.MetricsCollector,
	config Config,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if config.NotificationTimeout <= 0 {
		config.NotificationTimeout = 15 * time.Second
	}
	return &Service{
		inquiries:    inquiries,
		profiles:     profiles,
		appointments: appointments,
		authorizer:   authorizer,
		notifier:     notifier,
		metrics:      m,
		config:       config,
		now:          time.Now,
		newPassword:  auth.GenerateTemporaryPassword,
		newMeetingLink: func() string {
			return meetingLinkPrefix + uuid.New().String()[:10]
		},
	}
}

// Accept は顧問が申請を受け付け、顧客アカウントと面談を作成する。
//
// 顧問がGoogle認可を済ませていない場合はNeedsAuth、時間帯が既存の面談と重なる場合は
// Conflictを返し、いずれも何も変更しない。アカウント作成・面談作成・申請の更新は
// 1トランザクションで行い、確定後に顧客と顧問へ並行して通知する。
func (s *Service) Accept(ctx context.Context, consultantID, inquiryID string) (*AcceptResult, error) {
	result, err := s.accept(ctx, consultantID, inquiryID)
	switch {
	case err != nil:
		s.metrics.RecordAcceptOutcome(metrics.AcceptError)
	case result.NeedsAuth:
		s.metrics.RecordAcceptOutcome(metrics.AcceptNeedsAuth)
	case result.Conflict:
		s.metrics.RecordAcceptOutcome(metrics.AcceptConflict)
	default:
		s.metrics.RecordAcceptOutcome(metrics.AcceptSuccess)
	}
	return result, err
}

func (s *Service) accept(ctx context.Context, consultantID, inquiryID string) (*AcceptResult, error) {
	inq, err := s.inquiries.FindByID(ctx, inquiryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find inquiry: %w", err)
	}
	if inq == nil || inq.Status != model.InquiryStatusPending {
		return nil, model.NewInquiryNotFoundError(inquiryID)
	}

	consultant, err := s.profiles.FindByID(ctx, consultantID)
	if err != nil {
		return nil, fmt.Errorf("failed to find consultant profile: %w", err)
	}
	if consultant == nil {
		return nil, model.NewProfileMissingError()
	}

	if consultant.GoogleTokens == nil {
		return &AcceptResult{
			NeedsAuth: true,
			AuthURL:   s.authorizer.AuthorizationURL(consultantID),
		}, nil
	}

	start := inq.RequestedTime
	end := start.Add(model.AppointmentDuration)

	overlapping, err := s.appointments.ListOverlapping(ctx, consultantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check schedule: %w", err)
	}
	if len(overlapping) > 0 {
		return &AcceptResult{Conflict: true, Message: ConflictMessage}, nil
	}

	password := s.newPassword()
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	client := &model.User{
		ID:               uuid.New().String(),
		Email:            inq.FormData.Email,
		FullName:         inq.FormData.Name,
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	appt := &model.Appointment{
		ID:           uuid.New().String(),
		ClientID:     client.ID,
		ConsultantID: consultantID,
		InquiryID:    inq.ID,
		StartTime:    start,
		EndTime:      end,
		Status:       model.AppointmentStatusConfirmed,
		MeetingLink:  s.newMeetingLink(),
		CreatedAt:    now,
	}

	err = s.appointments.Book(ctx, &model.Booking{Client: client, Appointment: appt, InquiryID: inq.ID})
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		return &AcceptResult{Conflict: true, Message: ConflictMessage}, nil
	case errors.Is(err, repository.ErrInquiryClaimed):
		return nil, model.NewInquiryNotFoundError(inquiryID)
	case errors.Is(err, repository.ErrEmailTaken):
		return nil, model.NewClientExistsError(client.Email)
	case err != nil:
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}

	slog.Info("appointment booked",
		slog.String("appointment_id", appt.ID),
		slog.String("consultant_id", consultantID),
		slog.String("client_id", client.ID),
		slog.String("inquiry_id", inq.ID),
	)

	s.notify(ctx, mailer.Confirmation{
		ClientName:        client.FullName,
		ClientEmail:       client.Email,
		ConsultantName:    consultant.FullName,
		ConsultantEmail:   consultant.Email,
		StartTime:         start,
		MeetingLink:       appt.MeetingLink,
		TemporaryPassword: password,
	})

	return &AcceptResult{Success: true, Appointment: appt}, nil
}

// notify は顧客と顧問への通知を並行して送信し、両方の完了を待つ。
// リクエストがキャンセルされても送信は打ち切らない。失敗はログとメトリクスのみ。
func (s *Service) notify(ctx context.Context, c mailer.Confirmation) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NotificationTimeout)
	defer cancel()

	var g errgroup.Group
	send := func(kind string, fn func(context.Context, mailer.Confirmation) error) {
		g.Go(func() error {
			if err := fn(nctx, c); err != nil {
				s.metrics.RecordNotificationFailure(kind)
				slog.Error("面談確定メールの送信に失敗しました",
					slog.String("kind", kind),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
	}
	send(metrics.NotifyClient, s.notifier.SendClientConfirmation)
	send(metrics.NotifyConsultant, s.notifier.SendConsultantNotification)

	if err := g.Wait(); err != nil {
		slog.Warn("some notifications were not delivered", slog.String("error", err.Error()))
	}
}

// ListForUser はユーザーが顧客または顧問として参加する面談を返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*model.Appointment, error) {
	appointments, err := s.appointments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	return appointments, nil
}

// CompleteGoogleAuthorization は認可コードを交換し、トークンを顧問プロフィールに保存する。
// stateは認可URL生成時の顧問IDと一致しなければならない。
func (s *Service) CompleteGoogleAuthorization(ctx context.Context, consultantID, state, code string) error {
	if state == "" || state != consultantID {
		return model.NewForbiddenError()
	}
	if code == "" {
		return model.NewValidationError(map[string]string{"code": "缺少授權碼"})
	}

	tokens, err := s.authorizer.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := s.profiles.SaveGoogleTokens(ctx, consultantID, tokens); err != nil {
		return fmt.Errorf("failed to save google tokens: %w", err)
	}

	slog.Info("google calendar authorized", slog.String("consultant_id", consultantID))
	return nil
}
