package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/fnadesk/internal/security"
)

// Confirmation は面談確定時の通知内容。
// TemporaryPasswordは顧客宛てメールにのみ記載し、どこにも保存しない。
type Confirmation struct {
	ClientName        string
	ClientEmail       string
	ConsultantName    string
	ConsultantEmail   string
	StartTime         time.Time
	MeetingLink       string
	TemporaryPassword string
}

// Notifier は業務イベントごとの通知メールを組み立てて送信する。
type Notifier struct {
	sender      Sender
	sanitizer   security.EmailSanitizer
	fromAddress string
	loc         *time.Location
}

// NewNotifier はNotifierを生成する。locはメール本文の日時表示に使用する。
func NewNotifier(sender Sender, sanitizer security.EmailSanitizer, fromAddress string, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		sender:      sender,
		sanitizer:   sanitizer,
		fromAddress: fromAddress,
		loc:         loc,
	}
}

// SendInquiryReceived は申請受付の確認メールを申請者に送信する。
func (n *Notifier) SendInquiryReceived(ctx context.Context, to, name string, requestedTime time.Time) error {
	data := struct {
		Name          string
		RequestedTime time.Time
	}{
		Name:          n.sanitizer.StripTags(name),
		RequestedTime: requestedTime.In(n.loc),
	}
	return n.send(ctx, intakeSenderName, to, subjectInquiryReceived, "inquiry_received", data)
}

// SendClientConfirmation は面談確定とログイン情報を顧客に送信する。
func (n *Notifier) SendClientConfirmation(ctx context.Context, c Confirmation) error {
	return n.send(ctx, accountSenderName, c.ClientEmail, subjectClientConfirmed, "client_confirmed", n.localize(c))
}

// SendConsultantNotification は新規面談の通知を顧問に送信する。
func (n *Notifier) SendConsultantNotification(ctx context.Context, c Confirmation) error {
	return n.send(ctx, accountSenderName, c.ConsultantEmail, subjectConsultantNotified, "consultant_notified", n.localize(c))
}

// SendPasswordReset はパスワード再設定リンクを送信する。
func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	data := struct {
		Name     string
		ResetURL string
	}{
		Name:     n.sanitizer.StripTags(name),
		ResetURL: resetURL,
	}
	return n.send(ctx, accountSenderName, to, subjectPasswordReset, "password_reset", data)
}

func (n *Notifier) localize(c Confirmation) Confirmation {
	c.ClientName = n.sanitizer.StripTags(c.ClientName)
	c.ConsultantName = n.sanitizer.StripTags(c.ConsultantName)
	c.StartTime = c.StartTime.In(n.loc)
	return c
}

func (n *Notifier) send(ctx context.Context, senderName, to, subject, tmpl string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl, err)
	}

	body := n.sanitizer.SanitizeHTML(buf.String())
	msg := &Message{
		From:    fmt.Sprintf("%s <%s>", senderName, n.fromAddress),
		To:      []string{to},
		Subject: subject,
		HTML:    body,
		Text:    PlainText(body),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", tmpl, err)
	}
	return nil
}
