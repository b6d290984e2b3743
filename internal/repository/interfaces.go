// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/fnadesk/internal/model"
)

// 面談予約トランザクションで発生する競合エラー。
var (
	// ErrSlotTaken は顧問の時間帯が既に埋まっている（排他制約違反）ことを表す。
	ErrSlotTaken = errors.New("consultant time slot already taken")
	// ErrInquiryClaimed は申請が他の顧問に先に受け付けられたことを表す。
	ErrInquiryClaimed = errors.New("inquiry already claimed")
	// ErrEmailTaken は同じメールアドレスのユーザーが既に存在することを表す。
	ErrEmailTaken = errors.New("email already registered")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// RoleRepository はロール割り当ての永続化インターフェース。
type RoleRepository interface {
	// ListByUserID は指定ユーザーのロール一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Role, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PasswordResetRepository はパスワード再設定トークンの永続化インターフェース。
type PasswordResetRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.PasswordResetToken) error

	// Consume は未使用かつ有効期限内のトークンを使用済みにし、ユーザーIDを返す。
	// 該当するトークンがない場合は空文字を返す。
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// SaveGoogleTokens は顧問のGoogle認可トークンを保存する。
	SaveGoogleTokens(ctx context.Context, id string, tokens *model.GoogleTokens) error
}

// InquiryRepository は面談申請の永続化インターフェース。
type InquiryRepository interface {
	// Create は申請をpending状態で保存する。
	Create(ctx context.Context, inquiry *model.Inquiry) error

	// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Inquiry, error)

	// ListPending はpending状態の申請を作成日時の新しい順に返す。
	ListPending(ctx context.Context) ([]*model.Inquiry, error)
}

// AppointmentRepository は面談の永続化インターフェース。
type AppointmentRepository interface {
	// ListOverlapping は顧問の面談のうち [start, end] と重なるものを返す。
	// 判定は端点を含む（existing.start <= end AND existing.end >= start）。
	ListOverlapping(ctx context.Context, consultantID string, start, end time.Time) ([]*model.Appointment, error)

	// ListByUser は顧客または顧問として参加する面談を開始日時順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Appointment, error)

	// HasClient は顧問と顧客の間に面談が存在するかを返す。
	HasClient(ctx context.Context, consultantID, clientID string) (bool, error)

	// Book は顧客アカウント作成・面談作成・申請のclaimedへの更新を1トランザクションで行う。
	// 競合時はErrSlotTaken、ErrInquiryClaimed、ErrEmailTakenのいずれかを返し、何も作成しない。
	Book(ctx context.Context, booking *model.Booking) error
}

// FnaSnapshotRepository はFNAスナップショットの永続化インターフェース。
type FnaSnapshotRepository interface {
	// FindByClientID は顧客のスナップショットを取得する。見つからない場合はnilを返す。
	FindByClientID(ctx context.Context, clientID string) (*model.FnaSnapshot, error)

	// Upsert はclient_idをキーにスナップショットを作成または更新する。
	Upsert(ctx context.Context, snapshot *model.FnaSnapshot) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
