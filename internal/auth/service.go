// Package auth はメールアドレス・パスワード認証、セッション管理、パスワード再設定を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/fnadesk/internal/model"
	"github.com/hitoshi/fnadesk/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// ErrSessionNotFound はセッションが存在しないか期限切れであることを表す。
var ErrSessionNotFound = errors.New("session not found or expired")

// ResetMailer はパスワード再設定メールの送信インターフェース。
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge    int           // セッション有効期間（秒）
	PasswordResetTTL time.Duration // 再設定トークンの有効期間
	BaseURL          string        // 再設定リンクの生成に使用
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	roleRepo    repository.RoleRepository
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	mailer      ResetMailer
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	sessionRepo repository.SessionRepository,
	resetRepo repository.PasswordResetRepository,
	mailer ResetMailer,
	config ServiceConfig,
) *Service {
	if config.PasswordResetTTL <= 0 {
		config.PasswordResetTTL = time.Hour
	}
	return &Service{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		sessionRepo: sessionRepo,
		resetRepo:   resetRepo,
		mailer:      mailer,
		config:      config,
		now:         time.Now,
	}
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワード不一致の場合は同じエラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Info("sign-in rejected", slog.String("user_id", user.ID))
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return session, user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser は指定ユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Authenticate はセッションIDから認証済み主体（ユーザーIDとロール）を解決する。
// セッションが無効な場合はErrSessionNotFoundを返す。
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*model.Principal, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	caps, err := s.Capabilities(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return &model.Principal{UserID: session.UserID, Capabilities: caps}, nil
}

// Capabilities はユーザーのロール集合を返す。
func (s *Service) Capabilities(ctx context.Context, userID string) (model.Capabilities, error) {
	roles, err := s.roleRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	return model.NewCapabilities(roles...), nil
}

// RequestPasswordReset は再設定リンクをメール送信する。
// アカウントの有無を推測させないため、ユーザーが存在しない場合もnilを返す。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Info("password reset requested for unknown email")
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	now := s.now()
	if err := s.resetRepo.Create(ctx, &model.PasswordResetToken{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.PasswordResetTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	resetURL := s.config.BaseURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.FullName, resetURL); err != nil {
		slog.Error("パスワード再設定メールの送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ResetPassword はトークンを検証してパスワードを更新し、ユーザーの全セッションを破棄する。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len([]rune(newPassword)) < MinPasswordLength {
		return model.NewValidationError(map[string]string{
			"password": fmt.Sprintf("密碼至少需要 %d 個字元", MinPasswordLength),
		})
	}
	if token == "" {
		return model.NewInvalidResetTokenError()
	}

	userID, err := s.resetRepo.Consume(ctx, hashToken(token), s.now())
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if userID == "" {
		return model.NewInvalidResetTokenError()
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	slog.Info("password reset completed", slog.String("user_id", userID))
	return nil
}

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// GenerateTemporaryPassword は新規顧客アカウント用の一時パスワードを生成する。
func GenerateTemporaryPassword() string {
	return uuid.New().String()
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateToken は暗号的に安全な32バイトのトークンを16進文字列で生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken はトークンのSHA-256ハッシュを返す。
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
