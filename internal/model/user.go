// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（顧客・顧問・管理者）を表す。
type User struct {
	ID               string
	Email            string
	FullName         string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PasswordResetToken はパスワード再設定トークンを表す。
// 平文トークンは保存せず、SHA-256ハッシュのみを保持する。
type PasswordResetToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Role はユーザーに割り当てられるロールを表す。
type Role string

const (
	// RoleClient は顧客ロール。
	RoleClient Role = "client"
	// RoleConsultant は財務顧問ロール。
	RoleConsultant Role = "consultant"
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "admin"
)

// Capabilities はユーザーが持つロールの集合。
// セッションミドルウェアで1回だけ読み込み、リクエストコンテキストで引き回す。
type Capabilities map[Role]bool

// NewCapabilities はロール一覧からCapabilitiesを生成する。
func NewCapabilities(roles ...Role) Capabilities {
	c := make(Capabilities, len(roles))
	for _, r := range roles {
		c[r] = true
	}
	return c
}

// Has は指定ロールを持つかを返す。
func (c Capabilities) Has(role Role) bool {
	return c[role]
}

// HasAny は指定ロールのいずれかを持つかを返す。
func (c Capabilities) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if c[r] {
			return true
		}
	}
	return false
}

// IsStaff は顧問または管理者であるかを返す。
func (c Capabilities) IsStaff() bool {
	return c.HasAny(RoleConsultant, RoleAdmin)
}

// Roles はロール一覧を固定順（client, consultant, admin）で返す。
func (c Capabilities) Roles() []Role {
	var roles []Role
	for _, r := range []Role{RoleClient, RoleConsultant, RoleAdmin} {
		if c[r] {
			roles = append(roles, r)
		}
	}
	return roles
}

// Principal は認証済みリクエストの主体を表す。
type Principal struct {
	UserID       string
	Capabilities Capabilities
}
