// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, inquiry, appointment, fna, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド別のバリデーションメッセージ（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, strings.Join(keys, ", "))
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInquiryNotFound   = "INQUIRY_NOT_FOUND"
	ErrCodeProfileMissing    = "PROFILE_MISSING"
	ErrCodeClientExists      = "CLIENT_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInvalidCreds      = "INVALID_CREDENTIALS"
	ErrCodeInvalidResetToken = "INVALID_RESET_TOKEN"
	ErrCodeClientNotAssigned = "CLIENT_NOT_ASSIGNED"
	ErrCodeInvalidStep       = "INVALID_STEP_PAYLOAD"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError はフィールド別メッセージを持つバリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "輸入資料有誤，請修正標示的欄位。",
		Category: "validation",
		Action:   "請依照欄位提示修正後再送出。",
		Fields:   fields,
	}
}

// NewInquiryNotFoundError は申請が存在しないか処理済みの場合のエラーを生成する。
func NewInquiryNotFoundError(inquiryID string) *APIError {
	return &APIError{
		Code:     ErrCodeInquiryNotFound,
		Message:  fmt.Sprintf("Inquiry not found or already processed: %s", inquiryID),
		Category: "inquiry",
		Action:   "請重新整理申請列表。",
	}
}

// NewProfileMissingError は顧問プロフィールが存在しない場合のエラーを生成する。
func NewProfileMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileMissing,
		Message:  "Failed to fetch consultant profile",
		Category: "appointment",
		Action:   "請聯絡管理員建立顧問資料。",
	}
}

// NewClientExistsError は同じメールアドレスのアカウントが既に存在する場合のエラーを生成する。
func NewClientExistsError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeClientExists,
		Message:  fmt.Sprintf("Failed to create client account: %s is already registered", email),
		Category: "appointment",
		Action:   "請確認該客戶是否已有帳號。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "需要登入。",
		Category: "auth",
		Action:   "請先登入。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "您沒有執行此操作的權限。",
		Category: "auth",
		Action:   "請使用顧問帳號登入。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCreds,
		Message:  "電子郵件或密碼錯誤。",
		Category: "auth",
		Action:   "請確認後重新輸入，或使用忘記密碼功能。",
	}
}

// NewInvalidResetTokenError はパスワード再設定トークンが無効な場合のエラーを生成する。
func NewInvalidResetTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetToken,
		Message:  "重設密碼連結無效或已過期。",
		Category: "auth",
		Action:   "請重新申請重設密碼。",
	}
}

// NewClientNotAssignedError は顧問が担当していない顧客を参照した場合のエラーを生成する。
func NewClientNotAssignedError(clientID string) *APIError {
	return &APIError{
		Code:     ErrCodeClientNotAssigned,
		Message:  fmt.Sprintf("找不到您負責的客戶: %s", clientID),
		Category: "fna",
		Action:   "請從顧問儀表板選擇客戶。",
	}
}

// NewInvalidStepPayloadError はウィザードのステップデータが不正な場合のエラーを生成する。
func NewInvalidStepPayloadError(step, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStep,
		Message:  fmt.Sprintf("%s 的資料格式不正確: %s", step, reason),
		Category: "validation",
		Action:   "請檢查輸入內容後再試一次。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "找不到使用者。",
		Category: "auth",
		Action:   "請重新登入。",
	}
}
