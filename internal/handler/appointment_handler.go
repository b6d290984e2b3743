package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/fnadesk/internal/model"
)

// AppointmentServiceInterface は面談一覧とGoogle認可に必要なサービスインターフェース。
type AppointmentServiceInterface interface {
	ListForUser(ctx context.Context, userID string) ([]*model.Appointment, error)
	CompleteGoogleAuthorization(ctx context.Context, consultantID, state, code string) error
}

// AppointmentHandler は面談とGoogle認可コールバックのHTTPハンドラー。
type AppointmentHandler struct {
	service AppointmentServiceInterface
	baseURL string
}

// NewAppointmentHandler はAppointmentHandlerを生成する。
func NewAppointmentHandler(service AppointmentServiceInterface, baseURL string) *AppointmentHandler {
	return &AppointmentHandler{service: service, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// List はログインユーザーの面談一覧を返す。
// GET /api/appointments
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	appointments, err := h.service.ListForUser(r.Context(), principal.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointments)
}

// GoogleCallback はGoogle認可のコールバックを処理し、顧問の申請一覧へ戻す。
// GET /auth/google/calendar/callback?code=xxx&state=yyy
func (h *AppointmentHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	q := r.URL.Query()
	if q.Get("error") != "" {
		// 利用者が同意画面で拒否した場合
		http.Redirect(w, r, h.baseURL+"/consultant/inquiries?google_auth=denied", http.StatusFound)
		return
	}

	if err := h.service.CompleteGoogleAuthorization(r.Context(), principal.UserID, q.Get("state"), q.Get("code")); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, h.baseURL+"/consultant/inquiries", http.StatusFound)
}
