package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/fnadesk/internal/appointment"
	"github.com/hitoshi/fnadesk/internal/inquiry"
	"github.com/hitoshi/fnadesk/internal/model"
)

// InquiryServiceInterface は申請ハンドラーが必要とするサービスインターフェース。
type InquiryServiceInterface interface {
	Submit(ctx context.Context, req *inquiry.SubmitRequest) (*model.Inquiry, error)
	ListPending(ctx context.Context) ([]*model.Inquiry, error)
}

// AcceptServiceInterface は申請受付に必要なサービスインターフェース。
type AcceptServiceInterface interface {
	Accept(ctx context.Context, consultantID, inquiryID string) (*appointment.AcceptResult, error)
}

// InquiryHandler は面談申請の送信・一覧・受付のHTTPハンドラー。
type InquiryHandler struct {
	inquiries InquiryServiceInterface
	accepter  AcceptServiceInterface
}

// NewInquiryHandler はInquiryHandlerを生成する。
func NewInquiryHandler(inquiries InquiryServiceInterface, accepter AcceptServiceInterface) *InquiryHandler {
	return &InquiryHandler{inquiries: inquiries, accepter: accepter}
}

// submitResponse は申請送信の成功レスポンス。
type submitResponse struct {
	Success   bool   `json:"success"`
	InquiryID string `json:"inquiry_id"`
}

// errorOnlyResponse は申請系エンドポイントの失敗レスポンス。
// 申請フォームとの互換のため、統一フォーマットではなく{error}を返す。
type errorOnlyResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type acceptRequest struct {
	InquiryID string `json:"inquiry_id"`
}

// inquiryResponse は顧問向け申請一覧の1件。
type inquiryResponse struct {
	ID            string            `json:"id"`
	FormData      model.InquiryForm `json:"form_data"`
	RequestedTime time.Time         `json:"requested_time"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

const genericSubmitError = "送出失敗，請稍後再試。"

// Submit は公開フォームからの面談申請を受け付ける。
// POST /api/inquiries
func (h *InquiryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req inquiry.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorOnlyResponse{
			Error: newInvalidRequestError().Message,
			Code:  model.ErrCodeValidation,
		})
		return
	}

	created, err := h.inquiries.Submit(r.Context(), &req)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, http.StatusBadRequest, errorOnlyResponse{
				Error:  apiErr.Message,
				Code:   apiErr.Code,
				Fields: apiErr.Fields,
			})
			return
		}
		slog.Error("failed to submit inquiry", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorOnlyResponse{Error: genericSubmitError})
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{Success: true, InquiryID: created.ID})
}

// ListPending は受付待ちの申請一覧を返す。
// GET /api/inquiries
func (h *InquiryHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	inquiries, err := h.inquiries.ListPending(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]inquiryResponse, len(inquiries))
	for i, in := range inquiries {
		out[i] = inquiryResponse{
			ID:            in.ID,
			FormData:      in.FormData,
			RequestedTime: in.RequestedTime,
			Status:        string(in.Status),
			CreatedAt:     in.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Accept は顧問が申請を受け付ける。
// 認可要求・時間帯競合・成功はいずれも200で結果の形が異なる。失敗は400の{error}。
// POST /api/inquiries/accept
func (h *InquiryHandler) Accept(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	var req acceptRequest
	if err := decodeJSON(w, r, &req); err != nil || req.InquiryID == "" {
		writeJSON(w, http.StatusBadRequest, errorOnlyResponse{
			Error: "inquiry_id is required",
			Code:  model.ErrCodeValidation,
		})
		return
	}

	result, err := h.accepter.Accept(r.Context(), principal.UserID, req.InquiryID)
	if err != nil {
		resp := errorOnlyResponse{Error: "Failed to accept inquiry"}
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			resp.Error = apiErr.Message
			resp.Code = apiErr.Code
		} else {
			slog.Error("failed to accept inquiry",
				slog.String("inquiry_id", req.InquiryID),
				slog.String("error", err.Error()),
			)
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
