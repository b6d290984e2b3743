package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fnadesk/internal/fna"
	"github.com/hitoshi/fnadesk/internal/middleware"
	"github.com/hitoshi/fnadesk/internal/model"
)

// FNAServiceInterface はFNAハンドラーが必要とするサービスインターフェース。
type FNAServiceInterface interface {
	Load(ctx context.Context, clientID string) (*fna.View, error)
	Advance(ctx context.Context, clientID string, payload json.RawMessage) (*fna.View, error)
	Retreat(ctx context.Context, clientID string) (*fna.View, error)
	ClientSnapshot(ctx context.Context, principal *model.Principal, clientID string) (*fna.SnapshotView, error)
}

// FNAHandler は財務需要分析ウィザードのHTTPハンドラー。
type FNAHandler struct {
	service FNAServiceInterface
}

// NewFNAHandler はFNAHandlerを生成する。
func NewFNAHandler(service FNAServiceInterface) *FNAHandler {
	return &FNAHandler{service: service}
}

type advanceRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// goalsResponse は目標カタログのレスポンス。
type goalsResponse struct {
	Goals []fna.Goal `json:"goals"`
}

// Get はログイン顧客のウィザード状態を返す。
// GET /api/fna
func (h *FNAHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	view, err := h.service.Load(r.Context(), principal.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Advance は現在ステップの回答を保存して次へ進む。
// POST /api/fna/advance {"payload": ...}
func (h *FNAHandler) Advance(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	var req advanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	view, err := h.service.Advance(r.Context(), principal.UserID, req.Payload)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Retreat は1つ前のステップへ戻る。
// POST /api/fna/retreat
func (h *FNAHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	view, err := h.service.Retreat(r.Context(), principal.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Goals は財務目標カタログを返す。
// GET /api/fna/goals
func (h *FNAHandler) Goals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, goalsResponse{Goals: fna.Goals()})
}

// FamilySecuritySummary は家庭保障の入力から需要・保障・缺口を計算して返す。保存はしない。
// POST /api/fna/family-security/summary
func (h *FNAHandler) FamilySecuritySummary(w http.ResponseWriter, r *http.Request) {
	var in fna.SecurityInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}
	writeJSON(w, http.StatusOK, in.Summary())
}

// ClientSnapshot は顧問が担当顧客のFNA回答を閲覧する。
// GET /api/clients/{id}/fna
func (h *FNAHandler) ClientSnapshot(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	view, err := h.service.ClientSnapshot(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
