package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/hitoshi/fnadesk/internal/appointment"
	"github.com/hitoshi/fnadesk/internal/fna"
	"github.com/hitoshi/fnadesk/internal/inquiry"
	"github.com/hitoshi/fnadesk/internal/middleware"
	"github.com/hitoshi/fnadesk/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn               func(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	logoutFn               func(ctx context.Context, sessionID string) error
	getCurrentUserFn       func(ctx context.Context, userID string) (*model.User, error)
	capabilitiesFn         func(ctx context.Context, userID string) (model.Capabilities, error)
	requestPasswordResetFn func(ctx context.Context, email string) error
	resetPasswordFn        func(ctx context.Context, token, newPassword string) error
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockAuthService) Capabilities(ctx context.Context, userID string) (model.Capabilities, error) {
	if m.capabilitiesFn != nil {
		return m.capabilitiesFn(ctx, userID)
	}
	return model.NewCapabilities(), nil
}

func (m *mockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, token, newPassword)
	}
	return nil
}

type mockInquiryService struct {
	submitFn      func(ctx context.Context, req *inquiry.SubmitRequest) (*model.Inquiry, error)
	listPendingFn func(ctx context.Context) ([]*model.Inquiry, error)
}

func (m *mockInquiryService) Submit(ctx context.Context, req *inquiry.SubmitRequest) (*model.Inquiry, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return &model.Inquiry{ID: "inquiry-1"}, nil
}

func (m *mockInquiryService) ListPending(ctx context.Context) ([]*model.Inquiry, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx)
	}
	return []*model.Inquiry{}, nil
}

type mockAcceptService struct {
	acceptFn func(ctx context.Context, consultantID, inquiryID string) (*appointment.AcceptResult, error)
}

func (m *mockAcceptService) Accept(ctx context.Context, consultantID, inquiryID string) (*appointment.AcceptResult, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, consultantID, inquiryID)
	}
	return &appointment.AcceptResult{Success: true}, nil
}

type mockAppointmentService struct {
	listForUserFn func(ctx context.Context, userID string) ([]*model.Appointment, error)
	completeFn    func(ctx context.Context, consultantID, state, code string) error
}

func (m *mockAppointmentService) ListForUser(ctx context.Context, userID string) ([]*model.Appointment, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return []*model.Appointment{}, nil
}

func (m *mockAppointmentService) CompleteGoogleAuthorization(ctx context.Context, consultantID, state, code string) error {
	if m.completeFn != nil {
		return m.completeFn(ctx, consultantID, state, code)
	}
	return nil
}

type mockFNAService struct {
	loadFn           func(ctx context.Context, clientID string) (*fna.View, error)
	advanceFn        func(ctx context.Context, clientID string, payload json.RawMessage) (*fna.View, error)
	retreatFn        func(ctx context.Context, clientID string) (*fna.View, error)
	clientSnapshotFn func(ctx context.Context, principal *model.Principal, clientID string) (*fna.SnapshotView, error)
}

func (m *mockFNAService) Load(ctx context.Context, clientID string) (*fna.View, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, clientID)
	}
	return &fna.View{}, nil
}

func (m *mockFNAService) Advance(ctx context.Context, clientID string, payload json.RawMessage) (*fna.View, error) {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, clientID, payload)
	}
	return &fna.View{}, nil
}

func (m *mockFNAService) Retreat(ctx context.Context, clientID string) (*fna.View, error) {
	if m.retreatFn != nil {
		return m.retreatFn(ctx, clientID)
	}
	return &fna.View{}, nil
}

func (m *mockFNAService) ClientSnapshot(ctx context.Context, principal *model.Principal, clientID string) (*fna.SnapshotView, error) {
	if m.clientSnapshotFn != nil {
		return m.clientSnapshotFn(ctx, principal, clientID)
	}
	return &fna.SnapshotView{ClientID: clientID}, nil
}

// compile-time interface check
var (
	_ AuthServiceInterface        = (*mockAuthService)(nil)
	_ InquiryServiceInterface     = (*mockInquiryService)(nil)
	_ AcceptServiceInterface      = (*mockAcceptService)(nil)
	_ AppointmentServiceInterface = (*mockAppointmentService)(nil)
	_ FNAServiceInterface         = (*mockFNAService)(nil)
)

// --- テストヘルパー ---

func consultant() *model.Principal {
	return &model.Principal{UserID: "consultant-1", Capabilities: model.NewCapabilities(model.RoleConsultant)}
}

func client() *model.Principal {
	return &model.Principal{UserID: "client-1", Capabilities: model.NewCapabilities(model.RoleClient)}
}

// newJSONRequest はJSONボディ付きのリクエストを生成する。principalがnilでなければコンテキストに注入する。
func newJSONRequest(method, target, body string, principal *model.Principal) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(middleware.ContextWithPrincipal(req.Context(), principal))
	}
	return req
}

func decodeBody[T any](rec *httptest.ResponseRecorder) (T, error) {
	var v T
	err := json.NewDecoder(rec.Body).Decode(&v)
	return v, err
}
