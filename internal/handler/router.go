package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/fnadesk/internal/metrics"
	"github.com/hitoshi/fnadesk/internal/middleware"
	"github.com/hitoshi/fnadesk/internal/model"
)

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	TrustProxy        bool // X-Forwarded-For等からクライアントIPを取る
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 申請・面談
	InquiryService     InquiryServiceInterface
	AcceptService      AcceptServiceInterface
	AppointmentService AppointmentServiceInterface

	// FNA
	FNAService FNAServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS
//	  公開ルート:   → RateLimit(Public) → CSRF
//	  認証ルート:   → Session → RateLimit(General) → CSRF [→ RequireCapability]
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	inquiryHandler := NewInquiryHandler(deps.InquiryService, deps.AcceptService)
	appointmentHandler := NewAppointmentHandler(deps.AppointmentService, deps.AuthConfig.BaseURL)
	fnaHandler := NewFNAHandler(deps.FNAService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

	csrf := middleware.NewCSRFMiddleware(deps.CSRF)

	// --- 認証不要のルート（IPごとのレート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.PublicMiddleware())
		r.Use(csrf)

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/password/forgot", authHandler.ForgotPassword)
		r.Post("/auth/password/reset", authHandler.ResetPassword)
		r.Post("/api/inquiries", inquiryHandler.Submit)
	})

	r.With(csrf).Post("/auth/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	// セッション検証をCSRF検証より先に行い、未認証には401を返す
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		r.Get("/auth/me", authHandler.Me)

		r.Route("/api/fna", func(r chi.Router) {
			r.Get("/", fnaHandler.Get)
			r.Get("/goals", fnaHandler.Goals)
			r.Post("/advance", fnaHandler.Advance)
			r.Post("/retreat", fnaHandler.Retreat)
			r.Post("/family-security/summary", fnaHandler.FamilySecuritySummary)
		})

		r.Get("/api/appointments", appointmentHandler.List)

		// 顧問・管理者のみ
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(model.RoleConsultant, model.RoleAdmin))

			r.Get("/auth/google/calendar/callback", appointmentHandler.GoogleCallback)
			r.Get("/api/inquiries", inquiryHandler.ListPending)
			r.Post("/api/inquiries/accept", inquiryHandler.Accept)
			r.Get("/api/clients/{id}/fna", fnaHandler.ClientSnapshot)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
