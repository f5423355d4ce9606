package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/templui/magiclink/internal/app"
	"github.com/templui/magiclink/internal/handler"
	"github.com/templui/magiclink/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.SessionService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// ============================================================================
	// AUTH
	// ============================================================================

	// Issuing links sends email, so it is rate limited per client IP
	rateLimiter := middleware.RateLimitAuth(app.RateLimiter)

	mux.HandleFunc("POST /auth/magic-link", rateLimiter(auth.SendMagicLink))
	mux.HandleFunc("GET /auth/magic-link/{token}", auth.VerifyMagicLink)
	mux.HandleFunc("GET /verify", auth.VerifyMagicLink)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.HandleFunc("GET /auth/me", middleware.RequireAuth(auth.Me))

	// RequestLogging sits closest to the mux so it sees the matched pattern
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AuthMiddleware(app.SessionService, app.AuthService),
		middleware.RequestLogging,
	)
}
