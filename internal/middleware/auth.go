package middleware

import (
	"net/http"

	"github.com/templui/magiclink/internal/ctxkeys"
	"github.com/templui/magiclink/internal/service"
)

// AuthMiddleware checks for the session cookie and adds the account to the
// context if it is valid
func AuthMiddleware(sessionService *service.SessionService, authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.SessionCookieName)
			if err != nil {
				// No cookie, continue without auth
				next.ServeHTTP(w, r)
				return
			}

			accountID, err := sessionService.VerifyJWT(cookie.Value)
			if err != nil {
				// Invalid token, clear cookie and continue
				sessionService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			account, err := authService.AccountByID(r.Context(), accountID)
			if err != nil {
				sessionService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated account
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.Account(r.Context()) == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
