package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/templui/magiclink/internal/ctxkeys"
	"github.com/templui/magiclink/internal/service"
	"github.com/templui/magiclink/internal/validation"
)

// Error codes passed to the login page after a failed verification.
const (
	ErrorCodeLinkExpired = "link_expired"
	ErrorCodeLinkInvalid = "link_invalid"
	ErrorCodeServerError = "server_error"
)

const maxRequestBody = 1 << 20

type authHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
}

func NewAuthHandler(authService *service.AuthService, sessionService *service.SessionService) *authHandler {
	return &authHandler{
		authService:    authService,
		sessionService: sessionService,
	}
}

type sendMagicLinkRequest struct {
	Email string `json:"email"`
}

type sendMagicLinkResponse struct {
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SendMagicLink issues a login link for the submitted email and delivers it.
// Accepts a form post or a JSON body.
func (h *authHandler) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	email, err := readEmail(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, service.MessageInvalidEmail)
		return
	}

	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email); err != nil {
		writeError(w, http.StatusBadRequest, service.MessageInvalidEmail)
		return
	}

	result, err := h.authService.SendMagicLink(r.Context(), email)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, service.UserMessage(err))
		return
	case errors.Is(err, service.ErrNotificationFailed):
		writeError(w, http.StatusBadGateway, service.UserMessage(err))
		return
	default:
		writeError(w, http.StatusInternalServerError, service.UserMessage(err))
		return
	}

	writeJSON(w, http.StatusAccepted, sendMagicLinkResponse{
		Message:   "Check your email for the magic link",
		Email:     result.Account.Email,
		ExpiresAt: result.ExpiresAt,
	})
}

func readEmail(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req sendMagicLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Email, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue("email"), nil
}

// VerifyMagicLink consumes the token from the path or from ?token= and
// starts a session for its account.
func (h *authHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	account, err := h.authService.VerifyMagicLink(r.Context(), token)
	if err != nil {
		slog.Warn("magic link verification failed", "error", err)
		redirectToLogin(w, r, errorCode(err))
		return
	}

	jwtToken, expiry, err := h.sessionService.GenerateJWT(account)
	if err != nil {
		slog.Error("failed to generate JWT", "error", err, "account_id", account.ID)
		redirectToLogin(w, r, ErrorCodeServerError)
		return
	}

	h.sessionService.SetJWTCookie(w, jwtToken, expiry)

	slog.Info("account logged in via magic link", "account_id", account.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func errorCode(err error) string {
	reason, ok := service.InvalidReasonOf(err)
	if !ok {
		return ErrorCodeServerError
	}
	switch reason {
	case service.ReasonExpired, service.ReasonUsed:
		return ErrorCodeLinkExpired
	default:
		return ErrorCodeLinkInvalid
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// Me returns the account bound to the current session.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ctxkeys.Account(r.Context()))
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessionService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
