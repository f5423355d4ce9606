package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/magiclink/internal/app"
	"github.com/templui/magiclink/internal/db"
	"github.com/templui/magiclink/internal/middleware"
	"github.com/templui/magiclink/internal/repository"
	"github.com/templui/magiclink/internal/service"
)

type captureNotifier struct {
	urls []string
	err  error
}

func (n *captureNotifier) Send(ctx context.Context, to, url string) error {
	n.urls = append(n.urls, url)
	return n.err
}

func (n *captureNotifier) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, n.urls)
	return n.urls[len(n.urls)-1]
}

func newTestServer(t *testing.T, limit int) (*httptest.Server, *captureNotifier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	database, err := db.Init(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.RunMigrations(ctx, database.DB, "sqlite"))

	accounts := repository.NewAccountRepository(database)
	tokens := repository.NewLinkTokenRepository(database)
	notifier := &captureNotifier{}

	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()

	issuer := service.NewTokenIssuer(database, accounts, tokens, baseURL, 0)
	verifier := service.NewTokenVerifier(database, accounts, tokens)
	a := &app.App{
		DB:             database,
		AuthService:    service.NewAuthService(issuer, verifier, notifier, accounts),
		SessionService: service.NewSessionService("test-secret", time.Hour, false),
		RateLimiter:    middleware.NewRateLimiter(ctx, limit, time.Minute),
	}
	srv.Config.Handler = SetupRoutes(a)
	srv.Start()
	t.Cleanup(srv.Close)

	return srv, notifier
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func requestLink(t *testing.T, client *http.Client, srv *httptest.Server, email string) *http.Response {
	t.Helper()
	resp, err := client.PostForm(srv.URL+"/auth/magic-link", url.Values{"email": {email}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMagicLinkFlow(t *testing.T) {
	srv, notifier := newTestServer(t, 10)
	client := newClient(t)

	resp := requestLink(t, client, srv, "a@x.com")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "a@x.com", body["email"])
	assert.NotContains(t, body, "token")

	link := notifier.last(t)
	require.True(t, strings.HasPrefix(link, srv.URL+"/auth/magic-link/"))

	resp, err := client.Get(link)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "a@x.com", me["email"])

	// Second use of the same link is rejected
	resp, err = newClient(t).Get(link)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/login?error=link_expired", resp.Header.Get("Location"))
}

func TestVerifyQueryForm(t *testing.T) {
	srv, notifier := newTestServer(t, 10)
	client := newClient(t)

	requestLink(t, client, srv, "q@x.com")
	token := strings.TrimPrefix(notifier.last(t), srv.URL+"/auth/magic-link/")

	resp, err := client.Get(srv.URL + "/verify?token=" + url.QueryEscape(token))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestVerifyUnknownToken(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	for _, path := range []string{"/auth/magic-link/nope", "/verify", "/verify?token=nope"} {
		resp, err := newClient(t).Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login?error=link_invalid", resp.Header.Get("Location"), path)
	}
}

func TestSendMagicLink_JSONBody(t *testing.T) {
	srv, notifier := newTestServer(t, 10)

	resp, err := http.Post(srv.URL+"/auth/magic-link", "application/json", strings.NewReader(`{"email":"J@X.com"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Len(t, notifier.urls, 1)
}

func TestSendMagicLink_InvalidEmail(t *testing.T) {
	srv, notifier := newTestServer(t, 10)

	resp := requestLink(t, newClient(t), srv, "not-an-email")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, service.MessageInvalidEmail, body["error"])
	assert.Empty(t, notifier.urls)
}

func TestSendMagicLink_DeliveryFailure(t *testing.T) {
	srv, notifier := newTestServer(t, 10)
	notifier.err = errors.New("provider down")

	resp := requestLink(t, newClient(t), srv, "a@x.com")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, service.MessageSendFailed, body["error"])
}

func TestSendMagicLink_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, 2)
	client := newClient(t)

	assert.Equal(t, http.StatusAccepted, requestLink(t, client, srv, "a@x.com").StatusCode)
	assert.Equal(t, http.StatusAccepted, requestLink(t, client, srv, "a@x.com").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, requestLink(t, client, srv, "a@x.com").StatusCode)
}

func TestMeRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp, err := http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutClearsSession(t *testing.T) {
	srv, notifier := newTestServer(t, 10)
	client := newClient(t)

	requestLink(t, client, srv, "a@x.com")
	resp, err := client.Get(notifier.last(t))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Post(srv.URL+"/auth/logout", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
