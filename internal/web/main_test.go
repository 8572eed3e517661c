package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/logger"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
)

const testTimeout = 5 * time.Second

func newTestConfig() *config.Config {
	return &config.Config{
		Title:     "adminauth",
		DevMode:   true,
		Webserver: config.Webserver{URL: "http://localhost", Port: 3000},
		Metrics:   config.Metrics{Enabled: true, Path: "/metrics"},
		Auth: config.Auth{
			Strategies:   []string{strategy.NameCredentials},
			DefaultScope: []string{"read"},
		},
	}
}

func newTestApp(t *testing.T, extra ...strategy.Strategy) *fiber.App {
	t.Helper()

	return newTestAppWith(t, newTestConfig(), extra...)
}

func newTestAppWith(t *testing.T, cfg *config.Config, extra ...strategy.Strategy) *fiber.App {
	t.Helper()

	hasher, err := credential.NewHasher(credential.HashConfig{MinBcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	lookup, err := credential.Static([]credential.User{
		{Username: "admin", Password: string(hash), Scope: []string{"*"}},
		{Username: "viewer", Password: string(hash), Scope: []string{"read"}},
	}, hasher)
	require.NoError(t, err)

	store, err := credential.NewStore(lookup, hasher)
	require.NoError(t, err)

	clients, err := client.New([]client.Client{
		{ID: client.AdminUI, Secret: client.NoSecret},
		{ID: "automation", Secret: "s3cret"},
	})
	require.NoError(t, err)

	sessions := session.New(session.Config{})
	limiter := ratelimit.New(ratelimit.Config{})

	strategies := append([]strategy.Strategy{
		strategy.NewBearer(sessions, false),
		strategy.NewCredentials(store, limiter),
	}, extra...)

	svc := auth.New(sessions, clients, strategy.NewRegistry(strategies...), auth.WithLimiter(limiter))
	svc.Start(context.Background())
	t.Cleanup(svc.Close)

	srv, err := web.New(cfg, svc)
	require.NoError(t, err)

	return srv.App
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := app.Test(req, fiber.TestConfig{Timeout: testTimeout})
	require.NoError(t, err)

	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body))
	}

	return resp, body
}

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	return req
}

func get(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	return req
}

func login(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	resp, body := do(t, app, tokenRequest(url.Values{
		"client_id":  {client.AdminUI},
		"grant_type": {"password"},
		"username":   {username},
		"password":   {"password"},
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	return token
}

func TestTokenEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, tokenRequest(url.Values{
		"client_id": {client.AdminUI},
		"username":  {"admin"},
		"password":  {"password"},
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, handler.TokenTypeBearer, body["token_type"])
	assert.NotEmpty(t, body["access_token"])
	assert.InDelta(t, float64(session.DefaultExpiryTime), body["expires_in"], 2)
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

	tests := []struct {
		name string
		form url.Values
	}{
		{"wrong password", url.Values{"client_id": {client.AdminUI}, "username": {"admin"}, "password": {"nope"}}},
		{"unknown user", url.Values{"client_id": {client.AdminUI}, "username": {"ghost"}, "password": {"password"}}},
		{"unknown client", url.Values{"client_id": {"other"}, "username": {"admin"}, "password": {"password"}}},
		{"bad client secret", url.Values{
			"client_id": {"automation"}, "client_secret": {"wrong"}, "username": {"admin"}, "password": {"password"},
		}},
		{"unsupported grant", url.Values{
			"client_id": {client.AdminUI}, "grant_type": {"client_credentials"}, "username": {"admin"}, "password": {"password"},
		}},
		{"scope not granted", url.Values{
			"client_id": {client.AdminUI}, "username": {"viewer"}, "password": {"password"}, "scope": {"flows.write"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, tokenRequest(tt.form))
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, map[string]any{"error": "unauthorized"}, body)
		})
	}
}

func TestConfidentialClient(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, tokenRequest(url.Values{
		"client_id":     {"automation"},
		"client_secret": {"s3cret"},
		"username":      {"admin"},
		"password":      {"password"},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequirePermission(t *testing.T) {
	app := newTestApp(t)

	admin := login(t, app, "admin")
	viewer := login(t, app, "viewer")

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		body   map[string]any
	}{
		{"me without token", "/auth/me", "", http.StatusUnauthorized, map[string]any{"error": "unauthorized"}},
		{"me with forged token", "/auth/me", "forged", http.StatusUnauthorized, map[string]any{"error": "unauthorized"}},
		{"settings as viewer", "/settings", viewer, http.StatusOK, nil},
		{"settings as admin", "/settings", admin, http.StatusOK, nil},
		{"settings without token", "/settings", "", http.StatusUnauthorized, map[string]any{"error": "unauthorized"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, get(tt.path, tt.token))
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.body != nil {
				assert.Equal(t, tt.body, body)
			}
		})
	}

	resp, body := do(t, app, get("/auth/me", viewer))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "viewer", body["id"])
	assert.Equal(t, "read", body["scope"])
	assert.Equal(t, strategy.NameBearer, body["strategy"])
}

func TestForbiddenScope(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, tokenRequest(url.Values{
		"client_id": {client.AdminUI},
		"username":  {"admin"},
		"password":  {"password"},
		"scope":     {"flows.read"},
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token, _ := body["access_token"].(string)

	resp, body = do(t, app, get("/settings", token))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "forbidden"}, body)

	resp, body = do(t, app, get("/auth/me", token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "flows.read", body["scope"])
}

func TestRevoke(t *testing.T) {
	app := newTestApp(t)

	token := login(t, app, "admin")

	revoke := func() *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/auth/revoke", strings.NewReader(url.Values{"token": {token}}.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

		resp, _ := do(t, app, req)

		return resp
	}

	assert.Equal(t, http.StatusOK, revoke().StatusCode)
	assert.Equal(t, http.StatusOK, revoke().StatusCode, "revoking twice is fine")

	resp, _ := do(t, app, get("/auth/me", token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRevokeIdentitySessions(t *testing.T) {
	app := newTestApp(t)

	admin := login(t, app, "admin")
	viewer := login(t, app, "viewer")
	other := login(t, app, "viewer")

	del := func(identity, token string) (*http.Response, map[string]any) {
		req := get("/auth/sessions/"+identity, token)
		req.Method = http.MethodDelete

		return do(t, app, req)
	}

	resp, body := del("admin", viewer)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "forbidden"}, body)

	resp, _ = do(t, app, get("/auth/me", admin))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a denied call revokes nothing")

	resp, body = del("viewer", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"identity": "viewer", "revoked": float64(2)}, body)

	for _, token := range []string{viewer, other} {
		resp, _ = do(t, app, get("/auth/me", token))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body = del("nobody", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["revoked"])

	resp, _ = del("viewer", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPromptsAndHealth(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, get("/auth/login", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{map[string]any{"type": "credentials"}}, body["prompts"])

	resp, _ = do(t, app, get(web.CheckAlivePath, ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, get("/metrics", ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, get(strategy.DefaultStartPath, ""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "oauth2 routes exist only when the strategy is enabled")
}

func TestRateLimitOverHTTP(t *testing.T) {
	app := newTestApp(t)

	bad := url.Values{"client_id": {client.AdminUI}, "username": {"admin"}, "password": {"nope"}}
	for range ratelimit.DefaultMaxAttempts {
		resp, _ := do(t, app, tokenRequest(bad))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := do(t, app, tokenRequest(url.Values{
		"client_id": {client.AdminUI},
		"username":  {"admin"},
		"password":  {"password"},
	}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "blocked even with the right password")
	assert.Equal(t, map[string]any{"error": "unauthorized"}, body)
}

func TestOAuth2Routes(t *testing.T) {
	provider, err := strategy.NewOAuth2(context.Background(), strategy.OAuth2Config{
		Enabled:     true,
		ClientID:    "adminauth",
		RedirectURL: "http://localhost/auth/strategy/callback",
		AuthURL:     "https://idp.example.com/authorize",
		TokenURL:    "https://idp.example.com/token",
	})
	require.NoError(t, err)

	app := newTestApp(t, provider)

	resp, _ := do(t, app, get(strategy.DefaultStartPath, ""))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", location.Host)
	assert.Equal(t, "adminauth", location.Query().Get("client_id"))
	assert.NotEmpty(t, location.Query().Get("state"))

	resp, body := do(t, app, get(strategy.DefaultCallbackPath+"?code=x&state=unknown", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "unauthorized"}, body)

	resp, _ = do(t, app, get(strategy.DefaultCallbackPath+"?error=access_denied", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, body = do(t, app, get("/auth/login", ""))
	prompts, _ := body["prompts"].([]any)
	require.Len(t, prompts, 2)
	assert.Equal(t, map[string]any{
		"type":  "strategy",
		"id":    strategy.NameOAuth2,
		"label": strategy.DefaultOAuth2Label,
		"url":   strategy.DefaultStartPath,
	}, prompts[1])
}

func TestAccessLogHasNoTokens(t *testing.T) {
	dir := t.TempDir()

	cfg := newTestConfig()
	cfg.Log.File = logger.LogFile{Enabled: true, Path: dir, AccessLog: "access.log"}

	app := newTestAppWith(t, cfg)
	token := login(t, app, "admin")

	resp, _ := do(t, app, get("/auth/me?access_token="+url.QueryEscape(token), ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "query tokens are not accepted")

	resp, _ = do(t, app, get("/auth/me?page=1", token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	code := "SplxlOBeZQQYbYS6WxSbIAcode"
	_, _ = do(t, app, get("/auth/strategy/callback?code="+code+"&state=af0ifjsldkjstate", ""))

	raw, err := os.ReadFile(filepath.Join(dir, "access.log"))
	require.NoError(t, err)

	accessLog := string(raw)
	assert.Contains(t, accessLog, "/auth/me?access_token="+logger.Token(token))
	assert.Contains(t, accessLog, "/auth/me?page=1")
	assert.NotContains(t, accessLog, token)
	assert.NotContains(t, accessLog, code)
	assert.NotContains(t, accessLog, "af0ifjsldkjstate")
}
