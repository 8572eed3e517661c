package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	return &config.Config{
		Title:     "adminauth",
		DevMode:   true,
		Webserver: config.Webserver{Port: 3000, URL: "http://localhost:3000"},
		DB:        config.DB{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "adminauth.db")},
		Storage:   config.Storage{Driver: "memory"},
		Auth: config.Auth{
			TokenHeader: strategy.DefaultTokenHeader,
			Strategies:  []string{strategy.NameCredentials},
			Credentials: config.Credentials{
				HashConfig: credential.HashConfig{
					MinBcryptCost:    bcrypt.MinCost,
					Argon2Memory:     credential.DefaultMinArgon2Memory,
					Argon2Iterations: 2,
				},
				Backend: "static",
				Users: []credential.User{
					{Username: "admin", Password: string(hash), Scope: []string{"*"}},
				},
			},
			UserTokens: strategy.UserTokenConfig{
				Tokens: []strategy.TokenConfig{
					{Token: "ci-token-0123456789abcdef", User: "ci", Scope: []string{"flows.read"}},
				},
			},
		},
	}
}

func loginStatus(t *testing.T, app *fiber.App, username, password string) (int, string) {
	t.Helper()

	form := url.Values{"client_id": {client.AdminCLI}, "username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body struct {
		AccessToken string `json:"access_token"` //nolint:tagliatelle
	}
	_ = json.Unmarshal(raw, &body)

	return resp.StatusCode, body.AccessToken
}

func me(t *testing.T, app *fiber.App, token string) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)

	defer resp.Body.Close()

	return resp.StatusCode
}

func TestNewStatic(t *testing.T) {
	d, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	assert.Nil(t, d.db, "static users with memory storage need no database")
	assert.Nil(t, d.store)

	status, token := loginStatus(t, d.webService.App, "admin", "password")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusOK, me(t, d.webService.App, token))

	status, _ = loginStatus(t, d.webService.App, "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	// the Authorization header is shared: unknown bearer tokens fall through to the user tokens
	assert.Equal(t, http.StatusOK, me(t, d.webService.App, "ci-token-0123456789abcdef"))
	assert.Equal(t, http.StatusUnauthorized, me(t, d.webService.App, "not-a-token-at-all-xxxx"))
}

func TestNewDatabaseBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "db"
	cfg.Auth.Credentials.Backend = "db"

	conn, err := db.Open(cfg.DB)
	require.NoError(t, err)

	hasher, err := credential.NewHasher(cfg.Auth.Credentials.HashConfig)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, seed(context.Background(), credential.NewDirectory(conn, hasher), &out))

	password := strings.TrimSpace(strings.TrimPrefix(out.String(), "initial admin password: "))
	require.NotEmpty(t, password)

	out.Reset()
	require.NoError(t, seed(context.Background(), credential.NewDirectory(conn, hasher), &out))
	assert.Empty(t, out.String(), "a populated table is not seeded again")

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	d, err := New(context.Background(), cfg)
	require.NoError(t, err)

	status, token := loginStatus(t, d.webService.App, SeedUsername, password)
	require.Equal(t, http.StatusOK, status)
	d.Close()

	// sessions survive a restart through the kv table
	restarted, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(restarted.Close)

	assert.Equal(t, http.StatusOK, me(t, restarted.webService.App, token))
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "redis"

	_, err := New(context.Background(), cfg)
	require.ErrorIs(t, err, config.ErrStorageDriverMismatch)

	_, err = New(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilConfig)
}
