package auth_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

func TestRequest(t *testing.T) {
	var got *strategy.Request

	app := fiber.New()
	app.Post("/auth/token", func(c fiber.Ctx) error {
		got = authmw.Request(c)

		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/token?scope=read&client_id=query",
		strings.NewReader("client_id=body&username=admin"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer abc")
	req.Header.Set("X-Api-Token", "tok")

	resp, err := app.Test(req, fiber.TestConfig{Timeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NotNil(t, got)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/auth/token", got.Path)
	assert.Equal(t, "abc", got.BearerToken())
	assert.Equal(t, "tok", got.Header.Get("X-Api-Token"))
	assert.Equal(t, "body", got.Form.Get("client_id"), "body fields win over the query string")
	assert.Equal(t, "admin", got.Form.Get("username"))
	assert.Equal(t, "read", got.Form.Get("scope"))
}

func TestDeny(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"forbidden", identity.Fail(identity.Forbidden, "viewer", nil), http.StatusForbidden, `{"error":"forbidden"}`},
		{"bad secret", identity.ErrBadSecret, http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"rate limited", identity.ErrRateLimited, http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"plain error", errors.New("db down"), http.StatusUnauthorized, `{"error":"unauthorized"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c fiber.Ctx) error {
				return authmw.Deny(c, tt.err)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), fiber.TestConfig{Timeout: time.Second})
			require.NoError(t, err)

			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.body, string(raw))
		})
	}
}

func TestIdentityWithoutMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		assert.Nil(t, authmw.Identity(c))
		assert.Empty(t, authmw.IdentityID(c))

		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), fiber.TestConfig{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
