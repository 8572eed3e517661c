// Package logout revokes tokens.
package logout

import (
	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

// Path revokes a token.
const Path = "/auth/revoke"

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	svc *auth.Service
}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, svc *auth.Service) error {
	if app == nil || cfg == nil || svc == nil {
		return handler.ErrNilACS
	}

	s.cfg = cfg
	s.svc = svc

	app.Post(Path, s.Revoke)

	return nil
}

// Revoke ends the session of the token posted in the body, or of the bearer token when none is
// posted. Unknown tokens are ignored so the call is idempotent.
func (s *Service) Revoke(c fiber.Ctx) error {
	token := string(c.Request().PostArgs().Peek("token"))
	if token == "" {
		token = authmw.Request(c).BearerToken()
	}

	if token != "" {
		s.svc.Logout(c.Context(), token)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")

	return c.SendStatus(fiber.StatusOK)
}
