// Package oauth2 runs the browser side of the external provider login.
package oauth2

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

// Service is the OAuth2 handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	svc      *auth.Service
	provider *strategy.OAuth2
}

// Init registers the start and callback routes when the provider strategy is enabled.
func (s *Service) Init(app *fiber.App, cfg *config.Config, svc *auth.Service) error {
	if app == nil || cfg == nil || svc == nil {
		return handler.ErrNilACS
	}

	s.cfg = cfg
	s.svc = svc
	s.provider = svc.OAuth2()

	if s.provider == nil {
		log.Info().Msg("oauth2 login is disabled by configuration")

		return nil
	}

	app.Get(strategy.DefaultStartPath, s.Start)
	app.Get(s.provider.CallbackPath(), s.Callback)

	return nil
}

// Start redirects to the provider authorization endpoint.
func (s *Service) Start(c fiber.Ctx) error {
	target, err := s.provider.AuthCodeURL()
	if err != nil {
		log.Error().Err(err).Msg("failed to build authorization url")

		return fiber.ErrInternalServerError
	}

	return c.Redirect().Status(fiber.StatusFound).To(target)
}

// Callback completes the login for the first-party admin UI and returns its token.
func (s *Service) Callback(c fiber.Ctx) error {
	sess, err := s.svc.Login(c.Context(), &auth.LoginInput{
		ClientID:      client.AdminUI,
		Strategy:      strategy.NameOAuth2,
		Code:          c.Query("code"),
		State:         c.Query("state"),
		ProviderError: c.Query("error"),
	})
	if err != nil {
		return authmw.Deny(c, identity.Fail(identity.Unauthenticated, "", err))
	}

	return handler.SendToken(c, sess, time.Now())
}
