// Package settings exposes the non-secret runtime settings of the identity layer.
package settings

import (
	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

// Path of the handler.
const Path = "/settings"

// Response is the settings view.
type Response struct {
	Title             string            `json:"title"`
	Strategies        []string          `json:"strategies"`
	Prompts           []strategy.Prompt `json:"prompts"`
	AnonymousEnabled  bool              `json:"anonymousEnabled"`
	DefaultScope      []string          `json:"defaultScope"`
	SessionExpiryTime int               `json:"sessionExpiryTime"`
	ActiveSessions    int               `json:"activeSessions"`
	RateLimitWindowMs int64             `json:"rateLimitWindowMs"`
	RateLimitAttempts int               `json:"rateLimitMaxAttempts"`
}

// Service is the settings handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	svc *auth.Service
}

// Init initializes the settings handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, svc *auth.Service) error {
	if app == nil || cfg == nil || svc == nil {
		return handler.ErrNilACS
	}

	s.cfg = cfg
	s.svc = svc

	app.Get(Path, authmw.RequirePermission(svc, auth.PermSettingsRead), s.Get)

	return nil
}

// Get returns the settings.
func (s *Service) Get(c fiber.Ctx) error {
	return c.JSON(Response{
		Title:             s.cfg.Title,
		Strategies:        s.cfg.Auth.Strategies,
		Prompts:           s.svc.Prompts(),
		AnonymousEnabled:  s.cfg.Auth.AnonymousEnabled,
		DefaultScope:      s.cfg.Auth.DefaultScope,
		SessionExpiryTime: s.cfg.Auth.ExpiryTime,
		ActiveSessions:    s.svc.Sessions().Len(),
		RateLimitWindowMs: s.cfg.Auth.RateLimit.WindowMs,
		RateLimitAttempts: s.cfg.Auth.RateLimit.MaxAttempts,
	})
}
