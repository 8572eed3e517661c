// Package sessions lets user administrators end the sessions of an identity.
package sessions

import (
	"net/url"

	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

// Path revokes every session of the identity named by the last segment.
const Path = "/auth/sessions/:identity"

// Response reports how many sessions were ended.
type Response struct {
	Identity string `json:"identity"`
	Revoked  int    `json:"revoked"`
}

// Service is the sessions handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	svc *auth.Service
}

// Init initializes the sessions handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, svc *auth.Service) error {
	if app == nil || cfg == nil || svc == nil {
		return handler.ErrNilACS
	}

	s.cfg = cfg
	s.svc = svc

	app.Delete(Path, authmw.RequirePermission(svc, auth.PermUsersWrite), s.Delete)

	return nil
}

// Delete revokes the sessions. An identity without sessions reports zero.
func (s *Service) Delete(c fiber.Ctx) error {
	id, err := url.PathUnescape(c.Params("identity"))
	if err != nil || id == "" {
		return fiber.ErrBadRequest
	}

	c.Set(fiber.HeaderCacheControl, "no-store")

	return c.JSON(Response{Identity: id, Revoked: s.svc.RevokeIdentity(c.Context(), id)})
}
