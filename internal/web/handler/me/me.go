// Package me tells a caller who they are.
package me

import (
	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

// Path of the handler.
const Path = "/auth/me"

// Response describes the authenticated caller.
type Response struct {
	ID       string      `json:"id"`
	Scope    scope.Scope `json:"scope"`
	Strategy string      `json:"strategy,omitempty"`
	Email    string      `json:"email,omitempty"`
	Name     string      `json:"name,omitempty"`
}

// Service is the me handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

// Init initializes the me handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, svc *auth.Service) error {
	if app == nil || cfg == nil || svc == nil {
		return handler.ErrNilACS
	}

	s.cfg = cfg

	app.Get(Path, authmw.RequirePermission(svc, ""), s.Get)

	return nil
}

// Get returns the identity stored by the permission middleware.
func (s *Service) Get(c fiber.Ctx) error {
	id := authmw.Identity(c)
	if id == nil {
		return authmw.Deny(c, identity.ErrUnauthenticated)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")

	return c.JSON(Response{
		ID:       id.ID(),
		Scope:    id.Scope(),
		Strategy: id.Attribute(identity.AttrStrategy),
		Email:    id.Attribute(identity.AttrEmail),
		Name:     id.Attribute(identity.AttrName),
	})
}
