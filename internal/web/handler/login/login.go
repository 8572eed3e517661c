package login

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

const (
	// Path lists the login prompts.
	Path = "/auth/login"

	// TokenPath exchanges credentials for a token.
	TokenPath = "/auth/token"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	svc *auth.Service
}

// TokenRequest is the form of a token request.
type TokenRequest struct {
	ClientID     string `form:"client_id"`
	ClientSecret string `form:"client_secret"`
	GrantType    string `form:"grant_type"`
	Username     string `form:"username"`
	Password     string `form:"password"`
	Scope        string `form:"scope"`
	OTP          string `form:"otp"`
}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, svc *auth.Service) error {
	if app == nil || cfg == nil || svc == nil {
		return handler.ErrNilACS
	}

	s.cfg = cfg
	s.svc = svc

	app.Get(Path, s.Get)
	app.Post(TokenPath, s.Post)

	return nil
}

// Get lists the strategies a login chooser may offer.
func (s *Service) Get(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"prompts": s.svc.Prompts()})
}

// Post handles the password grant.
func (s *Service) Post(c fiber.Ctx) error {
	req := new(TokenRequest)
	if err := c.Bind().Form(req); err != nil {
		log.Debug().Err(err).Msg(ErrInvalidFormData.Error())

		return authmw.Deny(c, identity.Fail(identity.Unauthenticated, "", ErrInvalidFormData))
	}

	sess, err := s.svc.Login(c.Context(), &auth.LoginInput{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		GrantType:    req.GrantType,
		Username:     req.Username,
		Password:     req.Password,
		OTP:          req.OTP,
		Scope:        scope.Parse(req.Scope),
	})
	if err != nil {
		// every token failure is a 401, a refused scope included
		return authmw.Deny(c, identity.Fail(identity.Unauthenticated, req.Username, err))
	}

	return handler.SendToken(c, sess, time.Now())
}
