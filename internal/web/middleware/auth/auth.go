package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	authsvc "github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
)

// LocalsIdentity is the fiber.Locals key holding the authenticated *identity.Identity.
const LocalsIdentity = "identity"

// Request converts a fiber request into what the strategies understand.
// Form holds the query string merged with an urlencoded body, body values first.
func Request(c fiber.Ctx) *strategy.Request {
	header := make(http.Header)

	for key, values := range c.GetReqHeaders() {
		for _, v := range values {
			header.Add(key, v)
		}
	}

	form, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		form = url.Values{}
	}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationForm) {
		body, err := url.ParseQuery(string(c.Body()))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("failed to parse form body")
		}

		for key, values := range body {
			form[key] = append(values, form[key]...)
		}
	}

	return &strategy.Request{
		Method: c.Method(),
		Path:   c.Path(),
		Header: header,
		Form:   form,
	}
}

// Identity returns the identity stored by RequirePermission, or nil.
func Identity(c fiber.Ctx) *identity.Identity {
	id, _ := c.Locals(LocalsIdentity).(*identity.Identity)

	return id
}

// IdentityID returns the id of the authenticated caller, used by the access log.
func IdentityID(c fiber.Ctx) string {
	if id := Identity(c); id != nil {
		return id.ID()
	}

	return ""
}

// RequirePermission authenticates the request and admits it only when the identity holds
// every capability. An empty capability admits any authenticated caller.
func RequirePermission(svc *authsvc.Service, capabilities ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := svc.RequirePermission(c.Context(), Request(c), capabilities...)
		if err != nil {
			return Deny(c, err)
		}

		c.Locals(LocalsIdentity, id)

		return c.Next()
	}
}

// Deny answers with the uniform status and body for err: 403 for forbidden, 401 otherwise.
func Deny(c fiber.Ctx, err error) error {
	public := identity.Public(err)

	status := fiber.StatusUnauthorized
	if errors.Is(public, identity.ErrAccessDenied) {
		status = fiber.StatusForbidden
	}

	return c.Status(status).JSON(fiber.Map{"error": public.Error()})
}
