package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
)

// TokenResponse is the body of a successful token request.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// SendToken answers with the token of sess. expires_in counts whole seconds from now.
func SendToken(c fiber.Ctx, sess *session.Session, now time.Time) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	return c.JSON(TokenResponse{
		AccessToken: sess.Token,
		ExpiresIn:   int64(sess.ExpiresAt.Sub(now) / time.Second),
		TokenType:   TokenTypeBearer,
	})
}
