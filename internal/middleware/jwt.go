package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/scmtp/user-service/internal/token"
)

// BearerAuth validates the Authorization bearer token and stores the
// verified claims in request locals for downstream handlers. Expired and
// otherwise-invalid tokens both map to 401; the distinction only matters
// for logs.
func BearerAuth(codec *token.Codec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := codec.Verify(tokenStr)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, token.ErrExpired) {
				msg = "token expired"
			}
			return fiber.NewError(http.StatusUnauthorized, msg)
		}

		c.Locals("user_id", claims.Subject)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}
