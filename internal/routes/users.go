package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scmtp/user-service/internal/identity"
)

// RegisterUserRoutes wires the authenticated profile endpoints. The router
// passed in must already carry the bearer-token middleware.
func RegisterUserRoutes(r fiber.Router, h *identity.Handler) {
	group := r.Group("/users")
	group.Get("/me", h.Me)
	group.Put("/me", h.UpdateMe)
}
