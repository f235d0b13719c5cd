package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/scmtp/user-service/internal/identity"
)

// RegisterAuthRoutes wires the public registration and login endpoints.
func RegisterAuthRoutes(r fiber.Router, h *identity.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	group.Post("/login", h.Login)
}
