package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the identity endpoints over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meResponse struct {
	User    Summary  `json:"user"`
	Profile *Profile `json:"profile"`
}

// Register handles account creation.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.Register(c.UserContext(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

// Login verifies credentials and returns a fresh token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, ErrInvalidInput.Error())
	}
	result, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// Me returns the acting account's summary and profile. The summary comes
// from the verified token claims; a missing profile renders as null.
func (h *Handler) Me(c *fiber.Ctx) error {
	summary, ok := actingUser(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	profile, err := h.service.GetProfile(c.UserContext(), summary.ID)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(http.StatusOK).JSON(meResponse{User: summary, Profile: profile})
}

// UpdateMe merges the supplied profile fields into the stored profile.
// Fields absent from the body keep their stored value; explicit nulls
// clear. BodyParser would collapse that distinction, so the raw body is
// decoded through ProfileUpdate's tri-state fields.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	summary, ok := actingUser(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var upd ProfileUpdate
	if err := json.Unmarshal(c.Body(), &upd); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.service.UpdateProfile(c.UserContext(), summary.ID, upd)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.Status(http.StatusOK).JSON(meResponse{User: summary, Profile: profile})
}

// actingUser reconstructs the authenticated account summary from the
// claims stored by the auth middleware.
func actingUser(c *fiber.Ctx) (Summary, bool) {
	id, _ := c.Locals("user_id").(string)
	email, _ := c.Locals("email").(string)
	role, _ := c.Locals("role").(string)
	if id == "" {
		return Summary{}, false
	}
	return Summary{ID: id, Email: email, Role: Role(role)}, true
}

// renderError maps business-rule failures to stable client responses and
// hides infrastructure faults behind a generic message.
func (h *Handler) renderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("identity request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}
}
