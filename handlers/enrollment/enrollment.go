package enrollment

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/services"
	"github.com/placementpulse/api/utils/middleware"
	"github.com/placementpulse/api/utils/response"
)

// Enroller commits verified purchases
type Enroller interface {
	Enroll(ctx context.Context, req services.EnrollRequest) (*services.EnrollResult, error)
}

// EnrollmentHandler handles enrollment commits after checkout
type EnrollmentHandler struct {
	enrollments Enroller
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollments Enroller) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// EnrollMultiCourse verifies a gateway callback and enrolls the user in every
// purchased course. Route must run behind AuthMiddleware.Optional.
func (h *EnrollmentHandler) EnrollMultiCourse(c *fiber.Ctx) error {
	var req services.EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		if errors.Is(err, services.ErrInvalidUserID) {
			return response.PlainError(c, fiber.StatusBadRequest, "Invalid user id")
		}
		return response.PlainError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	// A signed-in caller can only enroll their own account
	if user, ok := middleware.GetUser(c); ok {
		if req.User.ID != 0 && uint(req.User.ID) != user.ID {
			return response.PlainError(c, fiber.StatusForbidden, "Cannot enroll another user")
		}
		email := strings.TrimSpace(req.User.Email)
		if email != "" && !strings.EqualFold(email, user.Email) {
			return response.PlainError(c, fiber.StatusForbidden, "Cannot enroll another user")
		}

		req.User.ID = services.UserID(user.ID)
		if email == "" {
			req.User.Email = user.Email
		}
	}

	result, err := h.enrollments.Enroll(c.UserContext(), req)
	if err != nil {
		return response.PlainError(c, services.StatusCode(err), services.PublicMessage(err))
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
