package dashboard

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/services"
	"github.com/placementpulse/api/utils/middleware"
	"github.com/placementpulse/api/utils/response"
)

// Reader is what the dashboard routes read
type Reader interface {
	AudienceFor(ctx context.Context, userID uint) (string, error)
	ListAnnouncements(ctx context.Context, audience string) ([]services.AnnouncementView, error)
	ListEnrolledCourses(ctx context.Context, userID uint) ([]services.EnrolledCourseView, error)
}

// DashboardHandler handles learner dashboard requests
type DashboardHandler struct {
	dashboard Reader
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard Reader) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// ListAnnouncements returns the announcements visible to the current user
func (h *DashboardHandler) ListAnnouncements(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	audience, err := h.dashboard.AudienceFor(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load announcements")
	}

	announcements, err := h.dashboard.ListAnnouncements(c.UserContext(), audience)
	if err != nil {
		return response.InternalServerError(c, "Failed to load announcements")
	}

	return response.Success(c, fiber.Map{"announcements": announcements})
}

// ListCourses returns the current user's enrolled courses
func (h *DashboardHandler) ListCourses(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	courses, err := h.dashboard.ListEnrolledCourses(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load courses")
	}

	return response.Success(c, fiber.Map{"courses": courses})
}
