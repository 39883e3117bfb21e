package order

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/services"
	"github.com/placementpulse/api/services/razorpay"
	"github.com/placementpulse/api/utils/response"
)

// OrderCreator opens gateway orders for catalog courses
type OrderCreator interface {
	CreateOrder(ctx context.Context, courseIDs []string, currency string) (*razorpay.Order, error)
}

// OrderHandler handles checkout order requests
type OrderHandler struct {
	orders OrderCreator
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderCreator) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// BulkOrderRequest is the body of a bulk order request. Any amount sent by
// the client is ignored.
type BulkOrderRequest struct {
	CourseIDs []string `json:"courseIds"`
	Currency  string   `json:"currency,omitempty"`
}

// CreateBulkOrder opens one gateway order covering every requested course
func (h *OrderHandler) CreateBulkOrder(c *fiber.Ctx) error {
	var req BulkOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.PlainError(c, fiber.StatusBadRequest, "Missing or invalid course IDs")
	}

	order, err := h.orders.CreateOrder(c.UserContext(), req.CourseIDs, req.Currency)
	if err != nil {
		return response.PlainError(c, services.StatusCode(err), services.PublicMessage(err))
	}

	// Hand the gateway's order back untouched
	if len(order.Raw) > 0 {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).Send(order.Raw)
	}
	return c.Status(fiber.StatusOK).JSON(order)
}
