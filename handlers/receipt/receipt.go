package receipt

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/services/receipts"
	"github.com/placementpulse/api/utils/middleware"
	"github.com/placementpulse/api/utils/response"
)

// Fetcher loads archived receipts
type Fetcher interface {
	Fetch(ctx context.Context, orderID string) (*receipts.Receipt, error)
}

// ReceiptHandler serves archived purchase receipts
type ReceiptHandler struct {
	receipts Fetcher
}

// NewReceiptHandler creates a new receipt handler. A nil fetcher means the
// receipt bucket is not configured.
func NewReceiptHandler(receipts Fetcher) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// GetReceipt returns the receipt of one of the current user's orders
func (h *ReceiptHandler) GetReceipt(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if h.receipts == nil {
		return response.ServiceUnavailable(c, "Receipts are not available")
	}

	orderID := strings.TrimSpace(c.Params("orderId"))
	if orderID == "" {
		return response.BadRequest(c, "Order ID is required")
	}

	receipt, err := h.receipts.Fetch(c.UserContext(), orderID)
	if errors.Is(err, receipts.ErrReceiptNotFound) {
		return response.NotFound(c, "Receipt not found")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to load receipt")
	}

	if receipt.UserID != userID {
		return response.Forbidden(c, "Receipt belongs to another account")
	}

	return response.SuccessWithMessage(c, "Receipt retrieved", receipt)
}
