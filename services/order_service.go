package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/services/razorpay"
	"github.com/placementpulse/api/utils"
	"github.com/placementpulse/api/utils/metrics"
	"github.com/placementpulse/api/utils/validation"
)

// CatalogStore reads purchasable courses
type CatalogStore interface {
	FindActiveCourses(ctx context.Context, ids []string) ([]model.Course, error)
}

// Gateway is the subset of the Razorpay API used by checkout
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
}

// Razorpay accepts at most 15 note keys of up to 256 characters each
const (
	maxNoteKeys   = 15
	maxNoteLength = 256
)

const (
	msgInvalidCourseIDs  = "Missing or invalid course IDs"
	msgCoursesNotFound   = "One or more courses not found or inactive"
	msgMissingCredential = "Missing Razorpay credentials"
)

// OrderService opens gateway orders priced from the catalog
type OrderService struct {
	catalog         CatalogStore
	gateway         Gateway
	defaultCurrency string
	validator       *validation.Validator
	logger          *slog.Logger
}

// NewOrderService creates a new order service. A nil gateway means the
// gateway credentials are not configured.
func NewOrderService(catalog CatalogStore, gateway Gateway, defaultCurrency string, logger *slog.Logger) *OrderService {
	if defaultCurrency == "" {
		defaultCurrency = "INR"
	}
	if logger == nil {
		logger = utils.NopLogger()
	}

	return &OrderService{
		catalog:         catalog,
		gateway:         gateway,
		defaultCurrency: strings.ToUpper(defaultCurrency),
		validator:       validation.NewValidator(),
		logger:          logger,
	}
}

// CreateOrder prices the requested courses and opens a gateway order for the
// total. Client-declared amounts are never consulted.
func (s *OrderService) CreateOrder(ctx context.Context, courseIDs []string, currency string) (*razorpay.Order, error) {
	ids := NormalizeCourseIDs(courseIDs)
	if len(ids) == 0 {
		return nil, ValidationError(msgInvalidCourseIDs)
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if !s.validator.ValidateCurrency(currency) {
		return nil, ValidationError("Unsupported currency")
	}

	if s.gateway == nil {
		return nil, ConfigurationError(msgMissingCredential)
	}

	courses, err := s.catalog.FindActiveCourses(ctx, ids)
	if err != nil {
		metrics.OrdersFailedCounter.Inc()
		return nil, UpstreamError("Failed to load courses", err)
	}
	if len(courses) < len(ids) {
		return nil, NotFoundError(msgCoursesNotFound, http.StatusNotFound)
	}

	var total int64
	for _, course := range courses {
		total += course.Price
	}

	matched := make([]string, len(courses))
	for i, course := range courses {
		matched[i] = course.ID
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   total,
		Currency: currency,
		Receipt:  razorpay.NewReceipt(),
		Notes:    orderNotes(matched),
	})
	if err != nil {
		metrics.OrdersFailedCounter.Inc()
		s.logger.ErrorContext(ctx, "Bulk order creation failed", "error", err, "amount", total)
		return nil, UpstreamError("Failed to create bulk order", err)
	}

	metrics.OrdersCreatedCounter.Inc()
	s.logger.InfoContext(ctx, "Gateway order created",
		"order_id", order.ID, "amount", total, "currency", currency, "count", len(courses))

	return order, nil
}

// TrimCourseIDs trims ids and drops blanks. Repeats are kept.
func TrimCourseIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// NormalizeCourseIDs trims ids, drops blanks and collapses duplicates
// keeping first-seen order
func NormalizeCourseIDs(ids []string) []string {
	trimmed := TrimCourseIDs(ids)
	seen := make(map[string]struct{}, len(trimmed))
	out := make([]string, 0, len(trimmed))
	for _, id := range trimmed {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orderNotes packs the course ids into comma separated note values within the
// gateway limits: "courseIds", then "courseIds_2", "courseIds_3" and so on.
// Ids that do not fit are left out; "count" always carries the full number.
func orderNotes(ids []string) map[string]interface{} {
	notes := map[string]interface{}{"count": len(ids)}

	var chunks []string
	current := ""
	for _, id := range ids {
		if len(id) > maxNoteLength {
			continue
		}
		switch {
		case current == "":
			current = id
		case len(current)+1+len(id) <= maxNoteLength:
			current += "," + id
		default:
			chunks = append(chunks, current)
			current = id
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	for i, chunk := range chunks {
		if i >= maxNoteKeys-1 {
			break
		}
		key := "courseIds"
		if i > 0 {
			key = fmt.Sprintf("courseIds_%d", i+1)
		}
		notes[key] = chunk
	}
	return notes
}
