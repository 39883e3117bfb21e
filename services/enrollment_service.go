package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/placementpulse/api/database"
	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/services/events"
	"github.com/placementpulse/api/services/razorpay"
	"github.com/placementpulse/api/services/receipts"
	"github.com/placementpulse/api/utils"
	"github.com/placementpulse/api/utils/metrics"
	"gorm.io/datatypes"
)

// UserStore resolves accounts and commits enrollments against them
type UserStore interface {
	FindUser(ctx context.Context, id uint, email string) (*model.User, error)
	CommitEnrollment(ctx context.Context, commit database.EnrollmentCommit) (*model.User, error)
}

// PaymentStore keeps the payment audit trail
type PaymentStore interface {
	CreatePaymentRecord(ctx context.Context, record *model.PaymentRecord) error
	BackfillPaymentUser(ctx context.Context, email string, userID uint) (int64, error)
}

// Locker provides short-lived exclusive keys
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// ReceiptArchiver stores purchase receipts
type ReceiptArchiver interface {
	Archive(ctx context.Context, receipt receipts.Receipt) error
}

const (
	EnrollLockTTL    = 30 * time.Second
	enrollLockPrefix = "enroll:lock:"

	msgMissingEmail        = "Missing user email"
	msgMissingVerification = "Missing payment verification"
	msgMissingConfig       = "Missing Razorpay config"
	msgVerificationFailed  = "Payment verification failed"
	msgAlreadyEnrolled     = "User already enrolled in one or more of these courses"
	msgInProgress          = "enrollment already in progress"
	msgEnrollFailed        = "Failed to enroll in courses"
)

// ErrInvalidUserID is returned when decoding a user id that is not a positive integer
var ErrInvalidUserID = errors.New("invalid user id")

// UserID accepts a JSON number, a numeric string, an empty string or null
type UserID uint

func (id *UserID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*id = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w %q", ErrInvalidUserID, raw)
	}
	*id = UserID(n)
	return nil
}

// EnrollUser identifies the purchasing account
type EnrollUser struct {
	ID    UserID `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PaymentVerification is the signed gateway checkout callback
type PaymentVerification struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// EnrollRequest is the input of an enrollment commit
type EnrollRequest struct {
	User         EnrollUser          `json:"user"`
	Verification PaymentVerification `json:"verification"`
	CourseIDs    []string            `json:"courseIds"`
}

// EnrollmentView is one enrollment in the user projection
type EnrollmentView struct {
	CourseID      string    `json:"courseId"`
	EnrolledAt    time.Time `json:"enrolledAt"`
	Progress      int       `json:"progress"`
	TransactionID string    `json:"transactionId"`
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
}

// UserProjection is the account as returned after a commit
type UserProjection struct {
	ID              uint             `json:"id"`
	Email           string           `json:"email"`
	Name            string           `json:"name"`
	EnrolledCourse  bool             `json:"enrolledCourse"`
	EnrolledCourses []EnrollmentView `json:"enrolledCourses"`
	Progress        int              `json:"progress"`
	TransactionID   *string          `json:"transactionId"`
}

// PurchasedCourse is a course bought by this commit
type PurchasedCourse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// EnrollResult is the success body of an enrollment commit
type EnrollResult struct {
	Success         bool              `json:"success"`
	User            UserProjection    `json:"user"`
	EnrolledCourses []PurchasedCourse `json:"enrolledCourses"`
}

// EnrollmentDeps collects the collaborators of the enrollment service.
// Gateway, Locker, Publisher and Receipts are optional.
type EnrollmentDeps struct {
	Catalog   CatalogStore
	Users     UserStore
	Payments  PaymentStore
	Gateway   Gateway
	KeySecret string

	Locker    Locker
	Publisher events.Publisher
	Receipts  ReceiptArchiver

	AllowImplicitAccounts bool
	Logger                *slog.Logger
	Now                   func() time.Time
}

// EnrollmentService verifies gateway callbacks and commits enrollments
type EnrollmentService struct {
	deps EnrollmentDeps
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(deps EnrollmentDeps) *EnrollmentService {
	if deps.Logger == nil {
		deps.Logger = utils.NopLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	return &EnrollmentService{deps: deps}
}

// Enroll verifies the payment callback, re-validates the courses and records
// one enrollment per course on the account. Every course is enrolled or none is.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	email := strings.TrimSpace(req.User.Email)
	if email == "" {
		return nil, ValidationError(msgMissingEmail)
	}

	requested := TrimCourseIDs(req.CourseIDs)
	if len(requested) == 0 {
		return nil, ValidationError(msgInvalidCourseIDs)
	}
	courseIDs := NormalizeCourseIDs(requested)

	v := req.Verification
	if v.OrderID == "" || v.PaymentID == "" || v.Signature == "" {
		return nil, ValidationError(msgMissingVerification)
	}

	if s.deps.KeySecret == "" {
		return nil, ConfigurationError(msgMissingConfig)
	}

	ctx = utils.WithLogAttrs(ctx, slog.String("order_id", v.OrderID), slog.String("payment_id", v.PaymentID))
	logger := s.deps.Logger

	if !razorpay.VerifyPaymentSignature(s.deps.KeySecret, v.OrderID, v.PaymentID, v.Signature) {
		metrics.SignatureFailedCounter.Inc()
		logger.WarnContext(ctx, "Payment signature mismatch")
		return nil, AuthenticityError(msgVerificationFailed)
	}

	release, err := s.lock(ctx, v.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	courses, err := s.deps.Catalog.FindActiveCourses(ctx, courseIDs)
	if err != nil {
		metrics.EnrollmentsFailedCounter.Inc()
		return nil, UpstreamError(msgEnrollFailed, err)
	}
	// a repeated id counts against the match, as a missing one does
	if len(courses) != len(requested) {
		return nil, NotFoundError(msgCoursesNotFound, http.StatusBadRequest)
	}

	existing, err := s.deps.Users.FindUser(ctx, uint(req.User.ID), email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if !s.deps.AllowImplicitAccounts {
			return nil, AccountRequiredError()
		}
		existing = nil
	case err != nil:
		metrics.EnrollmentsFailedCounter.Inc()
		return nil, UpstreamError(msgEnrollFailed, err)
	}

	if existing != nil && holdsAny(existing, courseIDs) {
		metrics.EnrollmentsConflictCounter.Inc()
		return nil, ConflictError(msgAlreadyEnrolled)
	}

	payment := s.recordPayment(ctx, req, email, courseIDs)

	transactionID := v.PaymentID
	if payment != nil && payment.ID != "" {
		transactionID = payment.ID
	}

	now := s.deps.Now().UTC()
	enrollments := make([]model.Enrollment, len(courseIDs))
	for i, id := range courseIDs {
		enrollments[i] = model.Enrollment{
			CourseID:      id,
			EnrolledAt:    now,
			Progress:      0,
			TransactionID: transactionID,
			PaymentID:     v.PaymentID,
			OrderID:       v.OrderID,
			Status:        model.EnrollmentStatusActive,
		}
	}

	commit := database.EnrollmentCommit{
		UserID:          uint(req.User.ID),
		Email:           email,
		Name:            strings.TrimSpace(req.User.Name),
		CreateIfMissing: s.deps.AllowImplicitAccounts,
		TransactionID:   transactionID,
		Enrollments:     enrollments,
	}
	if existing != nil {
		commit.UserID = existing.ID
	}

	started := time.Now()
	user, err := s.deps.Users.CommitEnrollment(ctx, commit)
	metrics.EnrollmentCommitDurationHistogram.Update(float64(time.Since(started).Milliseconds()))
	switch {
	case errors.Is(err, database.ErrDuplicateEnrollment):
		metrics.EnrollmentsConflictCounter.Inc()
		return nil, ConflictError(msgAlreadyEnrolled)
	case errors.Is(err, database.ErrNotFound):
		return nil, AccountRequiredError()
	case err != nil:
		metrics.EnrollmentsFailedCounter.Inc()
		logger.ErrorContext(ctx, "Enrollment commit failed", "error", err)
		return nil, UpstreamError(msgEnrollFailed, err)
	}

	metrics.EnrollmentsCommittedCounter.Inc()
	logger.InfoContext(ctx, "Enrollment committed", "user_id", user.ID, "courses", courseIDs)

	s.backfillPayments(ctx, email, user.ID)
	s.publish(ctx, user, v, transactionID, courseIDs, now)
	s.archiveReceipt(ctx, user, v, transactionID, courses, payment, now)

	return buildResult(user, courses, now), nil
}

// lock takes the per-order lock. Lock failures other than contention are
// logged and ignored.
func (s *EnrollmentService) lock(ctx context.Context, orderID string) (func(), error) {
	noop := func() {}
	if s.deps.Locker == nil {
		return noop, nil
	}

	key := enrollLockPrefix + orderID
	token := uuid.NewString()

	acquired, err := s.deps.Locker.SetNX(ctx, key, token, EnrollLockTTL)
	if err != nil {
		metrics.BestEffortFailure(metrics.StepLock)
		s.deps.Logger.WarnContext(ctx, "Enrollment lock unavailable", "error", err)
		return noop, nil
	}
	if !acquired {
		metrics.EnrollmentsConflictCounter.Inc()
		return nil, ConflictError(msgInProgress)
	}

	return func() {
		if err := s.deps.Locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.deps.Logger.WarnContext(ctx, "Failed to release enrollment lock", "error", err)
		}
	}, nil
}

// recordPayment fetches the gateway payment and stores an audit record.
// Failures never block the enrollment: the signature already proved payment.
func (s *EnrollmentService) recordPayment(ctx context.Context, req EnrollRequest, email string, courseIDs []string) *razorpay.Payment {
	if s.deps.Gateway == nil {
		return nil
	}

	v := req.Verification
	payment, err := s.deps.Gateway.FetchPayment(ctx, v.PaymentID)
	if err != nil {
		metrics.BestEffortFailure(metrics.StepPaymentFetch)
		s.deps.Logger.WarnContext(ctx, "Payment fetch failed, continuing", "error", err)
		return nil
	}

	if s.deps.Payments == nil {
		return payment
	}

	record := &model.PaymentRecord{
		Email:     email,
		OrderID:   v.OrderID,
		PaymentID: v.PaymentID,
		Signature: v.Signature,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    payment.Status,
		Method:    payment.Method,
		CourseIDs: courseIDs,
		Notes:     jsonOrNull(payment.Notes),
		Raw:       jsonOrNull(payment.Raw),
	}
	if err := s.deps.Payments.CreatePaymentRecord(ctx, record); err != nil {
		metrics.BestEffortFailure(metrics.StepPaymentRecord)
		s.deps.Logger.WarnContext(ctx, "Payment record not stored", "error", err)
	}
	return payment
}

func (s *EnrollmentService) backfillPayments(ctx context.Context, email string, userID uint) {
	if s.deps.Payments == nil {
		return
	}
	n, err := s.deps.Payments.BackfillPaymentUser(ctx, email, userID)
	if err != nil {
		metrics.BestEffortFailure(metrics.StepBackfill)
		s.deps.Logger.WarnContext(ctx, "Payment user backfill failed", "error", err)
		return
	}
	if n > 0 {
		s.deps.Logger.DebugContext(ctx, "Backfilled payment records", "count", n)
	}
}

func (s *EnrollmentService) publish(ctx context.Context, user *model.User, v PaymentVerification, transactionID string, courseIDs []string, now time.Time) {
	err := s.deps.Publisher.PublishEnrollment(ctx, events.EnrollmentEvent{
		Type:          events.EnrollmentCommittedType,
		UserID:        user.ID,
		Email:         user.Email,
		OrderID:       v.OrderID,
		PaymentID:     v.PaymentID,
		TransactionID: transactionID,
		CourseIDs:     courseIDs,
		OccurredAt:    now,
	})
	if err != nil {
		metrics.BestEffortFailure(metrics.StepPublish)
		s.deps.Logger.WarnContext(ctx, "Enrollment event not published", "error", err)
	}
}

func (s *EnrollmentService) archiveReceipt(ctx context.Context, user *model.User, v PaymentVerification, transactionID string, courses []model.Course, payment *razorpay.Payment, now time.Time) {
	if s.deps.Receipts == nil {
		return
	}

	receipt := receipts.Receipt{
		OrderID:       v.OrderID,
		PaymentID:     v.PaymentID,
		TransactionID: transactionID,
		UserID:        user.ID,
		Email:         user.Email,
		IssuedAt:      now,
	}
	for _, c := range courses {
		receipt.Lines = append(receipt.Lines, receipts.Line{CourseID: c.ID, Title: c.Title, Price: c.Price})
		receipt.Total += c.Price
	}
	if payment != nil {
		receipt.Currency = payment.Currency
	}

	if err := s.deps.Receipts.Archive(ctx, receipt); err != nil {
		metrics.BestEffortFailure(metrics.StepReceipt)
		s.deps.Logger.WarnContext(ctx, "Receipt not archived", "error", err)
	}
}

func holdsAny(user *model.User, courseIDs []string) bool {
	held := make(map[string]struct{}, len(user.Enrollments))
	for _, e := range user.Enrollments {
		held[e.CourseID] = struct{}{}
	}
	for _, id := range courseIDs {
		if _, ok := held[id]; ok {
			return true
		}
	}
	return false
}

func buildResult(user *model.User, courses []model.Course, now time.Time) *EnrollResult {
	views := make([]EnrollmentView, len(user.Enrollments))
	for i, e := range user.Enrollments {
		views[i] = EnrollmentView{
			CourseID:      e.CourseID,
			EnrolledAt:    e.EnrolledAt,
			Progress:      e.Progress,
			TransactionID: e.TransactionID,
			PaymentID:     e.PaymentID,
			OrderID:       e.OrderID,
			Status:        string(e.Status),
		}
	}

	purchased := make([]PurchasedCourse, len(courses))
	for i, c := range courses {
		purchased[i] = PurchasedCourse{ID: c.ID, Title: c.Title, EnrolledAt: now}
	}

	return &EnrollResult{
		Success: true,
		User: UserProjection{
			ID:              user.ID,
			Email:           user.Email,
			Name:            user.Name,
			EnrolledCourse:  user.EnrolledCourse,
			EnrolledCourses: views,
			Progress:        user.Progress,
			TransactionID:   user.TransactionID,
		},
		EnrolledCourses: purchased,
	}
}

func jsonOrNull(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
