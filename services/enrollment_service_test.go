package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/services/razorpay"
	"github.com/placementpulse/api/utils/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "rzp_test_secret"

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type EnrollmentServiceSuite struct {
	suite.Suite

	catalog   *fakeCatalog
	users     *fakeUsers
	payments  *fakePayments
	gateway   *fakeGateway
	locker    *fakeLocker
	publisher *fakePublisher
	receipts  *fakeReceipts
	deps      EnrollmentDeps
}

func TestEnrollmentServiceSuite(t *testing.T) {
	suite.Run(t, new(EnrollmentServiceSuite))
}

func (s *EnrollmentServiceSuite) SetupTest() {
	s.catalog = newFakeCatalog(testCourses()...)
	s.users = newFakeUsers(&model.User{ID: 7, Email: "asha@example.com", Name: "Asha", Role: "student"})
	s.payments = &fakePayments{}
	s.gateway = &fakeGateway{}
	s.locker = newFakeLocker()
	s.publisher = &fakePublisher{}
	s.receipts = &fakeReceipts{}

	s.deps = EnrollmentDeps{
		Catalog:   s.catalog,
		Users:     s.users,
		Payments:  s.payments,
		Gateway:   s.gateway,
		KeySecret: testSecret,
		Locker:    s.locker,
		Publisher: s.publisher,
		Receipts:  s.receipts,
		Now:       func() time.Time { return fixedNow },
	}
}

func (s *EnrollmentServiceSuite) service() *EnrollmentService {
	return NewEnrollmentService(s.deps)
}

func signedRequest(email string, courseIDs ...string) EnrollRequest {
	return EnrollRequest{
		User: EnrollUser{Email: email, Name: "Asha K"},
		Verification: PaymentVerification{
			OrderID:   "order_abc",
			PaymentID: "pay_123",
			Signature: razorpay.Signature(testSecret, "order_abc", "pay_123"),
		},
		CourseIDs: courseIDs,
	}
}

func (s *EnrollmentServiceSuite) TestEnroll_Success() {
	result, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1", "c2"))
	s.Require().NoError(err)

	s.True(result.Success)
	s.Equal(uint(7), result.User.ID)
	s.Equal("Asha K", result.User.Name)
	s.True(result.User.EnrolledCourse)
	s.Equal(0, result.User.Progress)
	s.Require().NotNil(result.User.TransactionID)
	s.Equal("pay_123", *result.User.TransactionID)

	s.Require().Len(result.User.EnrolledCourses, 2)
	byCourse := map[string]EnrollmentView{}
	for _, e := range result.User.EnrolledCourses {
		byCourse[e.CourseID] = e
	}
	for _, id := range []string{"c1", "c2"} {
		e, ok := byCourse[id]
		s.Require().True(ok, "missing enrollment for %s", id)
		s.Equal(0, e.Progress)
		s.Equal("active", e.Status)
		s.Equal("order_abc", e.OrderID)
		s.Equal("pay_123", e.PaymentID)
		s.True(fixedNow.Equal(e.EnrolledAt))
	}

	s.Require().Len(result.EnrolledCourses, 2)
	s.ElementsMatch([]string{"DSA Bootcamp", "Aptitude Sprint"},
		[]string{result.EnrolledCourses[0].Title, result.EnrolledCourses[1].Title})

	// audit trail, backfill and side channels
	s.Require().Len(s.payments.records, 1)
	record := s.payments.records[0]
	s.Equal("asha@example.com", record.Email)
	s.Equal(int64(14800), record.Amount)
	s.Equal("captured", record.Status)
	s.Equal([]string{"c1", "c2"}, []string(record.CourseIDs))
	s.Require().NotNil(record.UserID)
	s.Equal(uint(7), *record.UserID)
	s.Equal([]uint{7}, s.payments.backfills)

	s.Require().Len(s.publisher.events, 1)
	s.Equal(uint(7), s.publisher.events[0].UserID)
	s.Equal([]string{"c1", "c2"}, s.publisher.events[0].CourseIDs)

	s.Require().Len(s.receipts.receipts, 1)
	s.Equal(int64(14800), s.receipts.receipts[0].Total)
	s.Equal("INR", s.receipts.receipts[0].Currency)

	s.Equal([]string{"enroll:lock:order_abc"}, s.locker.released)
	s.Empty(s.locker.held)
}

func (s *EnrollmentServiceSuite) TestEnroll_TransactionIDFromFetchedPayment() {
	s.gateway.payment = &razorpay.Payment{ID: "pay_canonical", Amount: 9900, Currency: "INR", Status: "captured"}

	result, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Require().NoError(err)

	s.Equal("pay_canonical", *result.User.TransactionID)
	s.Equal("pay_canonical", result.User.EnrolledCourses[0].TransactionID)
	s.Equal("pay_123", result.User.EnrolledCourses[0].PaymentID)
}

func (s *EnrollmentServiceSuite) TestEnroll_MissingFields() {
	valid := signedRequest("asha@example.com", "c1")

	tests := []struct {
		name    string
		mutate  func(r *EnrollRequest)
		message string
	}{
		{"missing email", func(r *EnrollRequest) { r.User.Email = "  " }, "Missing user email"},
		{"missing course ids", func(r *EnrollRequest) { r.CourseIDs = nil }, "Missing or invalid course IDs"},
		{"empty course ids", func(r *EnrollRequest) { r.CourseIDs = []string{} }, "Missing or invalid course IDs"},
		{"missing order id", func(r *EnrollRequest) { r.Verification.OrderID = "" }, "Missing payment verification"},
		{"missing payment id", func(r *EnrollRequest) { r.Verification.PaymentID = "" }, "Missing payment verification"},
		{"missing signature", func(r *EnrollRequest) { r.Verification.Signature = "" }, "Missing payment verification"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			req := valid
			req.CourseIDs = append([]string(nil), valid.CourseIDs...)
			tt.mutate(&req)

			_, err := s.service().Enroll(context.Background(), req)
			s.Require().Error(err)
			s.Equal(KindValidation, KindOf(err))
			s.Equal(http.StatusBadRequest, StatusCode(err))
			s.Equal(tt.message, PublicMessage(err))

			s.Zero(s.catalog.calls)
			s.Zero(s.users.findCalls)
			s.Zero(s.users.commitCalls)
			s.Zero(s.gateway.fetchCalls)
		})
	}
}

func (s *EnrollmentServiceSuite) TestEnroll_MissingSecret() {
	s.deps.KeySecret = ""

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Equal(KindConfiguration, KindOf(err))
	s.Equal(http.StatusInternalServerError, StatusCode(err))
	s.Equal("Missing Razorpay config", PublicMessage(err))
	s.Zero(s.catalog.calls)
}

func (s *EnrollmentServiceSuite) TestEnroll_BadSignature() {
	payloads := []EnrollRequest{
		func() EnrollRequest {
			r := signedRequest("asha@example.com", "c1")
			r.Verification.Signature = "deadbeef"
			return r
		}(),
		func() EnrollRequest {
			r := signedRequest("asha@example.com", "c1", "c2")
			r.Verification.PaymentID = "pay_forged"
			return r
		}(),
		func() EnrollRequest {
			r := signedRequest("someone@else.com", "c2")
			r.Verification.Signature = razorpay.Signature("wrong-secret", "order_abc", "pay_123")
			return r
		}(),
	}

	for _, req := range payloads {
		_, err := s.service().Enroll(context.Background(), req)
		s.Require().Error(err)
		s.Equal(KindAuthenticity, KindOf(err))
		s.Equal(http.StatusBadRequest, StatusCode(err))
		s.Equal("Payment verification failed", PublicMessage(err))
	}

	s.Zero(s.catalog.calls)
	s.Zero(s.users.commitCalls)
	s.Empty(s.payments.records)
}

func (s *EnrollmentServiceSuite) TestEnroll_InactiveCourseEnrollsNothing() {
	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1", "c2", "c3"))
	s.Require().Error(err)
	s.Equal(KindNotFound, KindOf(err))
	s.Equal(http.StatusBadRequest, StatusCode(err))
	s.Equal("One or more courses not found or inactive", PublicMessage(err))

	s.Zero(s.users.commitCalls)
	s.Empty(s.users.users[7].Enrollments)
	s.Empty(s.locker.held)
}

func (s *EnrollmentServiceSuite) TestEnroll_RepeatedCourseIDRejected() {
	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1", " c1 "))
	s.Require().Error(err)
	s.Equal(KindNotFound, KindOf(err))
	s.Equal(http.StatusBadRequest, StatusCode(err))
	s.Equal("One or more courses not found or inactive", PublicMessage(err))

	s.Zero(s.users.commitCalls)
	s.Empty(s.users.users[7].Enrollments)
	s.Empty(s.payments.records)
}

func (s *EnrollmentServiceSuite) TestEnroll_TwiceReturnsConflict() {
	svc := s.service()
	req := signedRequest("asha@example.com", "c1", "c2")

	_, err := svc.Enroll(context.Background(), req)
	s.Require().NoError(err)

	_, err = svc.Enroll(context.Background(), req)
	s.Require().Error(err)
	s.Equal(KindConflict, KindOf(err))
	s.Equal(http.StatusConflict, StatusCode(err))
	s.Equal("User already enrolled in one or more of these courses", PublicMessage(err))

	s.Len(s.users.users[7].Enrollments, 2)
	s.Equal(1, s.users.commitCalls)
}

func (s *EnrollmentServiceSuite) TestEnroll_OverlapWithHeldCourse() {
	s.users.users[7].Enrollments = []model.Enrollment{{CourseID: "c2", Status: model.EnrollmentStatusRefunded}}

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1", "c2"))
	s.Equal(KindConflict, KindOf(err))
	s.Len(s.users.users[7].Enrollments, 1)
}

func (s *EnrollmentServiceSuite) TestEnroll_ConstraintConflictAfterStaleRead() {
	s.users.users[7].Enrollments = []model.Enrollment{{CourseID: "c1", Status: model.EnrollmentStatusActive}}
	s.users.staleFind = true

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1", "c2"))
	s.Require().Error(err)
	s.Equal(KindConflict, KindOf(err))
	s.Equal(1, s.users.commitCalls)
	s.Len(s.users.users[7].Enrollments, 1)
}

func (s *EnrollmentServiceSuite) TestEnroll_AccountRequired() {
	_, err := s.service().Enroll(context.Background(), signedRequest("new@example.com", "c1"))
	s.Require().Error(err)
	s.Equal(KindAccountRequired, KindOf(err))
	s.Equal(http.StatusForbidden, StatusCode(err))
	s.Equal("account required", PublicMessage(err))
	s.Zero(s.users.commitCalls)
}

func (s *EnrollmentServiceSuite) TestEnroll_ImplicitAccount() {
	s.deps.AllowImplicitAccounts = true

	result, err := s.service().Enroll(context.Background(), signedRequest("New@Example.com", "c1"))
	s.Require().NoError(err)

	s.Equal("new@example.com", result.User.Email)
	s.Len(result.User.EnrolledCourses, 1)
	s.Len(s.users.users, 2)
}

func (s *EnrollmentServiceSuite) TestEnroll_LookupByID() {
	req := signedRequest("other@example.com", "c1")
	req.User.ID = 7

	result, err := s.service().Enroll(context.Background(), req)
	s.Require().NoError(err)
	s.Equal(uint(7), result.User.ID)
}

func (s *EnrollmentServiceSuite) TestEnroll_BestEffortFailuresDoNotBlock() {
	before := map[string]uint64{}
	for _, step := range []string{metrics.StepPaymentFetch, metrics.StepBackfill, metrics.StepPublish, metrics.StepReceipt} {
		before[step] = metrics.BestEffortFailures(step)
	}

	s.gateway.paymentErr = errors.New("gateway timeout")
	s.payments.backfillErr = errors.New("db down")
	s.publisher.err = errors.New("broker down")
	s.receipts.err = errors.New("bucket down")

	result, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Require().NoError(err)

	s.Equal("pay_123", *result.User.TransactionID)
	s.Empty(s.payments.records)
	for step, n := range before {
		s.Equal(n+1, metrics.BestEffortFailures(step), step)
	}
}

func (s *EnrollmentServiceSuite) TestEnroll_PaymentRecordFailureDoesNotBlock() {
	before := metrics.BestEffortFailures(metrics.StepPaymentRecord)
	s.payments.createErr = errors.New("insert failed")

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Require().NoError(err)
	s.Equal(before+1, metrics.BestEffortFailures(metrics.StepPaymentRecord))
}

func (s *EnrollmentServiceSuite) TestEnroll_WithoutOptionalCollaborators() {
	s.deps.Gateway = nil
	s.deps.Locker = nil
	s.deps.Publisher = nil
	s.deps.Receipts = nil

	result, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Require().NoError(err)
	s.Equal("pay_123", *result.User.TransactionID)
	s.Zero(s.gateway.fetchCalls)
}

func (s *EnrollmentServiceSuite) TestEnroll_LockHeld() {
	s.locker.held["enroll:lock:order_abc"] = "other-request"

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Require().Error(err)
	s.Equal(KindConflict, KindOf(err))
	s.Equal("enrollment already in progress", PublicMessage(err))
	s.Zero(s.catalog.calls)
	s.Equal("other-request", s.locker.held["enroll:lock:order_abc"])
}

func (s *EnrollmentServiceSuite) TestEnroll_LockErrorIgnored() {
	s.locker.err = errors.New("redis unavailable")

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.NoError(err)
}

func (s *EnrollmentServiceSuite) TestEnroll_StoreFailure() {
	s.users.commitErr = errors.New("deadlock detected")

	_, err := s.service().Enroll(context.Background(), signedRequest("asha@example.com", "c1"))
	s.Require().Error(err)
	s.Equal(KindUpstream, KindOf(err))
	s.Equal(http.StatusInternalServerError, StatusCode(err))
	s.Contains(PublicMessage(err), "deadlock detected")
	s.Empty(s.publisher.events)
}

func TestUserID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    UserID
		wantErr bool
	}{
		{`{"id":42}`, 42, false},
		{`{"id":"42"}`, 42, false},
		{`{"id":""}`, 0, false},
		{`{"id":null}`, 0, false},
		{`{}`, 0, false},
		{`{"id":"64b7f0c2e1"}`, 0, true},
		{`{"id":-1}`, 0, true},
	}

	for _, tt := range tests {
		var u EnrollUser
		err := json.Unmarshal([]byte(tt.in), &u)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidUserID, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, u.ID, tt.in)
	}
}
