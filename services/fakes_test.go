package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/placementpulse/api/database"
	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/services/events"
	"github.com/placementpulse/api/services/razorpay"
	"github.com/placementpulse/api/services/receipts"
)

type fakeCatalog struct {
	courses map[string]model.Course
	calls   int
	err     error
}

func newFakeCatalog(courses ...model.Course) *fakeCatalog {
	c := &fakeCatalog{courses: map[string]model.Course{}}
	for _, course := range courses {
		c.courses[course.ID] = course
	}
	return c
}

func (f *fakeCatalog) FindActiveCourses(_ context.Context, ids []string) ([]model.Course, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Course
	for _, id := range ids {
		if c, ok := f.courses[id]; ok && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeGateway struct {
	orders     []razorpay.OrderRequest
	orderErr   error
	payment    *razorpay.Payment
	paymentErr error
	fetchCalls int
}

func (f *fakeGateway) CreateOrder(_ context.Context, req razorpay.OrderRequest) (*razorpay.Order, error) {
	f.orders = append(f.orders, req)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"id":       "order_test",
		"entity":   "order",
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Notes,
		"status":   "created",
	})
	return &razorpay.Order{
		ID:       "order_test",
		Entity:   "order",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
		Status:   "created",
		Raw:      raw,
	}, nil
}

func (f *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*razorpay.Payment, error) {
	f.fetchCalls++
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	if f.payment != nil {
		return f.payment, nil
	}
	return &razorpay.Payment{
		ID:       paymentID,
		Amount:   14800,
		Currency: "INR",
		Status:   "captured",
		Method:   "upi",
		Notes:    json.RawMessage(`{"courseIds":"c1,c2"}`),
		Raw:      json.RawMessage(`{"id":"` + paymentID + `"}`),
	}, nil
}

// fakeUsers mimics the GORM store, including the (user, course) unique
// constraint enforced inside CommitEnrollment
type fakeUsers struct {
	mu          sync.Mutex
	users       map[uint]*model.User
	nextID      uint
	findCalls   int
	commitCalls int
	findErr     error
	commitErr   error
	// staleFind hides existing enrollments from FindUser to simulate a
	// concurrent commit landing between the read and the write
	staleFind bool
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: map[uint]*model.User{}, nextID: 100}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) lookup(id uint, email string) *model.User {
	if id != 0 {
		return f.users[id]
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) FindUser(_ context.Context, id uint, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	u := f.lookup(id, email)
	if u == nil {
		return nil, database.ErrNotFound
	}
	clone := *u
	clone.Enrollments = append([]model.Enrollment(nil), u.Enrollments...)
	if f.staleFind {
		clone.Enrollments = nil
	}
	return &clone, nil
}

func (f *fakeUsers) CommitEnrollment(_ context.Context, commit database.EnrollmentCommit) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commitCalls++
	if f.commitErr != nil {
		return nil, f.commitErr
	}

	u := f.lookup(commit.UserID, commit.Email)
	if u == nil {
		if !commit.CreateIfMissing {
			return nil, database.ErrNotFound
		}
		f.nextID++
		u = &model.User{ID: f.nextID, Email: strings.ToLower(commit.Email), Name: commit.Name, Role: "student"}
		f.users[u.ID] = u
	}

	for _, e := range commit.Enrollments {
		for _, held := range u.Enrollments {
			if held.CourseID == e.CourseID {
				return nil, database.ErrDuplicateEnrollment
			}
		}
	}

	for _, e := range commit.Enrollments {
		e.UserID = u.ID
		e.ID = uint(len(u.Enrollments) + 1)
		u.Enrollments = append(u.Enrollments, e)
	}
	u.EnrolledCourse = true
	u.Progress = 0
	tx := commit.TransactionID
	u.TransactionID = &tx
	if commit.Name != "" {
		u.Name = commit.Name
	}

	clone := *u
	clone.Enrollments = append([]model.Enrollment(nil), u.Enrollments...)
	return &clone, nil
}

type fakePayments struct {
	records     []*model.PaymentRecord
	createErr   error
	backfillErr error
	backfills   []uint
}

func (f *fakePayments) CreatePaymentRecord(_ context.Context, record *model.PaymentRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakePayments) BackfillPaymentUser(_ context.Context, email string, userID uint) (int64, error) {
	if f.backfillErr != nil {
		return 0, f.backfillErr
	}
	f.backfills = append(f.backfills, userID)
	var n int64
	for _, r := range f.records {
		if r.UserID == nil && strings.EqualFold(r.Email, email) {
			id := userID
			r.UserID = &id
			n++
		}
	}
	return n, nil
}

type fakeLocker struct {
	held     map[string]string
	err      error
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (f *fakeLocker) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = value.(string)
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	if f.held[key] == token {
		delete(f.held, key)
		f.released = append(f.released, key)
	}
	return nil
}

type fakePublisher struct {
	events []events.EnrollmentEvent
	err    error
}

func (f *fakePublisher) PublishEnrollment(_ context.Context, event events.EnrollmentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeReceipts struct {
	receipts []receipts.Receipt
	err      error
}

func (f *fakeReceipts) Archive(_ context.Context, receipt receipts.Receipt) error {
	if f.err != nil {
		return f.err
	}
	f.receipts = append(f.receipts, receipt)
	return nil
}

func testCourses() []model.Course {
	return []model.Course{
		{ID: "c1", Title: "DSA Bootcamp", Price: 9900, IsActive: true},
		{ID: "c2", Title: "Aptitude Sprint", Price: 4900, IsActive: true},
		{ID: "c3", Title: "System Design Basics", Price: 19900, IsActive: false},
	}
}
