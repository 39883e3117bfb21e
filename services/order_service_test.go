package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/placementpulse/api/services/razorpay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_CreateOrder_TotalFromCatalog(t *testing.T) {
	catalog := newFakeCatalog(testCourses()...)
	gateway := &fakeGateway{}
	svc := NewOrderService(catalog, gateway, "INR", nil)

	order, err := svc.CreateOrder(context.Background(), []string{"c1", "c2"}, "")
	require.NoError(t, err)

	assert.Equal(t, int64(14800), order.Amount)
	require.Len(t, gateway.orders, 1)

	req := gateway.orders[0]
	assert.Equal(t, int64(14800), req.Amount)
	assert.Equal(t, "INR", req.Currency)
	assert.Regexp(t, `^rcpt_\d+_[0-9a-f]{8}$`, req.Receipt)
	assert.Equal(t, "c1,c2", req.Notes["courseIds"])
	assert.Equal(t, 2, req.Notes["count"])
}

func TestOrderService_CreateOrder_DedupesIDs(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewOrderService(newFakeCatalog(testCourses()...), gateway, "INR", nil)

	_, err := svc.CreateOrder(context.Background(), []string{"c1", " c1 ", "c2", ""}, "inr")
	require.NoError(t, err)

	require.Len(t, gateway.orders, 1)
	assert.Equal(t, int64(14800), gateway.orders[0].Amount)
	assert.Equal(t, "INR", gateway.orders[0].Currency)
}

func TestOrderService_CreateOrder_UniqueReceipts(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewOrderService(newFakeCatalog(testCourses()...), gateway, "INR", nil)

	for i := 0; i < 5; i++ {
		_, err := svc.CreateOrder(context.Background(), []string{"c1"}, "")
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, o := range gateway.orders {
		assert.False(t, seen[o.Receipt])
		seen[o.Receipt] = true
	}
}

func TestOrderService_CreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name         string
		ids          []string
		currency     string
		gateway      *fakeGateway
		noGateway    bool
		catalogErr   error
		wantKind     ErrorKind
		wantStatus   int
		wantMessage  string
		wantDBCalled bool
	}{
		{
			name:        "empty ids",
			ids:         nil,
			gateway:     &fakeGateway{},
			wantKind:    KindValidation,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing or invalid course IDs",
		},
		{
			name:        "blank ids",
			ids:         []string{" ", ""},
			gateway:     &fakeGateway{},
			wantKind:    KindValidation,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing or invalid course IDs",
		},
		{
			name:        "unsupported currency",
			ids:         []string{"c1"},
			currency:    "XYZ",
			gateway:     &fakeGateway{},
			wantKind:    KindValidation,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Unsupported currency",
		},
		{
			name:        "missing credentials",
			ids:         []string{"c1"},
			noGateway:   true,
			wantKind:    KindConfiguration,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Missing Razorpay credentials",
		},
		{
			name:         "inactive course",
			ids:          []string{"c1", "c3"},
			gateway:      &fakeGateway{},
			wantKind:     KindNotFound,
			wantStatus:   http.StatusNotFound,
			wantMessage:  "One or more courses not found or inactive",
			wantDBCalled: true,
		},
		{
			name:         "no course matches",
			ids:          []string{"nope"},
			gateway:      &fakeGateway{},
			wantKind:     KindNotFound,
			wantStatus:   http.StatusNotFound,
			wantMessage:  "One or more courses not found or inactive",
			wantDBCalled: true,
		},
		{
			name:         "catalog failure",
			ids:          []string{"c1"},
			gateway:      &fakeGateway{},
			catalogErr:   errors.New("connection refused"),
			wantKind:     KindUpstream,
			wantStatus:   http.StatusInternalServerError,
			wantMessage:  "Failed to load courses: connection refused",
			wantDBCalled: true,
		},
		{
			name:         "gateway failure",
			ids:          []string{"c1"},
			gateway:      &fakeGateway{orderErr: &razorpay.APIError{StatusCode: 401, Code: "BAD_REQUEST_ERROR", Description: "Authentication failed"}},
			wantKind:     KindUpstream,
			wantStatus:   http.StatusInternalServerError,
			wantMessage:  "Failed to create bulk order: razorpay API error BAD_REQUEST_ERROR (status 401): Authentication failed",
			wantDBCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog(testCourses()...)
			catalog.err = tt.catalogErr

			var gateway Gateway
			if !tt.noGateway {
				gateway = tt.gateway
			}
			svc := NewOrderService(catalog, gateway, "INR", nil)

			order, err := svc.CreateOrder(context.Background(), tt.ids, tt.currency)
			require.Error(t, err)
			assert.Nil(t, order)

			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.wantStatus, StatusCode(err))
			assert.Equal(t, tt.wantMessage, PublicMessage(err))
			assert.Equal(t, tt.wantDBCalled, catalog.calls > 0)
		})
	}
}

func TestOrderNotes_LargeCart(t *testing.T) {
	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("placement-course-%03d", i)
	}

	notes := orderNotes(ids)

	assert.Equal(t, 40, notes["count"])
	assert.Len(t, notes, 5)

	var joined []string
	for _, key := range []string{"courseIds", "courseIds_2", "courseIds_3", "courseIds_4"} {
		value, ok := notes[key].(string)
		require.True(t, ok, key)
		assert.LessOrEqual(t, len(value), 256, key)
		joined = append(joined, strings.Split(value, ",")...)
	}
	assert.Equal(t, ids, joined)
}

func TestOrderNotes_KeyLimit(t *testing.T) {
	ids := make([]string, 300)
	for i := range ids {
		ids[i] = fmt.Sprintf("placement-course-%03d", i)
	}

	notes := orderNotes(ids)

	assert.Len(t, notes, 15)
	assert.Equal(t, 300, notes["count"])
	for key, value := range notes {
		if s, ok := value.(string); ok {
			assert.LessOrEqual(t, len(s), 256, key)
		}
	}
}
