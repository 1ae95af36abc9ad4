package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"payment-processor/config"
	"payment-processor/internal/bookingclient"
	"payment-processor/internal/models"

	"github.com/stretchr/testify/mock"
)

// bookingCall is one request seen by the fake booking service
type bookingCall struct {
	Method string
	Path   string
	Body   map[string]any
}

func (c bookingCall) String() string { return c.Method + " " + c.Path }

// fakeBooking is an in-memory booking service that records every call
type fakeBooking struct {
	mu       sync.Mutex
	calls    []bookingCall
	failures map[string]int
	orders   string
}

func newFakeBooking(t *testing.T) (*fakeBooking, *bookingclient.Client) {
	t.Helper()
	fb := &fakeBooking{failures: map[string]int{}, orders: `[]`}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)

	client := bookingclient.NewClient(config.BookingConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	return fb, client
}

func (fb *fakeBooking) setOrders(raw string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.orders = raw
}

// failOn makes "METHOD /path" answer with status
func (fb *fakeBooking) failOn(route string, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[route] = status
}

func (fb *fakeBooking) serve(w http.ResponseWriter, r *http.Request) {
	call := bookingCall{Method: r.Method, Path: r.URL.Path}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &call.Body)
	}

	fb.mu.Lock()
	fb.calls = append(fb.calls, call)
	status, fail := fb.failures[call.String()]
	orders := fb.orders
	fb.mu.Unlock()

	if fail {
		http.Error(w, `{"error":"unavailable"}`, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/booking-orders":
		_, _ = w.Write([]byte(orders))
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/booking-orders":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"created-order"}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func (fb *fakeBooking) recorded() []bookingCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]bookingCall(nil), fb.calls...)
}

func (fb *fakeBooking) routes() []string {
	var out []string
	for _, c := range fb.recorded() {
		out = append(out, c.String())
	}
	return out
}

func (fb *fakeBooking) find(route string) (bookingCall, bool) {
	for _, c := range fb.recorded() {
		if c.String() == route {
			return c, true
		}
	}
	return bookingCall{}, false
}

func (fb *fakeBooking) count(prefix string) int {
	n := 0
	for _, r := range fb.routes() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

type mockPayerLookup struct {
	mock.Mock
}

func (m *mockPayerLookup) LookupPayer(ctx context.Context, paymentProviderID string) (*models.Payer, error) {
	args := m.Called(ctx, paymentProviderID)
	payer, _ := args.Get(0).(*models.Payer)
	return payer, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, lockKey, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockLocker) ReleaseLock(ctx context.Context, lockKey, token string) error {
	args := m.Called(ctx, lockKey, token)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishPaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockOrderLister struct {
	mock.Mock
}

func (m *mockOrderLister) ListBookingOrders(ctx context.Context) ([]models.BookingOrder, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]models.BookingOrder)
	return orders, args.Error(1)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, event *models.PaymentEvent) (*ReconcileResult, error) {
	args := m.Called(ctx, event)
	res, _ := args.Get(0).(*ReconcileResult)
	return res, args.Error(1)
}
