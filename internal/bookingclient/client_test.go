package bookingclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payment-processor/config"
	"payment-processor/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*config.BookingConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.BookingConfig{BaseURL: srv.URL + "/", Timeout: time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg)
}

func TestRequest_SendsJSONAndParsesResponse(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/seats/A1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"A1","status":"SOLD"}`))
	})

	resp, err := c.Request(context.Background(), http.MethodPatch, "/api/v1/seats/A1", models.SeatStatusUpdate{Status: "SOLD"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "A1", "status": "SOLD"}, resp.Value)
	assert.Equal(t, "SOLD", gotBody["status"])
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
	assert.Empty(t, gotHeaders.Get(internalSecretHeader))
	assert.Empty(t, gotHeaders.Get("Authorization"))
}

func TestRequest_NonJSONBodyIsReturnedAsText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("seat updated"))
	})

	resp, err := c.Request(context.Background(), http.MethodPatch, "/api/v1/seats/A1", nil)
	require.NoError(t, err)
	assert.Equal(t, "seat updated", resp.Value)
}

func TestRequest_EmptyBodyIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := c.Request(context.Background(), http.MethodPatch, "/api/v1/events/availability/e1", nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Value)
}

func TestRequest_NonSuccessStatusIsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad seat"}`))
	})

	_, err := c.Request(context.Background(), http.MethodPatch, "/api/v1/seats/A1", nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, map[string]any{"error": "bad seat"}, httpErr.Body)
	assert.Equal(t, http.MethodPatch, httpErr.Method)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRequest_ServerErrorWithTextBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/booking-orders", nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "boom\n", httpErr.Body)
}

func TestRequest_TimeoutIsDistinguishable(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *config.BookingConfig) {
		cfg.Timeout = 50 * time.Millisecond
	})
	defer close(release)

	_, err := c.Request(context.Background(), http.MethodPost, "/api/v1/tickets", models.TicketRequest{OrderID: "o1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestRequest_ConnectionErrorIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(config.BookingConfig{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/booking-orders", nil)

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRequest_AddsServiceCredentials(t *testing.T) {
	var secret, authz string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get(internalSecretHeader)
		authz = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}, func(cfg *config.BookingConfig) {
		cfg.InternalSecret = "shh"
		cfg.JWTSecret = "jwt-secret"
	})

	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/booking-orders", nil)
	require.NoError(t, err)

	assert.Equal(t, "shh", secret)
	require.True(t, strings.HasPrefix(authz, "Bearer "))

	claims := &systemClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(authz, "Bearer "), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("jwt-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "system", claims.Role)
	assert.Equal(t, "payment-processor", claims.Subject)
}

func TestListBookingOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"o1","paymentProviderId":"pi_1","status":"PENDING"},{"id":42},"junk"]`))
	})

	orders, err := c.ListBookingOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "pi_1", orders[0].PaymentProviderID)
	assert.Equal(t, "42", orders[1].ID)
}

func TestListBookingOrders_NonArrayIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":"nope"}`))
	})

	orders, err := c.ListBookingOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateBookingOrder(t *testing.T) {
	var got models.CreateBookingOrderRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/booking-orders", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"new-order","userId":"u1"}}`))
	})

	order, err := c.CreateBookingOrder(context.Background(), models.CreateBookingOrderRequest{
		UserID: "u1", Amount: 20, Status: models.OutcomeCompleted, SeatIDs: []string{"A1"}, PaymentProviderID: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-order", order.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, []string{"A1"}, got.SeatIDs)
}

func TestCreateBookingOrder_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	_, err := c.CreateBookingOrder(context.Background(), models.CreateBookingOrderRequest{UserID: "u1"})
	assert.Error(t, err)
}

func TestEndpointHelpersEscapeIDs(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	require.NoError(t, c.MarkSeatSold(ctx, "A 1"))
	require.NoError(t, c.RefreshAvailability(ctx, "ev/1"))
	require.NoError(t, c.UpdateBookingOrder(ctx, "o1", models.UpdateBookingOrderRequest{Status: models.OutcomeCompleted}))

	assert.Equal(t, []string{
		"PATCH /api/v1/seats/A%201",
		"PATCH /api/v1/events/availability/ev%2F1",
		"PATCH /api/v1/booking-orders/o1",
	}, paths)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/api/v1/seats/:id", endpointLabel("/api/v1/seats/A1"))
	assert.Equal(t, "/api/v1/events/availability/:id", endpointLabel("/api/v1/events/availability/e1"))
	assert.Equal(t, "/api/v1/booking-orders", endpointLabel("/api/v1/booking-orders"))
	assert.Equal(t, "/api/v1/booking-orders/:id", endpointLabel("/api/v1/booking-orders/o1"))
}
