package bookingclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"payment-processor/internal/models"
)

const (
	seatsPath         = "/api/v1/seats/"
	bookingOrdersPath = "/api/v1/booking-orders"
	availabilityPath  = "/api/v1/events/availability/"
	checkoutsPath     = "/api/v1/checkouts"
	ticketsPath       = "/api/v1/tickets"
)

// MarkSeatSold sets a seat's status to SOLD
func (c *Client) MarkSeatSold(ctx context.Context, seatID string) error {
	_, err := c.Request(ctx, http.MethodPatch, seatsPath+url.PathEscape(seatID),
		models.SeatStatusUpdate{Status: models.SeatStatusSold})
	return err
}

// ListBookingOrders returns every order the booking service knows about.
// A body that is not a JSON array yields an empty list.
func (c *Client) ListBookingOrders(ctx context.Context) ([]models.BookingOrder, error) {
	resp, err := c.Request(ctx, http.MethodGet, bookingOrdersPath, nil)
	if err != nil {
		return nil, err
	}

	items, ok := resp.Value.([]any)
	if !ok {
		return nil, nil
	}

	orders := make([]models.BookingOrder, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		orders = append(orders, orderFromMap(m))
	}
	return orders, nil
}

// CreateBookingOrder creates an order and returns it as stored
func (c *Client) CreateBookingOrder(ctx context.Context, req models.CreateBookingOrderRequest) (*models.BookingOrder, error) {
	resp, err := c.Request(ctx, http.MethodPost, bookingOrdersPath, req)
	if err != nil {
		return nil, err
	}

	m, ok := resp.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected create order response: %v", resp.Value)
	}
	if data, ok := m["data"].(map[string]any); ok {
		m = data
	}

	order := orderFromMap(m)
	if order.ID == "" {
		return nil, fmt.Errorf("create order response has no id")
	}
	return &order, nil
}

// UpdateBookingOrder sets an order's status and provider id
func (c *Client) UpdateBookingOrder(ctx context.Context, orderID string, req models.UpdateBookingOrderRequest) error {
	_, err := c.Request(ctx, http.MethodPatch, bookingOrdersPath+"/"+url.PathEscape(orderID), req)
	return err
}

// RefreshAvailability asks the booking service to recompute an event's free seats
func (c *Client) RefreshAvailability(ctx context.Context, eventID string) error {
	_, err := c.Request(ctx, http.MethodPatch, availabilityPath+url.PathEscape(eventID), nil)
	return err
}

// CreateCheckout records the payer's checkout
func (c *Client) CreateCheckout(ctx context.Context, req models.CheckoutRequest) error {
	_, err := c.Request(ctx, http.MethodPost, checkoutsPath, req)
	return err
}

// CreateTicket issues the ticket of an order
func (c *Client) CreateTicket(ctx context.Context, orderID string) error {
	_, err := c.Request(ctx, http.MethodPost, ticketsPath, models.TicketRequest{OrderID: orderID})
	return err
}

func orderFromMap(m map[string]any) models.BookingOrder {
	return models.BookingOrder{
		ID:                stringOf(m["id"]),
		UserID:            stringOf(m["userId"]),
		Status:            stringOf(m["status"]),
		PaymentProviderID: stringOf(m["paymentProviderId"]),
	}
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}
