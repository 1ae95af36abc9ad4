// Package normalizer turns the payment notification shapes the processor
// accepts into a single canonical models.PaymentEvent.
//
// Two shapes are recognized, checked in this order:
//
//   - the internal booking message enqueued by the booking service
//     (userId + seatIds at the top level, amounts in major units)
//   - a provider webhook envelope (type + data.object, amounts in minor units)
package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"payment-processor/internal/models"

	"github.com/shopspring/decimal"
)

// Normalize converts a decoded JSON body into a canonical event.
// It returns nil when the body matches neither supported shape.
func Normalize(body map[string]any) *models.PaymentEvent {
	if body == nil {
		return nil
	}

	if isBookingMessage(body) {
		return &models.PaymentEvent{
			UserID:            stringField(body, "userId"),
			Amount:            decimalField(body["amount"]),
			RawStatus:         stringField(body, "status"),
			SeatIDs:           ParseSeatIDs(body["seatIds"]),
			EventID:           stringField(body, "eventId"),
			PaymentProviderID: stringField(body, "paymentProviderId"),
			OrderID:           stringField(body, "orderId"),
			Currency:          currency(stringField(body, "currency")),
			Source:            models.SourceInternal,
			ProviderEventID:   stringField(body, "stripeEventId"),
			ProviderEventType: stringField(body, "stripeEventType"),
		}
	}

	if obj, ok := providerObject(body); ok {
		meta, _ := obj["metadata"].(map[string]any)

		amount := obj["amount_total"]
		if decimalField(amount).IsZero() {
			amount = obj["amount"]
		}

		status := stringField(obj, "payment_status")
		if status == "" {
			status = stringField(obj, "status")
		}

		providerID := stringField(obj, "payment_intent")
		if providerID == "" {
			providerID = stringField(obj, "id")
		}
		if providerID == "" {
			providerID = stringField(body, "id")
		}

		return &models.PaymentEvent{
			UserID:            stringField(meta, "user_id"),
			Amount:            decimalField(amount).Shift(-2),
			RawStatus:         status,
			SeatIDs:           ParseSeatIDs(meta["seat_ids"]),
			EventID:           stringField(meta, "event_id"),
			PaymentProviderID: providerID,
			OrderID:           stringField(meta, "order_id"),
			Currency:          currency(stringField(obj, "currency")),
			Source:            models.SourceProvider,
			ProviderEventID:   stringField(body, "id"),
			ProviderEventType: stringField(body, "type"),
		}
	}

	return nil
}

// ParseSeatIDs accepts a list or a comma separated string and returns the
// trimmed, non-empty seat identifiers in their original order.
func ParseSeatIDs(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			parts = append(parts, scalarString(item))
		}
	case []string:
		parts = v
	case string:
		parts = strings.Split(v, ",")
	default:
		return nil
	}

	seats := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			seats = append(seats, s)
		}
	}
	return seats
}

func isBookingMessage(body map[string]any) bool {
	return truthy(body["userId"]) && truthy(body["seatIds"])
}

func providerObject(body map[string]any) (map[string]any, bool) {
	if stringField(body, "type") == "" {
		return nil, false
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	obj, ok := data["object"].(map[string]any)
	return obj, ok
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	default:
		return true
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(scalarString(m[key]))
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return decimal.NewFromFloat(t).String()
	default:
		return fmt.Sprint(t)
	}
}

// decimalField reads a JSON number or numeric string; anything else is zero.
func decimalField(v any) decimal.Decimal {
	switch t := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func currency(raw string) string {
	if raw == "" {
		return models.DefaultCurrency
	}
	return strings.ToLower(raw)
}
