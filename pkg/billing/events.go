package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventFamily groups provider event names by their prefix. Each family has
// one typed payload shape.
type EventFamily string

const (
	FamilyOrder        EventFamily = "order"
	FamilySubscription EventFamily = "subscription"
	FamilyCheckout     EventFamily = "checkout"
	FamilyCustomer     EventFamily = "customer"
	FamilyRefund       EventFamily = "refund"
	FamilyUnknown      EventFamily = "unknown"
)

// Event is the webhook envelope. Polar sends the event name in the "type"
// field; an older deployment variant used "event". Both are accepted, "type"
// wins when both are present.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type eventEnvelope struct {
	Type       string          `json:"type"`
	LegacyType string          `json:"event"`
	Data       json.RawMessage `json:"data"`
}

// ParseEvent decodes a webhook body into an Event.
func ParseEvent(body []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}

	eventType := env.Type
	if eventType == "" {
		eventType = env.LegacyType
	}
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidWebhookPayload)
	}

	return &Event{Type: eventType, Data: env.Data}, nil
}

// Family returns the event family derived from the event-name prefix.
// The match is exact and case-sensitive, like the provider's vocabulary.
func (e *Event) Family() EventFamily {
	switch {
	case strings.HasPrefix(e.Type, "order."):
		return FamilyOrder
	case strings.HasPrefix(e.Type, "subscription."):
		return FamilySubscription
	case strings.HasPrefix(e.Type, "checkout."):
		return FamilyCheckout
	case strings.HasPrefix(e.Type, "customer."):
		return FamilyCustomer
	case strings.HasPrefix(e.Type, "refund."):
		return FamilyRefund
	default:
		return FamilyUnknown
	}
}

// OrderEventData is the payload carried by order.* events.
type OrderEventData struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`

	// CheckoutID links the order back to the checkout session it completed.
	// Optional; empty when the order was not created through a checkout.
	CheckoutID string `json:"checkout_id"`
}

// SubscriptionEventData is the payload carried by subscription.* events.
// Absent period bounds decode to nil and must not clear stored values.
type SubscriptionEventData struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	ProductID          string     `json:"product_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

// CheckoutEventData is the payload carried by checkout.* events.
type CheckoutEventData struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	CustomerEmail string `json:"customer_email"`
	Status        string `json:"status"`
}

// CustomerEventData is the payload carried by customer.* events. Customer
// events are logged but not persisted.
type CustomerEventData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RefundEventData is the payload carried by refund.* events (logged only;
// the order row is corrected by the matching order.refunded delivery).
type RefundEventData struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
}

// OrderData decodes the payload as an order event.
func (e *Event) OrderData() (*OrderEventData, error) {
	var d OrderEventData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("%w: order data: %v", ErrInvalidWebhookPayload, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("%w: order data missing id", ErrInvalidWebhookPayload)
	}
	return &d, nil
}

// SubscriptionData decodes the payload as a subscription event.
func (e *Event) SubscriptionData() (*SubscriptionEventData, error) {
	var d SubscriptionEventData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("%w: subscription data: %v", ErrInvalidWebhookPayload, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("%w: subscription data missing id", ErrInvalidWebhookPayload)
	}
	return &d, nil
}

// CheckoutData decodes the payload as a checkout event.
func (e *Event) CheckoutData() (*CheckoutEventData, error) {
	var d CheckoutEventData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("%w: checkout data: %v", ErrInvalidWebhookPayload, err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("%w: checkout data missing id", ErrInvalidWebhookPayload)
	}
	return &d, nil
}

// CustomerData decodes the payload as a customer event.
func (e *Event) CustomerData() (*CustomerEventData, error) {
	var d CustomerEventData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("%w: customer data: %v", ErrInvalidWebhookPayload, err)
	}
	return &d, nil
}

// RefundData decodes the payload as a refund event.
func (e *Event) RefundData() (*RefundEventData, error) {
	var d RefundEventData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("%w: refund data: %v", ErrInvalidWebhookPayload, err)
	}
	return &d, nil
}
