package billing

import (
	"context"
	"time"
)

// CheckoutSession mirrors a Polar checkout locally for status tracking.
// It is created when a checkout is initiated and updated by webhooks;
// sessions are never deleted.
type CheckoutSession struct {
	// CheckoutID is the external id assigned by Polar.
	CheckoutID string `json:"checkout_id"`

	// ProductID is the product (or product price) the checkout was opened for.
	ProductID string `json:"product_id"`

	// CustomerEmail is the email supplied at checkout creation, if any.
	CustomerEmail string `json:"customer_email,omitempty"`

	// Status is the provider's free-text status ("created", "open",
	// "completed", ...).
	Status string `json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Order is a purchase record keyed by Polar's external order id.
// Amount, currency, customer and product are immutable after creation;
// only the status changes on subsequent webhook deliveries.
type Order struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`

	// Amount is in minor currency units (cents).
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`

	// Status is free text from the provider ("paid", "refunded", ...).
	Status string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// Subscription is a recurring billing agreement keyed by Polar's external
// subscription id.
type Subscription struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	ProductID      string `json:"product_id"`
	Status         string `json:"status"`

	// Period bounds are nil when the provider did not report them.
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	// CancelAtPeriodEnd is nil until a cancel/reactivate action sets it.
	// The generic subscription webhook path never touches it.
	CancelAtPeriodEnd *bool `json:"cancel_at_period_end,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// SubscriptionUpdate carries the fields the subscription webhook path is
// allowed to change. A nil period pointer leaves the stored value unchanged
// rather than clearing it.
type SubscriptionUpdate struct {
	SubscriptionID     string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// Store is the persistence interface for the three local collections.
// Lookups are by external id. Update operations return ErrNotFound when no
// record matches, so a lookup miss is an explicit outcome for callers instead
// of a silent fallthrough.
//
// At most one record per external id per collection is intended but only
// guarded by the caller's read-before-write check. Implementations may
// additionally enforce uniqueness and return ErrDuplicate from Create; the
// postgres adapter does.
type Store interface {
	// Checkout sessions.
	CreateCheckoutSession(ctx context.Context, session *CheckoutSession) error
	GetCheckoutSession(ctx context.Context, checkoutID string) (*CheckoutSession, error)
	UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error
	ListCheckoutSessions(ctx context.Context, limit int) ([]*CheckoutSession, error)

	// Orders.
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	ListOrders(ctx context.Context, limit int) ([]*Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*Order, error)

	// Subscriptions.
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, update SubscriptionUpdate) error
	SetSubscriptionCancellation(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) error
	ListSubscriptions(ctx context.Context, limit int) ([]*Subscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int) ([]*Subscription, error)
}

// DefaultListLimit is applied when a list operation is called with a
// non-positive limit.
const DefaultListLimit = 10
