package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome is the result of a single reconciliation.
type Outcome string

const (
	// OutcomeCreated means a new record was inserted.
	OutcomeCreated Outcome = "created"

	// OutcomeUpdated means an existing record was patched.
	OutcomeUpdated Outcome = "updated"

	// OutcomeSkipped means an update-only path found no record for the
	// external id. This is not an error; the delivery is acknowledged.
	OutcomeSkipped Outcome = "skipped"
)

const (
	defaultOrderStatus   = "paid"
	defaultOrderCurrency = "USD"
	checkoutCompleted    = "completed"
)

// Reconciler applies webhook payloads to the local store using an
// existence-check-then-write per external id.
//
// The read and the write are not atomic: two concurrent deliveries for the
// same new external id can both miss the existence check and both insert.
// Backends without a uniqueness constraint will then hold duplicate rows
// (at-least-once semantics, inherited from the source design). Backends that
// return ErrDuplicate from Create make the loser of the race fall back to the
// update path.
type Reconciler struct {
	store   Store
	logger  Logger
	metrics Metrics
}

// ReconcilerConfig holds Reconciler dependencies.
type ReconcilerConfig struct {
	// Store is the persistence backend (required).
	Store Store

	// Logger is optional; if nil, logging is silently dropped.
	Logger Logger

	// Metrics is optional; if nil, metrics are silently dropped.
	Metrics Metrics
}

// NewReconciler creates a Reconciler.
func NewReconciler(config ReconcilerConfig) (*Reconciler, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNotConfigured)
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	return &Reconciler{
		store:   config.Store,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// ApplyOrder reconciles an order.* payload. A previously-unseen order id
// inserts a full row; a known id updates status only - amount, currency,
// customer and product are immutable after creation. When the payload links
// a checkout session, that session is marked completed as a side effect
// (lookup miss there is logged and skipped, never an error).
func (r *Reconciler) ApplyOrder(ctx context.Context, data *OrderEventData) (Outcome, error) {
	outcome, err := r.upsertOrder(ctx, data)
	if err != nil {
		return outcome, err
	}
	r.metrics.RecordReconcileOutcome("order", string(outcome))

	if data.CheckoutID != "" {
		checkoutOutcome, err := r.completeCheckout(ctx, data.CheckoutID)
		if err != nil {
			return outcome, err
		}
		if checkoutOutcome == OutcomeSkipped {
			r.logger.Debug("no checkout session for order",
				Field{Key: "order_id", Value: data.ID},
				Field{Key: "checkout_id", Value: data.CheckoutID})
		}
	}

	return outcome, nil
}

func (r *Reconciler) upsertOrder(ctx context.Context, data *OrderEventData) (Outcome, error) {
	status := data.Status
	if status == "" {
		status = defaultOrderStatus
	}

	existing, err := r.store.GetOrder(ctx, data.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("failed to look up order %s: %w", data.ID, err)
	}

	if existing != nil {
		if err := r.store.UpdateOrderStatus(ctx, data.ID, status); err != nil {
			return "", fmt.Errorf("failed to update order %s: %w", data.ID, err)
		}
		return OutcomeUpdated, nil
	}

	currency := data.Currency
	if currency == "" {
		currency = defaultOrderCurrency
	}

	order := &Order{
		OrderID:    data.ID,
		CustomerID: data.CustomerID,
		ProductID:  data.ProductID,
		Amount:     data.Amount,
		Currency:   currency,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a create race against a concurrent delivery; the row
			// exists now, so retry as an update.
			if err := r.store.UpdateOrderStatus(ctx, data.ID, status); err != nil {
				return "", fmt.Errorf("failed to update order %s after create race: %w", data.ID, err)
			}
			return OutcomeUpdated, nil
		}
		return "", fmt.Errorf("failed to create order %s: %w", data.ID, err)
	}

	return OutcomeCreated, nil
}

func (r *Reconciler) completeCheckout(ctx context.Context, checkoutID string) (Outcome, error) {
	err := r.store.UpdateCheckoutStatus(ctx, checkoutID, checkoutCompleted)
	if errors.Is(err, ErrNotFound) {
		r.metrics.RecordReconcileOutcome("checkout", string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to complete checkout %s: %w", checkoutID, err)
	}
	r.metrics.RecordReconcileOutcome("checkout", string(OutcomeUpdated))
	return OutcomeUpdated, nil
}

// ApplySubscription reconciles a subscription.* payload. A previously-unseen
// subscription id inserts a full row; a known id updates status and, when the
// payload carries them, the period bounds. Customer and product ids are never
// rewritten, and the cancellation flag is only touched by the cancel and
// reactivate actions.
func (r *Reconciler) ApplySubscription(ctx context.Context, data *SubscriptionEventData) (Outcome, error) {
	existing, err := r.store.GetSubscription(ctx, data.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("failed to look up subscription %s: %w", data.ID, err)
	}

	if existing != nil {
		update := SubscriptionUpdate{
			SubscriptionID:     data.ID,
			Status:             data.Status,
			CurrentPeriodStart: data.CurrentPeriodStart,
			CurrentPeriodEnd:   data.CurrentPeriodEnd,
		}
		if err := r.store.UpdateSubscription(ctx, update); err != nil {
			return "", fmt.Errorf("failed to update subscription %s: %w", data.ID, err)
		}
		r.metrics.RecordReconcileOutcome("subscription", string(OutcomeUpdated))
		return OutcomeUpdated, nil
	}

	sub := &Subscription{
		SubscriptionID:     data.ID,
		CustomerID:         data.CustomerID,
		ProductID:          data.ProductID,
		Status:             data.Status,
		CurrentPeriodStart: data.CurrentPeriodStart,
		CurrentPeriodEnd:   data.CurrentPeriodEnd,
		CreatedAt:          time.Now().UTC(),
	}

	if err := r.store.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, ErrDuplicate) {
			update := SubscriptionUpdate{
				SubscriptionID:     data.ID,
				Status:             data.Status,
				CurrentPeriodStart: data.CurrentPeriodStart,
				CurrentPeriodEnd:   data.CurrentPeriodEnd,
			}
			if err := r.store.UpdateSubscription(ctx, update); err != nil {
				return "", fmt.Errorf("failed to update subscription %s after create race: %w", data.ID, err)
			}
			r.metrics.RecordReconcileOutcome("subscription", string(OutcomeUpdated))
			return OutcomeUpdated, nil
		}
		return "", fmt.Errorf("failed to create subscription %s: %w", data.ID, err)
	}

	r.metrics.RecordReconcileOutcome("subscription", string(OutcomeCreated))
	return OutcomeCreated, nil
}

// ApplyCheckout reconciles a checkout.* payload: an unconditional status
// overwrite on the matching session. A lookup miss is an explicit skip.
func (r *Reconciler) ApplyCheckout(ctx context.Context, data *CheckoutEventData) (Outcome, error) {
	err := r.store.UpdateCheckoutStatus(ctx, data.ID, data.Status)
	if errors.Is(err, ErrNotFound) {
		r.metrics.RecordReconcileOutcome("checkout", string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to update checkout %s: %w", data.ID, err)
	}
	r.metrics.RecordReconcileOutcome("checkout", string(OutcomeUpdated))
	return OutcomeUpdated, nil
}
