// Package firestore provides a Firestore implementation of the billing.Store
// interface. Documents are keyed by external id, which is the closest
// document-store analog of an indexed equality lookup.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

// Store implements billing.Store using Google Cloud Firestore.
type Store struct {
	client                  *firestore.Client
	checkoutsCollection     string
	ordersCollection        string
	subscriptionsCollection string
}

// Config holds Firestore storage configuration.
type Config struct {
	// CheckoutsCollection is the collection for checkout sessions.
	// Default: "polar_checkout_sessions"
	CheckoutsCollection string

	// OrdersCollection is the collection for orders.
	// Default: "polar_orders"
	OrdersCollection string

	// SubscriptionsCollection is the collection for subscriptions.
	// Default: "polar_subscriptions"
	SubscriptionsCollection string
}

// New creates a new Firestore store.
func New(client *firestore.Client, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	checkouts := config.CheckoutsCollection
	if checkouts == "" {
		checkouts = "polar_checkout_sessions"
	}
	orders := config.OrdersCollection
	if orders == "" {
		orders = "polar_orders"
	}
	subscriptions := config.SubscriptionsCollection
	if subscriptions == "" {
		subscriptions = "polar_subscriptions"
	}

	return &Store{
		client:                  client,
		checkoutsCollection:     checkouts,
		ordersCollection:        orders,
		subscriptionsCollection: subscriptions,
	}, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return billing.DefaultListLimit
	}
	return limit
}

type checkoutDoc struct {
	CheckoutID    string     `firestore:"checkout_id"`
	ProductID     string     `firestore:"product_id"`
	CustomerEmail string     `firestore:"customer_email,omitempty"`
	Status        string     `firestore:"status"`
	CreatedAt     time.Time  `firestore:"created_at"`
	UpdatedAt     *time.Time `firestore:"updated_at,omitempty"`
}

type orderDoc struct {
	OrderID    string    `firestore:"order_id"`
	CustomerID string    `firestore:"customer_id"`
	ProductID  string    `firestore:"product_id"`
	Amount     int64     `firestore:"amount"`
	Currency   string    `firestore:"currency"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"created_at"`
}

type subscriptionDoc struct {
	SubscriptionID     string     `firestore:"subscription_id"`
	CustomerID         string     `firestore:"customer_id"`
	ProductID          string     `firestore:"product_id"`
	Status             string     `firestore:"status"`
	CurrentPeriodStart *time.Time `firestore:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `firestore:"current_period_end,omitempty"`
	CancelAtPeriodEnd  *bool      `firestore:"cancel_at_period_end,omitempty"`
	CreatedAt          time.Time  `firestore:"created_at"`
	UpdatedAt          *time.Time `firestore:"updated_at,omitempty"`
}

// CreateCheckoutSession implements billing.Store.
func (s *Store) CreateCheckoutSession(ctx context.Context, session *billing.CheckoutSession) error {
	if session == nil || session.CheckoutID == "" {
		return fmt.Errorf("invalid checkout session")
	}

	doc := checkoutDoc{
		CheckoutID:    session.CheckoutID,
		ProductID:     session.ProductID,
		CustomerEmail: session.CustomerEmail,
		Status:        session.Status,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
	_, err := s.client.Collection(s.checkoutsCollection).Doc(session.CheckoutID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to store checkout session: %w", err)
	}
	return nil
}

// GetCheckoutSession implements billing.Store.
func (s *Store) GetCheckoutSession(ctx context.Context, checkoutID string) (*billing.CheckoutSession, error) {
	snap, err := s.client.Collection(s.checkoutsCollection).Doc(checkoutID).Get(ctx)
	if isNotFound(err) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	var doc checkoutDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &billing.CheckoutSession{
		CheckoutID:    doc.CheckoutID,
		ProductID:     doc.ProductID,
		CustomerEmail: doc.CustomerEmail,
		Status:        doc.Status,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

// UpdateCheckoutStatus implements billing.Store.
func (s *Store) UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error {
	ref := s.client.Collection(s.checkoutsCollection).Doc(checkoutID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
	if isNotFound(err) {
		return billing.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update checkout session: %w", err)
	}
	return nil
}

// ListCheckoutSessions implements billing.Store.
func (s *Store) ListCheckoutSessions(ctx context.Context, limit int) ([]*billing.CheckoutSession, error) {
	snaps, err := s.client.Collection(s.checkoutsCollection).
		OrderBy("created_at", firestore.Desc).
		Limit(normalizeLimit(limit)).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}

	var sessions []*billing.CheckoutSession
	for _, snap := range snaps {
		var doc checkoutDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		sessions = append(sessions, &billing.CheckoutSession{
			CheckoutID:    doc.CheckoutID,
			ProductID:     doc.ProductID,
			CustomerEmail: doc.CustomerEmail,
			Status:        doc.Status,
			CreatedAt:     doc.CreatedAt,
			UpdatedAt:     doc.UpdatedAt,
		})
	}
	return sessions, nil
}

// CreateOrder implements billing.Store.
func (s *Store) CreateOrder(ctx context.Context, order *billing.Order) error {
	if order == nil || order.OrderID == "" {
		return fmt.Errorf("invalid order")
	}

	doc := orderDoc{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		ProductID:  order.ProductID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
	}
	_, err := s.client.Collection(s.ordersCollection).Doc(order.OrderID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to store order: %w", err)
	}
	return nil
}

// GetOrder implements billing.Store.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*billing.Order, error) {
	snap, err := s.client.Collection(s.ordersCollection).Doc(orderID).Get(ctx)
	if isNotFound(err) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return orderFromDoc(&doc), nil
}

func orderFromDoc(doc *orderDoc) *billing.Order {
	return &billing.Order{
		OrderID:    doc.OrderID,
		CustomerID: doc.CustomerID,
		ProductID:  doc.ProductID,
		Amount:     doc.Amount,
		Currency:   doc.Currency,
		Status:     doc.Status,
		CreatedAt:  doc.CreatedAt,
	}
}

// UpdateOrderStatus implements billing.Store.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	ref := s.client.Collection(s.ordersCollection).Doc(orderID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "status", Value: status},
	})
	if isNotFound(err) {
		return billing.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// ListOrders implements billing.Store.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]*billing.Order, error) {
	query := s.client.Collection(s.ordersCollection).
		OrderBy("created_at", firestore.Desc).
		Limit(normalizeLimit(limit))
	return s.queryOrders(ctx, query)
}

// ListOrdersByCustomer implements billing.Store.
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Order, error) {
	query := s.client.Collection(s.ordersCollection).
		Where("customer_id", "==", customerID).
		OrderBy("created_at", firestore.Desc).
		Limit(normalizeLimit(limit))
	return s.queryOrders(ctx, query)
}

func (s *Store) queryOrders(ctx context.Context, query firestore.Query) ([]*billing.Order, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	var orders []*billing.Order
	for _, snap := range snaps {
		var doc orderDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, orderFromDoc(&doc))
	}
	return orders, nil
}

// CreateSubscription implements billing.Store.
func (s *Store) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil || sub.SubscriptionID == "" {
		return fmt.Errorf("invalid subscription")
	}

	doc := subscriptionDoc{
		SubscriptionID:     sub.SubscriptionID,
		CustomerID:         sub.CustomerID,
		ProductID:          sub.ProductID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
	_, err := s.client.Collection(s.subscriptionsCollection).Doc(sub.SubscriptionID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

// GetSubscription implements billing.Store.
func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	snap, err := s.client.Collection(s.subscriptionsCollection).Doc(subscriptionID).Get(ctx)
	if isNotFound(err) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	var doc subscriptionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return subscriptionFromDoc(&doc), nil
}

func subscriptionFromDoc(doc *subscriptionDoc) *billing.Subscription {
	return &billing.Subscription{
		SubscriptionID:     doc.SubscriptionID,
		CustomerID:         doc.CustomerID,
		ProductID:          doc.ProductID,
		Status:             doc.Status,
		CurrentPeriodStart: doc.CurrentPeriodStart,
		CurrentPeriodEnd:   doc.CurrentPeriodEnd,
		CancelAtPeriodEnd:  doc.CancelAtPeriodEnd,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
}

// UpdateSubscription implements billing.Store. Absent period bounds are not
// written, so the stored values survive.
func (s *Store) UpdateSubscription(ctx context.Context, update billing.SubscriptionUpdate) error {
	updates := []firestore.Update{
		{Path: "status", Value: update.Status},
		{Path: "updated_at", Value: time.Now().UTC()},
	}
	if update.CurrentPeriodStart != nil {
		updates = append(updates, firestore.Update{Path: "current_period_start", Value: *update.CurrentPeriodStart})
	}
	if update.CurrentPeriodEnd != nil {
		updates = append(updates, firestore.Update{Path: "current_period_end", Value: *update.CurrentPeriodEnd})
	}

	ref := s.client.Collection(s.subscriptionsCollection).Doc(update.SubscriptionID)
	_, err := ref.Update(ctx, updates)
	if isNotFound(err) {
		return billing.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// SetSubscriptionCancellation implements billing.Store.
func (s *Store) SetSubscriptionCancellation(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) error {
	ref := s.client.Collection(s.subscriptionsCollection).Doc(subscriptionID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "cancel_at_period_end", Value: cancelAtPeriodEnd},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
	if isNotFound(err) {
		return billing.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription cancellation: %w", err)
	}
	return nil
}

// ListSubscriptions implements billing.Store.
func (s *Store) ListSubscriptions(ctx context.Context, limit int) ([]*billing.Subscription, error) {
	query := s.client.Collection(s.subscriptionsCollection).
		OrderBy("created_at", firestore.Desc).
		Limit(normalizeLimit(limit))
	return s.querySubscriptions(ctx, query)
}

// ListSubscriptionsByCustomer implements billing.Store.
func (s *Store) ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Subscription, error) {
	query := s.client.Collection(s.subscriptionsCollection).
		Where("customer_id", "==", customerID).
		OrderBy("created_at", firestore.Desc).
		Limit(normalizeLimit(limit))
	return s.querySubscriptions(ctx, query)
}

func (s *Store) querySubscriptions(ctx context.Context, query firestore.Query) ([]*billing.Subscription, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var subs []*billing.Subscription
	for _, snap := range snaps {
		var doc subscriptionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subs = append(subs, subscriptionFromDoc(&doc))
	}
	return subs, nil
}
