// Package memory provides an in-memory implementation of the billing.Store
// interface. This implementation is primarily intended for testing and
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

// Store implements billing.Store using in-memory maps.
// Like the managed-database original, it has no uniqueness constraint on
// external ids beyond the caller's read-before-write check, so it stores
// whatever Create is given - the last Create for an id wins.
type Store struct {
	mu            sync.RWMutex
	checkouts     map[string]*billing.CheckoutSession
	orders        map[string]*billing.Order
	subscriptions map[string]*billing.Subscription

	// Insertion counters preserve recency ordering for List operations.
	seq     uint64
	seqByID map[string]uint64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		checkouts:     make(map[string]*billing.CheckoutSession),
		orders:        make(map[string]*billing.Order),
		subscriptions: make(map[string]*billing.Subscription),
		seqByID:       make(map[string]uint64),
	}
}

func (s *Store) touch(kind, id string) {
	s.seq++
	s.seqByID[kind+":"+id] = s.seq
}

func (s *Store) seqOf(kind, id string) uint64 {
	return s.seqByID[kind+":"+id]
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return billing.DefaultListLimit
	}
	return limit
}

// CreateCheckoutSession implements billing.Store.
func (s *Store) CreateCheckoutSession(ctx context.Context, session *billing.CheckoutSession) error {
	if session == nil || session.CheckoutID == "" {
		return fmt.Errorf("invalid checkout session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessionCopy := *session
	s.checkouts[session.CheckoutID] = &sessionCopy
	s.touch("checkout", session.CheckoutID)
	return nil
}

// GetCheckoutSession implements billing.Store.
func (s *Store) GetCheckoutSession(ctx context.Context, checkoutID string) (*billing.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.checkouts[checkoutID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

// UpdateCheckoutStatus implements billing.Store.
func (s *Store) UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.checkouts[checkoutID]
	if !ok {
		return billing.ErrNotFound
	}
	now := time.Now().UTC()
	session.Status = status
	session.UpdatedAt = &now
	return nil
}

// ListCheckoutSessions implements billing.Store. Newest first.
func (s *Store) ListCheckoutSessions(ctx context.Context, limit int) ([]*billing.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*billing.CheckoutSession, 0, len(s.checkouts))
	for _, session := range s.checkouts {
		sessionCopy := *session
		sessions = append(sessions, &sessionCopy)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return s.seqOf("checkout", sessions[i].CheckoutID) > s.seqOf("checkout", sessions[j].CheckoutID)
	})
	return capSlice(sessions, normalizeLimit(limit)), nil
}

// CreateOrder implements billing.Store.
func (s *Store) CreateOrder(ctx context.Context, order *billing.Order) error {
	if order == nil || order.OrderID == "" {
		return fmt.Errorf("invalid order")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orderCopy := *order
	s.orders[order.OrderID] = &orderCopy
	s.touch("order", order.OrderID)
	return nil
}

// GetOrder implements billing.Store.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*billing.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	orderCopy := *order
	return &orderCopy, nil
}

// UpdateOrderStatus implements billing.Store. Status is the only mutable
// order field.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return billing.ErrNotFound
	}
	order.Status = status
	return nil
}

// ListOrders implements billing.Store. Newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]*billing.Order, error) {
	return s.listOrders(func(*billing.Order) bool { return true }, limit), nil
}

// ListOrdersByCustomer implements billing.Store.
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Order, error) {
	return s.listOrders(func(o *billing.Order) bool { return o.CustomerID == customerID }, limit), nil
}

func (s *Store) listOrders(match func(*billing.Order) bool, limit int) []*billing.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]*billing.Order, 0)
	for _, order := range s.orders {
		if match(order) {
			orderCopy := *order
			orders = append(orders, &orderCopy)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return s.seqOf("order", orders[i].OrderID) > s.seqOf("order", orders[j].OrderID)
	})
	return capSlice(orders, normalizeLimit(limit))
}

// CreateSubscription implements billing.Store.
func (s *Store) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil || sub.SubscriptionID == "" {
		return fmt.Errorf("invalid subscription")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subCopy := *sub
	s.subscriptions[sub.SubscriptionID] = &subCopy
	s.touch("subscription", sub.SubscriptionID)
	return nil
}

// GetSubscription implements billing.Store.
func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	subCopy := *sub
	return &subCopy, nil
}

// UpdateSubscription implements billing.Store. Nil period pointers leave
// the stored bounds unchanged.
func (s *Store) UpdateSubscription(ctx context.Context, update billing.SubscriptionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[update.SubscriptionID]
	if !ok {
		return billing.ErrNotFound
	}

	now := time.Now().UTC()
	sub.Status = update.Status
	if update.CurrentPeriodStart != nil {
		start := *update.CurrentPeriodStart
		sub.CurrentPeriodStart = &start
	}
	if update.CurrentPeriodEnd != nil {
		end := *update.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	sub.UpdatedAt = &now
	return nil
}

// SetSubscriptionCancellation implements billing.Store.
func (s *Store) SetSubscriptionCancellation(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return billing.ErrNotFound
	}
	now := time.Now().UTC()
	cancel := cancelAtPeriodEnd
	sub.CancelAtPeriodEnd = &cancel
	sub.UpdatedAt = &now
	return nil
}

// ListSubscriptions implements billing.Store. Newest first.
func (s *Store) ListSubscriptions(ctx context.Context, limit int) ([]*billing.Subscription, error) {
	return s.listSubscriptions(func(*billing.Subscription) bool { return true }, limit), nil
}

// ListSubscriptionsByCustomer implements billing.Store.
func (s *Store) ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Subscription, error) {
	return s.listSubscriptions(func(sub *billing.Subscription) bool { return sub.CustomerID == customerID }, limit), nil
}

func (s *Store) listSubscriptions(match func(*billing.Subscription) bool, limit int) []*billing.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*billing.Subscription, 0)
	for _, sub := range s.subscriptions {
		if match(sub) {
			subCopy := *sub
			subs = append(subs, &subCopy)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return s.seqOf("subscription", subs[i].SubscriptionID) > s.seqOf("subscription", subs[j].SubscriptionID)
	})
	return capSlice(subs, normalizeLimit(limit))
}

func capSlice[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
