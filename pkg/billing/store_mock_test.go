package billing

import (
	"context"
	"sync"
	"time"
)

// fakeStore is a minimal in-memory Store for tests. Unlike storage/memory it
// lives in this package so the tests have no dependency on the adapters.
type fakeStore struct {
	mu        sync.Mutex
	checkouts map[string]*CheckoutSession
	orders    map[string]*Order
	subs      map[string]*Subscription

	// enforceUnique makes Create return ErrDuplicate like a backend with a
	// uniqueness constraint would.
	enforceUnique bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		checkouts: make(map[string]*CheckoutSession),
		orders:    make(map[string]*Order),
		subs:      make(map[string]*Subscription),
	}
}

func (s *fakeStore) CreateCheckoutSession(_ context.Context, session *CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkouts[session.CheckoutID]; ok && s.enforceUnique {
		return ErrDuplicate
	}
	cp := *session
	s.checkouts[session.CheckoutID] = &cp
	return nil
}

func (s *fakeStore) GetCheckoutSession(_ context.Context, checkoutID string) (*CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.checkouts[checkoutID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *fakeStore) UpdateCheckoutStatus(_ context.Context, checkoutID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.checkouts[checkoutID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	session.Status = status
	session.UpdatedAt = &now
	return nil
}

func (s *fakeStore) ListCheckoutSessions(_ context.Context, limit int) ([]*CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CheckoutSession
	for _, session := range s.checkouts {
		cp := *session
		out = append(out, &cp)
	}
	return capLen(out, limit), nil
}

func (s *fakeStore) CreateOrder(_ context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.OrderID]; ok && s.enforceUnique {
		return ErrDuplicate
	}
	cp := *order
	s.orders[order.OrderID] = &cp
	return nil
}

func (s *fakeStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *fakeStore) UpdateOrderStatus(_ context.Context, orderID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	return nil
}

func (s *fakeStore) ListOrders(_ context.Context, limit int) ([]*Order, error) {
	return s.listOrders(nil, limit), nil
}

func (s *fakeStore) ListOrdersByCustomer(_ context.Context, customerID string, limit int) ([]*Order, error) {
	return s.listOrders(func(o *Order) bool { return o.CustomerID == customerID }, limit), nil
}

func (s *fakeStore) listOrders(match func(*Order) bool, limit int) []*Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, order := range s.orders {
		if match != nil && !match(order) {
			continue
		}
		cp := *order
		out = append(out, &cp)
	}
	return capLen(out, limit)
}

func (s *fakeStore) CreateSubscription(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.SubscriptionID]; ok && s.enforceUnique {
		return ErrDuplicate
	}
	cp := *sub
	s.subs[sub.SubscriptionID] = &cp
	return nil
}

func (s *fakeStore) GetSubscription(_ context.Context, subscriptionID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) UpdateSubscription(_ context.Context, update SubscriptionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[update.SubscriptionID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	sub.Status = update.Status
	if update.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = update.CurrentPeriodStart
	}
	if update.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = update.CurrentPeriodEnd
	}
	sub.UpdatedAt = &now
	return nil
}

func (s *fakeStore) SetSubscriptionCancellation(_ context.Context, subscriptionID string, cancelAtPeriodEnd bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	sub.CancelAtPeriodEnd = &cancelAtPeriodEnd
	sub.UpdatedAt = &now
	return nil
}

func (s *fakeStore) ListSubscriptions(_ context.Context, limit int) ([]*Subscription, error) {
	return s.listSubs(nil, limit), nil
}

func (s *fakeStore) ListSubscriptionsByCustomer(_ context.Context, customerID string, limit int) ([]*Subscription, error) {
	return s.listSubs(func(sub *Subscription) bool { return sub.CustomerID == customerID }, limit), nil
}

func (s *fakeStore) listSubs(match func(*Subscription) bool, limit int) []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Subscription
	for _, sub := range s.subs {
		if match != nil && !match(sub) {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	return capLen(out, limit)
}

func capLen[T any](in []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

// trackingStore counts Create calls so tests can observe race behavior.
type trackingStore struct {
	Store

	mu               sync.Mutex
	createOrderCalls int
}

func (s *trackingStore) CreateOrder(ctx context.Context, order *Order) error {
	s.mu.Lock()
	s.createOrderCalls++
	s.mu.Unlock()
	return s.Store.CreateOrder(ctx, order)
}

func (s *trackingStore) orderCreates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createOrderCalls
}
