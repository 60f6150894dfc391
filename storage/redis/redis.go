// Package redis provides a Redis implementation of the billing.Store
// interface. Records are stored as JSON values keyed by external id, with
// sorted-set indexes for recency and per-customer listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

const defaultKeyPrefix = "gopolar:"

// Config holds Redis storage configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "gopolar:")
	KeyPrefix string
}

// Store implements billing.Store using Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New creates a new Redis store.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) recordKey(kind, id string) string {
	return s.prefix + kind + ":" + id
}

func (s *Store) recentKey(kind string) string {
	return s.prefix + kind + ":recent"
}

func (s *Store) customerKey(kind, customerID string) string {
	return s.prefix + kind + ":customer:" + customerID
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return billing.DefaultListLimit
	}
	return limit
}

func (s *Store) setRecord(ctx context.Context, kind, id string, record interface{}, customerID string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	score := float64(time.Now().UnixNano())

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(kind, id), data, 0)
	pipe.ZAdd(ctx, s.recentKey(kind), redis.Z{Score: score, Member: id})
	if customerID != "" {
		pipe.ZAdd(ctx, s.customerKey(kind, customerID), redis.Z{Score: score, Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}
	return nil
}

func (s *Store) getRecord(ctx context.Context, kind, id string, out interface{}) error {
	data, err := s.client.Get(ctx, s.recordKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return billing.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return nil
}

func (s *Store) listIDs(ctx context.Context, indexKey string, limit int) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", indexKey, err)
	}
	return ids, nil
}

// CreateCheckoutSession implements billing.Store.
func (s *Store) CreateCheckoutSession(ctx context.Context, session *billing.CheckoutSession) error {
	if session == nil || session.CheckoutID == "" {
		return fmt.Errorf("invalid checkout session")
	}
	return s.setRecord(ctx, "checkout", session.CheckoutID, session, "")
}

// GetCheckoutSession implements billing.Store.
func (s *Store) GetCheckoutSession(ctx context.Context, checkoutID string) (*billing.CheckoutSession, error) {
	var session billing.CheckoutSession
	if err := s.getRecord(ctx, "checkout", checkoutID, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateCheckoutStatus implements billing.Store.
func (s *Store) UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error {
	session, err := s.GetCheckoutSession(ctx, checkoutID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	session.Status = status
	session.UpdatedAt = &now

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode checkout: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey("checkout", checkoutID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store checkout: %w", err)
	}
	return nil
}

// ListCheckoutSessions implements billing.Store.
func (s *Store) ListCheckoutSessions(ctx context.Context, limit int) ([]*billing.CheckoutSession, error) {
	ids, err := s.listIDs(ctx, s.recentKey("checkout"), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	sessions := make([]*billing.CheckoutSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.GetCheckoutSession(ctx, id)
		if errors.Is(err, billing.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// CreateOrder implements billing.Store.
func (s *Store) CreateOrder(ctx context.Context, order *billing.Order) error {
	if order == nil || order.OrderID == "" {
		return fmt.Errorf("invalid order")
	}
	return s.setRecord(ctx, "order", order.OrderID, order, order.CustomerID)
}

// GetOrder implements billing.Store.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*billing.Order, error) {
	var order billing.Order
	if err := s.getRecord(ctx, "order", orderID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus implements billing.Store.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	order.Status = status

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey("order", orderID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store order: %w", err)
	}
	return nil
}

// ListOrders implements billing.Store.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]*billing.Order, error) {
	return s.listOrdersByIndex(ctx, s.recentKey("order"), limit)
}

// ListOrdersByCustomer implements billing.Store.
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Order, error) {
	return s.listOrdersByIndex(ctx, s.customerKey("order", customerID), limit)
}

func (s *Store) listOrdersByIndex(ctx context.Context, indexKey string, limit int) ([]*billing.Order, error) {
	ids, err := s.listIDs(ctx, indexKey, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	orders := make([]*billing.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.GetOrder(ctx, id)
		if errors.Is(err, billing.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// CreateSubscription implements billing.Store.
func (s *Store) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil || sub.SubscriptionID == "" {
		return fmt.Errorf("invalid subscription")
	}
	return s.setRecord(ctx, "subscription", sub.SubscriptionID, sub, sub.CustomerID)
}

// GetSubscription implements billing.Store.
func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	var sub billing.Subscription
	if err := s.getRecord(ctx, "subscription", subscriptionID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateSubscription implements billing.Store. Nil period pointers leave the
// stored bounds unchanged.
func (s *Store) UpdateSubscription(ctx context.Context, update billing.SubscriptionUpdate) error {
	sub, err := s.GetSubscription(ctx, update.SubscriptionID)
	if err != nil {
		return err
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

	return s.putSubscription(ctx, sub)
}

// SetSubscriptionCancellation implements billing.Store.
func (s *Store) SetSubscriptionCancellation(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) error {
	sub, err := s.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	cancel := cancelAtPeriodEnd
	sub.CancelAtPeriodEnd = &cancel
	sub.UpdatedAt = &now

	return s.putSubscription(ctx, sub)
}

func (s *Store) putSubscription(ctx context.Context, sub *billing.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey("subscription", sub.SubscriptionID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

// ListSubscriptions implements billing.Store.
func (s *Store) ListSubscriptions(ctx context.Context, limit int) ([]*billing.Subscription, error) {
	return s.listSubscriptionsByIndex(ctx, s.recentKey("subscription"), limit)
}

// ListSubscriptionsByCustomer implements billing.Store.
func (s *Store) ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Subscription, error) {
	return s.listSubscriptionsByIndex(ctx, s.customerKey("subscription", customerID), limit)
}

func (s *Store) listSubscriptionsByIndex(ctx context.Context, indexKey string, limit int) ([]*billing.Subscription, error) {
	ids, err := s.listIDs(ctx, indexKey, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	subs := make([]*billing.Subscription, 0, len(ids))
	for _, id := range ids {
		sub, err := s.GetSubscription(ctx, id)
		if errors.Is(err, billing.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
