// Package postgres provides a PostgreSQL implementation of the billing.Store
// interface. Unlike the other backends, the external-id columns carry UNIQUE
// indexes, so concurrent duplicate webhook deliveries surface as
// billing.ErrDuplicate from Create instead of duplicate rows.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// Store implements billing.Store using PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_sessions (
			checkout_id    TEXT PRIMARY KEY,
			product_id     TEXT NOT NULL,
			customer_email TEXT,
			status         TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS orders (
			order_id    TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			product_id  TEXT NOT NULL,
			amount      BIGINT NOT NULL,
			currency    TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS orders_customer_id_idx ON orders (customer_id);

		CREATE TABLE IF NOT EXISTS subscriptions (
			subscription_id      TEXT PRIMARY KEY,
			customer_id          TEXT NOT NULL,
			product_id           TEXT NOT NULL,
			status               TEXT NOT NULL,
			current_period_start TIMESTAMPTZ,
			current_period_end   TIMESTAMPTZ,
			cancel_at_period_end BOOLEAN,
			created_at           TIMESTAMPTZ NOT NULL,
			updated_at           TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS subscriptions_customer_id_idx ON subscriptions (customer_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
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

	var email *string
	if session.CustomerEmail != "" {
		email = &session.CustomerEmail
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO checkout_sessions (checkout_id, product_id, customer_email, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		session.CheckoutID, session.ProductID, email, session.Status, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrDuplicate
		}
		return fmt.Errorf("failed to insert checkout session: %w", err)
	}
	return nil
}

// GetCheckoutSession implements billing.Store.
func (s *Store) GetCheckoutSession(ctx context.Context, checkoutID string) (*billing.CheckoutSession, error) {
	var session billing.CheckoutSession
	var email *string

	err := s.pool.QueryRow(ctx,
		`SELECT checkout_id, product_id, customer_email, status, created_at, updated_at
			FROM checkout_sessions WHERE checkout_id = $1`,
		checkoutID).Scan(
		&session.CheckoutID, &session.ProductID, &email,
		&session.Status, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	if email != nil {
		session.CustomerEmail = *email
	}
	return &session, nil
}

// UpdateCheckoutStatus implements billing.Store.
func (s *Store) UpdateCheckoutStatus(ctx context.Context, checkoutID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checkout_sessions SET status = $2, updated_at = $3 WHERE checkout_id = $1`,
		checkoutID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update checkout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// ListCheckoutSessions implements billing.Store.
func (s *Store) ListCheckoutSessions(ctx context.Context, limit int) ([]*billing.CheckoutSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT checkout_id, product_id, customer_email, status, created_at, updated_at
			FROM checkout_sessions ORDER BY created_at DESC LIMIT $1`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*billing.CheckoutSession
	for rows.Next() {
		var session billing.CheckoutSession
		var email *string
		if err := rows.Scan(&session.CheckoutID, &session.ProductID, &email,
			&session.Status, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkout session: %w", err)
		}
		if email != nil {
			session.CustomerEmail = *email
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// CreateOrder implements billing.Store. Returns billing.ErrDuplicate when the
// order id already exists.
func (s *Store) CreateOrder(ctx context.Context, order *billing.Order) error {
	if order == nil || order.OrderID == "" {
		return fmt.Errorf("invalid order")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (order_id, customer_id, product_id, amount, currency, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.OrderID, order.CustomerID, order.ProductID,
		order.Amount, order.Currency, order.Status, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrDuplicate
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrder implements billing.Store.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*billing.Order, error) {
	var order billing.Order
	err := s.pool.QueryRow(ctx,
		`SELECT order_id, customer_id, product_id, amount, currency, status, created_at
			FROM orders WHERE order_id = $1`,
		orderID).Scan(
		&order.OrderID, &order.CustomerID, &order.ProductID,
		&order.Amount, &order.Currency, &order.Status, &order.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// UpdateOrderStatus implements billing.Store.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE order_id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// ListOrders implements billing.Store.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]*billing.Order, error) {
	return s.queryOrders(ctx,
		`SELECT order_id, customer_id, product_id, amount, currency, status, created_at
			FROM orders ORDER BY created_at DESC LIMIT $1`,
		normalizeLimit(limit))
}

// ListOrdersByCustomer implements billing.Store.
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Order, error) {
	return s.queryOrders(ctx,
		`SELECT order_id, customer_id, product_id, amount, currency, status, created_at
			FROM orders WHERE customer_id = $2 ORDER BY created_at DESC LIMIT $1`,
		normalizeLimit(limit), customerID)
}

func (s *Store) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]*billing.Order, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*billing.Order
	for rows.Next() {
		var order billing.Order
		if err := rows.Scan(&order.OrderID, &order.CustomerID, &order.ProductID,
			&order.Amount, &order.Currency, &order.Status, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}
	return orders, rows.Err()
}

// CreateSubscription implements billing.Store. Returns billing.ErrDuplicate
// when the subscription id already exists.
func (s *Store) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil || sub.SubscriptionID == "" {
		return fmt.Errorf("invalid subscription")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions
			(subscription_id, customer_id, product_id, status,
			 current_period_start, current_period_end, cancel_at_period_end,
			 created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.SubscriptionID, sub.CustomerID, sub.ProductID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrDuplicate
		}
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

// GetSubscription implements billing.Store.
func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT subscription_id, customer_id, product_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
			FROM subscriptions WHERE subscription_id = $1`,
		subscriptionID).Scan(
		&sub.SubscriptionID, &sub.CustomerID, &sub.ProductID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, billing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// UpdateSubscription implements billing.Store. COALESCE keeps the stored
// period bounds when the update carries nil.
func (s *Store) UpdateSubscription(ctx context.Context, update billing.SubscriptionUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET
			status = $2,
			current_period_start = COALESCE($3, current_period_start),
			current_period_end = COALESCE($4, current_period_end),
			updated_at = $5
			WHERE subscription_id = $1`,
		update.SubscriptionID, update.Status,
		update.CurrentPeriodStart, update.CurrentPeriodEnd, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// SetSubscriptionCancellation implements billing.Store.
func (s *Store) SetSubscriptionCancellation(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET cancel_at_period_end = $2, updated_at = $3
			WHERE subscription_id = $1`,
		subscriptionID, cancelAtPeriodEnd, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update subscription cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// ListSubscriptions implements billing.Store.
func (s *Store) ListSubscriptions(ctx context.Context, limit int) ([]*billing.Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT subscription_id, customer_id, product_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
			FROM subscriptions ORDER BY created_at DESC LIMIT $1`,
		normalizeLimit(limit))
}

// ListSubscriptionsByCustomer implements billing.Store.
func (s *Store) ListSubscriptionsByCustomer(ctx context.Context, customerID string, limit int) ([]*billing.Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT subscription_id, customer_id, product_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			created_at, updated_at
			FROM subscriptions WHERE customer_id = $2 ORDER BY created_at DESC LIMIT $1`,
		normalizeLimit(limit), customerID)
}

func (s *Store) querySubscriptions(ctx context.Context, sql string, args ...interface{}) ([]*billing.Subscription, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*billing.Subscription
	for rows.Next() {
		var sub billing.Subscription
		if err := rows.Scan(&sub.SubscriptionID, &sub.CustomerID, &sub.ProductID, &sub.Status,
			&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
			&sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}
