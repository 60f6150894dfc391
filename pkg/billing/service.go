package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/mihaimyh/gopolar/pkg/polar"
)

// ServiceConfig holds Service dependencies.
type ServiceConfig struct {
	// Client is the Polar API client (required).
	Client *polar.Client

	// Store is the local persistence backend (required).
	Store Store

	// Logger is optional; if nil, logging is silently dropped.
	Logger Logger

	// Metrics is optional; if nil, metrics are silently dropped.
	Metrics Metrics
}

// Service implements the user-facing billing actions: product browsing,
// checkout, customer portal, customer state and subscription management.
// Provider failures are wrapped and returned, never retried; the HTTP layer
// turns them into {"success":false,"error":...} payloads.
type Service struct {
	client  *polar.Client
	store   Store
	logger  Logger
	metrics Metrics
}

// NewService creates a Service.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("%w: polar client is required", ErrNotConfigured)
	}
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

	return &Service{
		client:  config.Client,
		store:   config.Store,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Store exposes the persistence backend for read-side queries.
func (s *Service) Store() Store {
	return s.store
}

// ListProducts lists products from Polar.
func (s *Service) ListProducts(ctx context.Context, params polar.ListProductsParams) (*polar.ProductList, error) {
	list, err := s.client.ListProducts(ctx, params)
	if err != nil {
		s.logger.Error("failed to list products", Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return list, nil
}

// GetProduct fetches one product from Polar.
func (s *Service) GetProduct(ctx context.Context, productID string) (*polar.Product, error) {
	product, err := s.client.GetProduct(ctx, productID)
	if err != nil {
		s.logger.Error("failed to get product",
			Field{Key: "product_id", Value: productID},
			Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return product, nil
}

// CreateCheckoutParams describes a checkout initiation.
type CreateCheckoutParams struct {
	ProductPriceID     string `json:"product_price_id"`
	SuccessURL         string `json:"success_url"`
	CustomerEmail      string `json:"customer_email,omitempty"`
	ExternalCustomerID string `json:"external_customer_id,omitempty"`
}

// CreateCheckout opens a checkout with Polar and mirrors it locally as a
// CheckoutSession so webhook status changes have a row to land on.
func (s *Service) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*polar.Checkout, error) {
	checkout, err := s.client.CreateCheckout(ctx, polar.CreateCheckoutParams{
		ProductPriceID:     params.ProductPriceID,
		SuccessURL:         params.SuccessURL,
		CustomerEmail:      params.CustomerEmail,
		ExternalCustomerID: params.ExternalCustomerID,
	})
	if err != nil {
		s.logger.Error("failed to create checkout", Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}

	session := &CheckoutSession{
		CheckoutID:    checkout.ID,
		ProductID:     params.ProductPriceID,
		CustomerEmail: params.CustomerEmail,
		Status:        checkout.Status,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateCheckoutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save checkout session %s: %w", checkout.ID, err)
	}

	s.logger.Info("created checkout",
		Field{Key: "checkout_id", Value: checkout.ID},
		Field{Key: "product_id", Value: params.ProductPriceID})
	return checkout, nil
}

// GetCheckout fetches a checkout session from Polar.
func (s *Service) GetCheckout(ctx context.Context, checkoutID string) (*polar.Checkout, error) {
	checkout, err := s.client.GetCheckout(ctx, checkoutID)
	if err != nil {
		s.logger.Error("failed to get checkout",
			Field{Key: "checkout_id", Value: checkoutID},
			Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return checkout, nil
}

// GetCustomerByExternalID fetches a customer from Polar by external id.
func (s *Service) GetCustomerByExternalID(ctx context.Context, externalID string) (*polar.Customer, error) {
	customer, err := s.client.GetCustomerByExternalID(ctx, externalID)
	if err != nil {
		s.logger.Error("failed to get customer",
			Field{Key: "external_id", Value: externalID},
			Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return customer, nil
}

// CreateCustomerPortalSession creates a pre-authenticated customer portal
// session URL.
func (s *Service) CreateCustomerPortalSession(ctx context.Context, customerID string) (*polar.CustomerSession, error) {
	session, err := s.client.CreateCustomerSession(ctx, customerID)
	if err != nil {
		s.logger.Error("failed to create customer portal session",
			Field{Key: "customer_id", Value: customerID},
			Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return session, nil
}

// CustomerStateParams selects a customer by Polar id or by external id.
// Exactly one should be set; the Polar id wins when both are.
type CustomerStateParams struct {
	CustomerID string
	ExternalID string
}

// GetCustomerState fetches a customer's subscriptions and benefits.
func (s *Service) GetCustomerState(ctx context.Context, params CustomerStateParams) (*polar.CustomerState, error) {
	var state *polar.CustomerState
	var err error

	switch {
	case params.CustomerID != "":
		state, err = s.client.GetCustomerState(ctx, params.CustomerID)
	case params.ExternalID != "":
		state, err = s.client.GetCustomerStateByExternalID(ctx, params.ExternalID)
	default:
		return nil, fmt.Errorf("either customer id or external id must be provided")
	}

	if err != nil {
		s.logger.Error("failed to get customer state", Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return state, nil
}

// ListSubscriptions lists subscriptions from Polar.
func (s *Service) ListSubscriptions(ctx context.Context, params polar.ListSubscriptionsParams) (*polar.SubscriptionList, error) {
	list, err := s.client.ListSubscriptions(ctx, params)
	if err != nil {
		s.logger.Error("failed to list subscriptions", Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}
	return list, nil
}

// CancelSubscriptionAtPeriodEnd asks Polar to end the subscription at the
// current period boundary and persists the flag locally. The generic
// subscription webhook path does not carry the flag, so this local write is
// what makes the intent visible on the dashboard.
func (s *Service) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) (*polar.Subscription, error) {
	return s.setCancellation(ctx, subscriptionID, true)
}

// ReactivateSubscription undoes a pending cancellation.
func (s *Service) ReactivateSubscription(ctx context.Context, subscriptionID string) (*polar.Subscription, error) {
	return s.setCancellation(ctx, subscriptionID, false)
}

func (s *Service) setCancellation(ctx context.Context, subscriptionID string, cancel bool) (*polar.Subscription, error) {
	sub, err := s.client.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel)
	if err != nil {
		s.logger.Error("failed to update subscription cancellation",
			Field{Key: "subscription_id", Value: subscriptionID},
			Field{Key: "cancel_at_period_end", Value: cancel},
			Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrProviderAPI, err)
	}

	err = s.store.SetSubscriptionCancellation(ctx, subscriptionID, cancel)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("failed to persist cancellation for %s: %w", subscriptionID, err)
	}
	if err == ErrNotFound {
		// The subscription was never mirrored locally (webhook not yet
		// delivered). The provider-side update stands.
		s.logger.Warn("no local subscription row for cancellation",
			Field{Key: "subscription_id", Value: subscriptionID})
	}

	return sub, nil
}
