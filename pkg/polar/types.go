package polar

import "time"

// Pagination describes a list response page.
type Pagination struct {
	TotalCount int64 `json:"total_count"`
	MaxPage    int   `json:"max_page"`
}

// ProductPrice is one price attached to a product.
type ProductPrice struct {
	ID                string `json:"id"`
	AmountType        string `json:"amount_type"` // "fixed", "custom", "free"
	PriceAmount       int64  `json:"price_amount"`
	PriceCurrency     string `json:"price_currency"`
	RecurringInterval string `json:"recurring_interval,omitempty"` // "month", "year"
	IsArchived        bool   `json:"is_archived"`
}

// Product is a sellable product.
type Product struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	IsRecurring    bool           `json:"is_recurring"`
	IsArchived     bool           `json:"is_archived"`
	OrganizationID string         `json:"organization_id"`
	Prices         []ProductPrice `json:"prices"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
	ModifiedAt     *time.Time     `json:"modified_at,omitempty"`
}

// ProductList is a page of products.
type ProductList struct {
	Items      []Product  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Checkout is a provider-side checkout session.
type Checkout struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	URL           string     `json:"url"`
	ClientSecret  string     `json:"client_secret,omitempty"`
	ProductID     string     `json:"product_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency,omitempty"`
	SuccessURL    string     `json:"success_url,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Customer is a provider-side customer record.
type Customer struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	ExternalID string     `json:"external_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// CustomerSession is a pre-authenticated customer portal session.
type CustomerSession struct {
	Token             string     `json:"token"`
	CustomerPortalURL string     `json:"customer_portal_url"`
	CustomerID        string     `json:"customer_id"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// CustomerStateSubscription is an active subscription inside a customer state.
type CustomerStateSubscription struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	ProductID          string     `json:"product_id"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency,omitempty"`
	RecurringInterval  string     `json:"recurring_interval,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
}

// CustomerStateBenefit is a granted benefit inside a customer state.
type CustomerStateBenefit struct {
	ID        string `json:"id"`
	BenefitID string `json:"benefit_id"`
	Type      string `json:"benefit_type,omitempty"`
}

// CustomerState aggregates a customer with their active subscriptions and
// granted benefits.
type CustomerState struct {
	ID                  string                      `json:"id"`
	Email               string                      `json:"email"`
	ExternalID          string                      `json:"external_id,omitempty"`
	ActiveSubscriptions []CustomerStateSubscription `json:"active_subscriptions"`
	GrantedBenefits     []CustomerStateBenefit      `json:"granted_benefits"`
}

// Subscription is a provider-side subscription.
type Subscription struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	CustomerID         string     `json:"customer_id"`
	ProductID          string     `json:"product_id"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency,omitempty"`
	RecurringInterval  string     `json:"recurring_interval,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
}

// SubscriptionList is a page of subscriptions.
type SubscriptionList struct {
	Items      []Subscription `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// Order is a provider-side order. Amount naming varies across API revisions;
// EffectiveAmount coalesces the variants.
type Order struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	ProductID  string     `json:"product_id"`
	Status     string     `json:"status"`
	Currency   string     `json:"currency"`
	CheckoutID string     `json:"checkout_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`

	TotalAmount int64 `json:"total_amount"`
	Amount      int64 `json:"amount"`
	Total       int64 `json:"total"`
}

// EffectiveAmount returns the first non-zero of total_amount, amount, total.
func (o *Order) EffectiveAmount() int64 {
	if o.TotalAmount != 0 {
		return o.TotalAmount
	}
	if o.Amount != 0 {
		return o.Amount
	}
	return o.Total
}

// OrderList is a page of orders.
type OrderList struct {
	Items      []Order    `json:"items"`
	Pagination Pagination `json:"pagination"`
}
