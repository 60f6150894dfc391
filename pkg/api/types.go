package api

import (
	"github.com/mihaimyh/gopolar/pkg/billing"
	"github.com/mihaimyh/gopolar/pkg/polar"
)

// Every response carries a "success" flag so clients can branch on one field
// instead of inspecting HTTP status codes.

// ProductListResponse is the payload for GET /products
type ProductListResponse struct {
	Success    bool             `json:"success"`
	Products   []polar.Product  `json:"products"`
	Pagination polar.Pagination `json:"pagination"`
}

// ProductResponse is the payload for GET /products/{id}
type ProductResponse struct {
	Success bool           `json:"success"`
	Product *polar.Product `json:"product"`
}

// CheckoutResponse is the payload for checkout creation and lookup
type CheckoutResponse struct {
	Success  bool            `json:"success"`
	Checkout *polar.Checkout `json:"checkout"`
}

// PortalSessionResponse carries the pre-authenticated customer portal URL
type PortalSessionResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	PortalURL string `json:"portal_url"`
}

// CustomerStateResponse is the payload for GET /customers/state
type CustomerStateResponse struct {
	Success bool                 `json:"success"`
	State   *polar.CustomerState `json:"state"`
}

// SubscriptionListResponse lists provider-side subscriptions
type SubscriptionListResponse struct {
	Success       bool                 `json:"success"`
	Subscriptions []polar.Subscription `json:"subscriptions"`
	Pagination    polar.Pagination     `json:"pagination"`
}

// SubscriptionResponse is the payload for cancel/reactivate actions
type SubscriptionResponse struct {
	Success      bool                `json:"success"`
	Subscription *polar.Subscription `json:"subscription"`
}

// SyncResponse reports the result of a manual order backfill
type SyncResponse struct {
	Success bool `json:"success"`
	Total   int  `json:"total"`
	Synced  int  `json:"synced"`
	Skipped int  `json:"skipped"`
}

// OrderHistoryResponse lists locally persisted orders
type OrderHistoryResponse struct {
	Success bool             `json:"success"`
	Orders  []*billing.Order `json:"orders"`
}

// SubscriptionHistoryResponse lists locally persisted subscriptions
type SubscriptionHistoryResponse struct {
	Success       bool                    `json:"success"`
	Subscriptions []*billing.Subscription `json:"subscriptions"`
}

// CheckoutHistoryResponse lists locally persisted checkout sessions
type CheckoutHistoryResponse struct {
	Success  bool                       `json:"success"`
	Sessions []*billing.CheckoutSession `json:"sessions"`
}

// ErrorResponse is the uniform failure payload
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
