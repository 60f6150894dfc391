package polar

import (
	"context"
	"fmt"
	"net/http"
)

// ListSubscriptionsParams filters a subscription listing.
type ListSubscriptionsParams struct {
	OrganizationID string
	CustomerID     string

	// Limit caps the page size. Zero means the default (10).
	Limit int
}

// ListSubscriptions returns the first page of subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context, params ListSubscriptionsParams) (*SubscriptionList, error) {
	q := listQuery(params.Limit)
	if params.OrganizationID != "" {
		q.Set("organization_id", params.OrganizationID)
	}
	if params.CustomerID != "" {
		q.Set("customer_id", params.CustomerID)
	}

	var list SubscriptionList
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions", "/v1/subscriptions", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

type subscriptionUpdateRequest struct {
	CancelAtPeriodEnd *bool `json:"cancel_at_period_end,omitempty"`
}

// SetCancelAtPeriodEnd toggles whether a subscription ends at the current
// period boundary.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*Subscription, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	body := subscriptionUpdateRequest{CancelAtPeriodEnd: &cancel}

	var sub Subscription
	err := c.do(ctx, http.MethodPatch, "/v1/subscriptions/{id}",
		"/v1/subscriptions/"+subscriptionID, nil, body, &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
