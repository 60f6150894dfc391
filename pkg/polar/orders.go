package polar

import (
	"context"
	"net/http"
)

// ListOrdersParams filters an order listing.
type ListOrdersParams struct {
	OrganizationID string
	CustomerID     string

	// Limit caps the page size. Zero means the default (10).
	Limit int
}

// ListOrders returns the first page of orders. There is no pagination beyond
// the first page here; callers that need more pass a larger limit.
func (c *Client) ListOrders(ctx context.Context, params ListOrdersParams) (*OrderList, error) {
	q := listQuery(params.Limit)
	if params.OrganizationID != "" {
		q.Set("organization_id", params.OrganizationID)
	}
	if params.CustomerID != "" {
		q.Set("customer_id", params.CustomerID)
	}

	var list OrderList
	if err := c.do(ctx, http.MethodGet, "/v1/orders", "/v1/orders", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
