package polar

import (
	"context"
	"net/http"
)

// ListProductsParams filters a product listing.
type ListProductsParams struct {
	// OrganizationID narrows the listing to one organization. Optional.
	OrganizationID string

	// Limit caps the page size. Zero means the default (10).
	Limit int
}

// ListProducts returns the first page of products.
func (c *Client) ListProducts(ctx context.Context, params ListProductsParams) (*ProductList, error) {
	q := listQuery(params.Limit)
	if params.OrganizationID != "" {
		q.Set("organization_id", params.OrganizationID)
	}

	var list ProductList
	if err := c.do(ctx, http.MethodGet, "/v1/products", "/v1/products", q, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, "/v1/products/{id}", "/v1/products/"+productID, nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
