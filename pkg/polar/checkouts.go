package polar

import (
	"context"
	"fmt"
	"net/http"
)

// CreateCheckoutParams describes a checkout to open.
type CreateCheckoutParams struct {
	// ProductPriceID is the product price to sell (required).
	ProductPriceID string

	// SuccessURL is where Polar redirects after payment (required).
	SuccessURL string

	// CustomerEmail pre-fills the checkout form. Optional.
	CustomerEmail string

	// ExternalCustomerID links the checkout to an identity-provider user id.
	// Optional.
	ExternalCustomerID string
}

type createCheckoutRequest struct {
	Products           []string `json:"products"`
	SuccessURL         string   `json:"success_url"`
	CustomerEmail      string   `json:"customer_email,omitempty"`
	ExternalCustomerID string   `json:"external_customer_id,omitempty"`
}

// CreateCheckout opens a checkout session.
func (c *Client) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*Checkout, error) {
	if params.ProductPriceID == "" {
		return nil, fmt.Errorf("product price id is required")
	}
	if params.SuccessURL == "" {
		return nil, fmt.Errorf("success URL is required")
	}

	body := createCheckoutRequest{
		Products:           []string{params.ProductPriceID},
		SuccessURL:         params.SuccessURL,
		CustomerEmail:      params.CustomerEmail,
		ExternalCustomerID: params.ExternalCustomerID,
	}

	var checkout Checkout
	if err := c.do(ctx, http.MethodPost, "/v1/checkouts", "/v1/checkouts", nil, body, &checkout); err != nil {
		return nil, err
	}
	return &checkout, nil
}

// GetCheckout fetches a checkout session by id.
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (*Checkout, error) {
	var checkout Checkout
	if err := c.do(ctx, http.MethodGet, "/v1/checkouts/{id}", "/v1/checkouts/"+checkoutID, nil, nil, &checkout); err != nil {
		return nil, err
	}
	return &checkout, nil
}
