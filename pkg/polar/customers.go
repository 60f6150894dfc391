package polar

import (
	"context"
	"fmt"
	"net/http"
)

// GetCustomerByExternalID fetches a customer by the external id attached at
// checkout time.
func (c *Client) GetCustomerByExternalID(ctx context.Context, externalID string) (*Customer, error) {
	var customer Customer
	err := c.do(ctx, http.MethodGet, "/v1/customers/external/{id}",
		"/v1/customers/external/"+externalID, nil, nil, &customer)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerState fetches a customer's state (active subscriptions and
// granted benefits) by Polar customer id.
func (c *Client) GetCustomerState(ctx context.Context, customerID string) (*CustomerState, error) {
	var state CustomerState
	err := c.do(ctx, http.MethodGet, "/v1/customers/{id}/state",
		"/v1/customers/"+customerID+"/state", nil, nil, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetCustomerStateByExternalID fetches a customer's state by external id.
func (c *Client) GetCustomerStateByExternalID(ctx context.Context, externalID string) (*CustomerState, error) {
	var state CustomerState
	err := c.do(ctx, http.MethodGet, "/v1/customers/external/{id}/state",
		"/v1/customers/external/"+externalID+"/state", nil, nil, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

type createCustomerSessionRequest struct {
	CustomerID string `json:"customer_id"`
}

// CreateCustomerSession creates a pre-authenticated customer portal session.
func (c *Client) CreateCustomerSession(ctx context.Context, customerID string) (*CustomerSession, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	var session CustomerSession
	err := c.do(ctx, http.MethodPost, "/v1/customer-sessions", "/v1/customer-sessions",
		nil, createCustomerSessionRequest{CustomerID: customerID}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
