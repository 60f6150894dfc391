package api

import (
	"fmt"
	"net/http"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

// Config holds configuration for the billing API handler
type Config struct {
	// Service is the billing service instance (required)
	Service *billing.Service

	// OrganizationID scopes product and subscription listings to one Polar
	// organization. Optional; when empty the access token's default
	// organization applies.
	OrganizationID string

	// OnError handles errors (auth, internal, etc.)
	// If nil, uses default error handling
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional request-level logging
	// If nil, logging is not performed
	Logger billing.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}
	return nil
}

// NewHandler creates a new billing API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &billing.NoopLogger{}
	}
	return &Handler{
		config: config,
	}, nil
}
