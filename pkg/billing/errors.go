package billing

import "errors"

var (
	// ErrNotFound is returned by Get/Update operations when no record matches
	// the external id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned by Create operations on backends that enforce
	// uniqueness of the external id (postgres). Backends without a uniqueness
	// constraint never return it.
	ErrDuplicate = errors.New("record already exists")

	// ErrNotConfigured is returned when a component is constructed without a
	// required dependency.
	ErrNotConfigured = errors.New("billing component not configured")

	// ErrInvalidWebhookPayload is returned when a webhook body cannot be
	// parsed into an event envelope.
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrProviderAPI wraps failures reported by the Polar API.
	ErrProviderAPI = errors.New("polar API error")
)
