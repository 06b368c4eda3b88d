package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Source Errors
	ErrUnsupportedSymbol    = errors.New("symbol not supported by exchange")
	ErrUnsupportedTimeframe = errors.New("timeframe not supported")
	ErrNoData               = errors.New("no data fetched for any pair/timeframe")

	// Exchange and External Source Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the remote API")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("API authentication failed (check API keys)")
	ErrUnexpectedResponse   = errors.New("unexpected response payload")

	// Database Specific Errors
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrSchemaMismatch = errors.New("dataset columns do not match existing table")
)
