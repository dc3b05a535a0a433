package ai

import "errors"

var (
	// ErrConfiguration indicates missing or invalid settings. It is returned
	// before any network attempt.
	ErrConfiguration = errors.New("ai config")

	// ErrTransientNetwork indicates a retryable failure: a network error, a
	// timeout, or HTTP 429/500/502/503/504.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrMalformedResponse indicates a response without usable embedding data.
	ErrMalformedResponse = errors.New("malformed embedding response")

	// ErrPermanentResponse indicates a non-retryable HTTP status such as 401 or 400.
	ErrPermanentResponse = errors.New("permanent embedding failure")

	// ErrExhaustedRetries indicates every attempt failed and no fallback
	// vector could be produced.
	ErrExhaustedRetries = errors.New("embedding retries exhausted")

	// ErrDimensionUnknown indicates a zero vector was needed before any
	// dimension had been configured or learned.
	ErrDimensionUnknown = errors.New("embedding dimension unknown")
)
