package domain

import "errors"

var (
	// ErrProductNotFound is returned by the remote catalog when a GTIN is not catalogued
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidBinding is returned when a record does not fit the configured input fields
	ErrInvalidBinding = errors.New("record does not match input field binding")

	// ErrIndexUnavailable is returned when the product index cannot be queried
	ErrIndexUnavailable = errors.New("product index unavailable")

	// ErrIndexData is returned when the product index answers with malformed data
	ErrIndexData = errors.New("malformed product index data")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
