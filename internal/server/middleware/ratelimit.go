package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute. Uses a sliding window algorithm.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByKey returns an HTTP middleware that limits requests per API
// key to the specified number per minute. Keys are bucketed by their
// public prefix so raw secrets never sit in the limiter's counters.
// Requests without a key fall back to per-IP buckets.
func RateLimitByKey(headerName string, requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if raw := r.Header.Get(headerName); raw != "" {
				return apikey.Prefix(raw), nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
