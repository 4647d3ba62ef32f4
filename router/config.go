package router

import "time"

// Config carries the declarative settings of the default middleware chain.
type Config struct {
	// Timeout aborts requests that run longer than this duration.
	Timeout time.Duration

	// QuietdownRoutes are paths excluded from request logging, typically
	// health probes polled by an orchestrator.
	QuietdownRoutes []string

	// HideHeaders are header names whose values are redacted in request
	// logs.
	HideHeaders []string

	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// CORSConfig controls the CORS middleware. An empty Origins list disables
// it.
type CORSConfig struct {
	Origins          []string
	Methods          []string
	Headers          []string
	AllowCredentials bool
}

// RateLimitConfig controls the rate limiting middleware. A zero
// RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}
