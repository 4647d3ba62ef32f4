// Package router wraps http.ServeMux with JSON:API content negotiation,
// OpenAPI validation, CORS, timeouts, rate limiting, and logging defaults.
// ExampleNew_customOptions demonstrates how to combine built-in and custom
// middlewares.
package router
