// Package info exposes build metadata, health probes, and OpenAPI endpoints.
//
// The package includes support for multiple OpenAPI documentation UIs:
//   - Stoplight Elements (default)
//   - Scalar
//   - SwaggerUI
//   - Redoc
//
// Use WithUIType to select your preferred UI when creating an InfoHandler,
// and WithOpenAPIDocument to serve the document produced by the openapi
// package's generator.
//
// See ExampleInfoHandler_full for a runnable wiring of the handler and probes.
package info
