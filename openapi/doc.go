// Package openapi generates an OpenAPI 3 description of the mounted
// JSON:API endpoints from the schema registry. The resulting document
// plugs into the router's request validation middleware and the info
// package's swagger endpoints.
package openapi
