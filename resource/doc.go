// Package resource turns registered schemas into JSON:API HTTP endpoints.
//
// A Registrar mounts the full route set for a resource type on a
// *http.ServeMux: list, detail, create, update, delete, filtered bulk
// delete, plus the relationship and related endpoints. Handlers negotiate
// the JSON:API media type, parse the query string, call the data layer, and
// serialise results through the document builder. RegisterOperations adds
// the atomic-operations extension endpoint, which runs every operation of a
// request inside one storage transaction.
package resource
