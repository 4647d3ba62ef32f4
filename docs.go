// Package jsonapiweaver turns declarative resource schemas into JSON:API 1.0
// compliant HTTP endpoints backed by Postgres. Applications describe their
// resources as plain Go structs with jsonapi tags, register them, and get
// list/detail/create/update/delete routes that speak the full wire format:
// typed resource objects, relationships, sparse fieldsets, filtering,
// sorting, pagination, and included related resources.
//
// The module is split into small composable packages so teams can pull in
// only what they need:
//
//   - schema: resource schemas reflected from Go structs plus a registry.
//   - query: JSON:API query-string parsing (filter trees, sort, page,
//     include, fields) into a neutral Params value.
//   - document: the JSON:API document model, request parsing, and compound
//     document building.
//   - storage: the Postgres data layer translating schemas and query params
//     into goqu-built SQL, with pluggable pgx/sql/sqlx adapters, batched
//     include loading, and custom filter operators such as JSONB containment.
//   - resource: endpoint registration on *http.ServeMux, content
//     negotiation, and the atomic-operations extension.
//   - responder: JSON:API error documents, status metadata, and structured
//     logging hooks via functional options.
//   - router: middleware defaults (negotiation, CORS, timeouts, logging,
//     optional OpenAPI validation and rate limiting).
//   - openapi: an OpenAPI 3 document generated from the schema registry.
//   - info, probe: status/docs endpoints and readiness probes for the
//     databases behind the API.
//   - otelobs: OpenTelemetry adapters for the storage observability hooks.
//   - jsonutil: thin sonic wrappers for high-throughput encoding.
//
// # Quick Start
//
//	reg := schema.NewRegistry()
//	reg.MustRegister(Article{})
//	reg.MustRegister(Author{})
//
//	store, _ := storage.NewDataLayerFromPGXPool(pool, reg)
//	mux := http.NewServeMux()
//	registrar := resource.NewRegistrar(mux, reg)
//	_ = registrar.Register("articles", store)
//	_ = registrar.Register("authors", store)
//	registrar.RegisterOperations(resource.NewDataLayerStore(store))
//
// The registrar shares one responder across every generated endpoint, so
// error documents, error ids, and log records stay consistent.
package jsonapiweaver
