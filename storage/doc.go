// Package storage is the Postgres data layer: it translates resource
// schemas plus parsed query parameters into SQL built with goqu and scans
// the results back into neutral records for the document builder.
//
// The layer runs against pgxpool.Pool, database/sql, or sqlx.DB through a
// small adapter interface, resolves include paths with one batched IN query
// per path segment instead of per-row fetches, and supports
// application-registered custom filter operators such as the built-in
// jsonb_contains (JSONB @> containment).
package storage
