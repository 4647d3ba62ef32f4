// Package probe converts database, HTTP, and custom ping functions into
// readiness/liveness helpers. See ExampleNewPingProbe, ExampleNewHTTPProbe,
// and ExampleNewHTTPProbe_withOptions for quick-start patterns.
package probe
