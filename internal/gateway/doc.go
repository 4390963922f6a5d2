// Package gateway is the inbound boundary of relay-gateway.
//
// # Overview
//
// The Service decodes submit envelopes arriving over HTTP, authenticates
// them against the signed peer protocol when enabled, and dispatches them
// through the session manager to the upstream selected by the routing
// table. A background refresh loop keeps the table current from the
// configured route source.
//
// # HTTP API
//
//   - POST /SubmitPost - Submit one post for forwarding
//   - GET /healthz - Liveness check with live route count
//   - GET /metrics - Prometheus metrics (when enabled)
//
// The response body is always a SubmitResponse JSON document; the real
// outcome travels as the HTTP status code: 200 success, 400 validation,
// 401 authentication, 404 unrouted, 408 upstream timeout, 5xx upstream or
// internal failure.
//
// # Operating Modes
//
// A locally terminated instance accepts producer submissions and forwards
// them unsigned over a trusted LAN. A remotely terminated instance signs
// outbound peer requests. The distinction is the signing.forward_signed
// configuration flag, fixed at construction, never per request.
//
// # Refresh Loop
//
// On each interval the loop loads the full profile batch and installs it
// as one atomic replacement. Any failure keeps the previous known-good
// table serving; the error is logged and counted, never propagated to
// request handling.
package gateway
