// Package metrics declares the gateway's Prometheus collectors.
//
// Collectors are registered at init via promauto and shared across
// packages: dispatch outcomes by status, reload outcomes, the active
// route gauge, and upstream latency by Api kind.
package metrics
