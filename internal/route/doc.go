// Package route defines routing profiles and the backends that load them.
//
// # Overview
//
// A Profile describes one upstream destination: who it serves (NameId,
// Category), how to reach it (Api, BaseAddress), and how to talk to it
// (Authentication, UserAgent, Timeout). Profiles are keyed
// case-insensitively by "nameid/category".
//
// # Batch Semantics
//
// BuildTable validates a loaded batch as a unit. A single invalid or
// duplicated profile rejects the whole batch, so a half-broken table is
// never installed; callers keep serving the previous generation instead.
//
// # Sources
//
// A Source loads profile batches from one backend:
//
//   - file: a JSON document on disk; a missing file is an empty batch
//   - sqlite: an embedded database, schema created on open
//   - postgres: a shared database reached through a connection pool
//
// Open selects the backend by name. Every Source returns the same
// []Profile shape, so callers never branch on the backend kind.
package route
