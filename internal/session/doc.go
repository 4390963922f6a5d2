// Package session normalizes heterogeneous upstream APIs behind one
// submit-and-respond contract.
//
// # Overview
//
// A Session is bound to exactly one route profile at construction and
// performs one normalized cycle: take a SubmitPost, return a status code
// and SubmitResponse. Nothing above the session boundary handles vendor
// faults; every failure path resolves to that pair.
//
// # Variants
//
//   - peer-v1: the signed peer protocol between two gateway instances
//   - microblog-v1: a status API using a lazily-fetched bearer token
//   - pages-v1: a blog admin API expecting a short-lived signed token
//
// New upstream kinds register a constructor in the factory map in
// factory.go; dispatch on the Api tag is a closed set, not reflection.
//
// # Concurrency
//
// Sessions may be invoked concurrently. A session owning mutable upstream
// state (the microblog token cache) guards it with its own mutex; distinct
// sessions never share state.
package session
