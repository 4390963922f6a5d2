// Package manager owns the live routing table and dispatches submits
// through it.
//
// # Overview
//
// The Manager maps route keys to constructed sessions. Reload builds a
// complete replacement table off to the side and publishes it with one
// atomic pointer swap; Dispatch reads whichever generation is current
// with no lock. A batch that fails validation or session construction is
// discarded whole and the previous generation keeps serving.
//
// Replaced generations are not closed on reload: in-flight requests may
// still hold them, and sessions own no connection state that requires
// eager release. Everything is closed once, at shutdown.
package manager
