// Package sign implements the peer-protocol request authentication.
//
// # Overview
//
// Gateway-to-peer requests are authenticated with an HMAC-SHA256
// signature instead of transport-level client certificates. The signer
// and verifier share a public id and a private secret; an empty secret
// disables authentication entirely.
//
// # Canonical Message
//
// The signature covers exactly four concatenated fields:
//
//	timestamp || nonce || publicID || body
//
// HTTP method and path are deliberately excluded: intermediaries that
// rewrite paths would otherwise break verification. The fields travel as
// four independent headers (X-Relay-Public-Id, X-Relay-Nonce,
// X-Relay-Timestamp, X-Relay-Signature).
//
// # Replay Defense
//
// Verification rejects timestamps outside the configured delta window,
// and, when a NonceCache is attached, exact replays of a (publicID,
// nonce) pair inside that window. Signature comparison is constant-time.
package sign
