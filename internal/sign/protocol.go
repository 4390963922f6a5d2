// ABOUTME: HMAC-SHA256 request signing and verification for the peer protocol
// ABOUTME: Enforces a replay window on timestamps and optional nonce replay rejection

package sign

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Header names carrying the signature fields on a signed request.
// All four must be present when authentication is enabled.
const (
	HeaderPublicID  = "X-Relay-Public-Id"
	HeaderNonce     = "X-Relay-Nonce"
	HeaderTimestamp = "X-Relay-Timestamp"
	HeaderSignature = "X-Relay-Signature"
)

// Verification errors. All of them surface to the caller as a 401-equivalent
// result with no retry.
var (
	ErrPartialCredentials = errors.New("public id and secret must be supplied together")
	ErrPublicIDMismatch   = errors.New("unknown public id")
	ErrBadTimestamp       = errors.New("timestamp is not an integer")
	ErrOutsideWindow      = errors.New("timestamp outside replay window")
	ErrBadSignature       = errors.New("signature mismatch")
	ErrNonceReplayed      = errors.New("nonce already seen")
)

const nonceSize = 16

// Protocol signs and verifies request bodies with a shared secret.
// An empty secret disables authentication entirely: Sign is a no-op
// failure and Verify always succeeds.
type Protocol struct {
	publicID     string
	secret       []byte
	allowedDelta time.Duration
	nonces       *NonceCache

	// now is swappable for window tests
	now func() time.Time
}

// New creates a Protocol. Supplying only one of publicID and secret is a
// configuration error. allowedDelta bounds the accepted clock skew; zero or
// negative disables the window check while signing still occurs.
func New(publicID string, secret []byte, allowedDelta time.Duration) (*Protocol, error) {
	if (publicID == "") != (len(secret) == 0) {
		return nil, ErrPartialCredentials
	}
	return &Protocol{
		publicID:     publicID,
		secret:       secret,
		allowedDelta: allowedDelta,
		now:          time.Now,
	}, nil
}

// Enabled reports whether a secret is configured.
func (p *Protocol) Enabled() bool {
	return p != nil && len(p.secret) > 0
}

// PublicID returns the configured cleartext identifier.
func (p *Protocol) PublicID() string {
	return p.publicID
}

// AttachNonceCache enables exact-replay rejection of (publicID, nonce)
// pairs seen inside the replay window.
func (p *Protocol) AttachNonceCache(c *NonceCache) {
	p.nonces = c
}

// Sign produces the three generated signature fields for body. The caller
// sends them, together with the public id, as independent headers.
func (p *Protocol) Sign(body []byte) (timestamp, nonce, signature string, err error) {
	if !p.Enabled() {
		return "", "", "", errors.New("signing is not configured")
	}

	raw := make([]byte, nonceSize)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generating nonce: %w", err)
	}

	timestamp = strconv.FormatInt(p.now().Unix(), 10)
	nonce = base64.StdEncoding.EncodeToString(raw)
	signature = base64.StdEncoding.EncodeToString(p.compute(timestamp, nonce, body))
	return timestamp, nonce, signature, nil
}

// Verify checks a claimed signature over body. Checks are ordered cheapest
// first: the public id comparison rejects before any hashing happens.
func (p *Protocol) Verify(claimedPublicID, timestamp, nonce, signature string, body []byte) error {
	if !p.Enabled() {
		return nil
	}

	if claimedPublicID != p.publicID {
		return ErrPublicIDMismatch
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}

	if p.allowedDelta > 0 {
		// Compared in whole seconds. The subtraction and negation can wrap
		// for extreme timestamps; a wrapped delta stays negative and is
		// rejected rather than landing back inside the window.
		delta := p.now().Unix() - ts
		if delta < 0 {
			delta = -delta
		}
		if delta < 0 || delta > int64(p.allowedDelta/time.Second) {
			return ErrOutsideWindow
		}
	}

	want := p.compute(timestamp, nonce, body)
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || !hmac.Equal(want, got) {
		return ErrBadSignature
	}

	if p.nonces != nil && p.nonces.CheckAndMark(claimedPublicID+":"+nonce) {
		return ErrNonceReplayed
	}
	return nil
}

// compute builds the canonical message timestamp || nonce || publicID || body
// and returns its HMAC-SHA256. The composition is fixed: method and path are
// deliberately excluded so intermediaries rewriting the request path cannot
// break verification.
func (p *Protocol) compute(timestamp, nonce string, body []byte) []byte {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	mac.Write([]byte(p.publicID))
	mac.Write(body)
	return mac.Sum(nil)
}
