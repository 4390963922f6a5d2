// ABOUTME: Closed factory dispatching on the profile's Api tag
// ABOUTME: The one place new upstream kinds are registered

package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/relay-gateway/internal/route"
	"github.com/2389/relay-gateway/internal/sign"
)

// ErrUnknownAPI indicates a profile names an Api tag with no registered
// session constructor.
var ErrUnknownAPI = errors.New("unknown api tag")

// Deps carries the construction-time collaborators shared by all sessions.
type Deps struct {
	// Signer is the peer-protocol signature protocol, possibly disabled.
	Signer *sign.Protocol

	// ForwardSigned controls whether peer sessions sign outbound requests.
	// True on a gateway forwarding to a remote peer, false when the peer
	// is reached over a trusted LAN.
	ForwardSigned bool

	Logger *slog.Logger
}

// API tags accepted by Create.
const (
	APITagPeer      = "peer-v1"
	APITagMicroblog = "microblog-v1"
	APITagPages     = "pages-v1"
)

type constructor func(route.Profile, Deps) (Session, error)

// constructors is the closed set of upstream kinds. Adding a new kind means
// adding a variant and one entry here, nothing reflective.
var constructors = map[string]constructor{
	APITagPeer:      newPeerSession,
	APITagMicroblog: newMicroblogSession,
	APITagPages:     newPagesSession,
}

// Create builds the session variant selected by apiTag, bound to profile.
// An unknown tag or invalid credentials is a configuration error; the
// caller must not activate the route.
func Create(apiTag string, profile route.Profile, deps Deps) (Session, error) {
	build, ok := constructors[apiTag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAPI, apiTag)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	sess, err := build(profile, deps)
	if err != nil {
		return nil, fmt.Errorf("creating %s session for %s: %w", apiTag, profile.Key(), err)
	}
	return sess, nil
}
