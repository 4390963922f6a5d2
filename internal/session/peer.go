// ABOUTME: Peer-protocol session forwarding a submit to another gateway instance
// ABOUTME: Signs the outbound body when configured as forwarding to a remote peer

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/relay-gateway/internal/route"
	"github.com/2389/relay-gateway/internal/sign"
)

// PeerSession submits posts to another relay-gateway over the signed peer
// protocol.
type PeerSession struct {
	profile route.Profile
	client  *http.Client
	signer  *sign.Protocol
	forward bool
	logger  *slog.Logger
}

// Per-route credential keys overriding the service-level signing setup.
const (
	credPeerSecret   = "SECRET"
	credPeerPublicID = "PUBLIC_ID"
)

func newPeerSession(profile route.Profile, deps Deps) (Session, error) {
	signer := deps.Signer

	// A route may carry its own shared secret for this specific peer;
	// it takes precedence over the service-level signing configuration.
	creds := ParseAuth(profile.Authentication)
	if secret := creds[credPeerSecret]; secret != "" {
		publicID := creds[credPeerPublicID]
		if publicID == "" && signer.Enabled() {
			publicID = signer.PublicID()
		}
		if publicID == "" {
			publicID = strings.ToLower(profile.NameId)
		}
		var err error
		signer, err = sign.New(publicID, []byte(secret), 0)
		if err != nil {
			return nil, err
		}
	}

	return &PeerSession{
		profile: profile,
		client:  &http.Client{Timeout: profile.TimeoutDuration()},
		signer:  signer,
		forward: deps.ForwardSigned,
		logger:  deps.Logger.With("component", "session", "api", APITagPeer, "route", profile.Key()),
	}, nil
}

// SubmitPost serializes the post, optionally signs it, and forwards it to
// the peer's SubmitPost endpoint. The peer's own status and error reason
// pass through unchanged.
func (s *PeerSession) SubmitPost(ctx context.Context, post *SubmitPost) (int, *SubmitResponse) {
	// The peer protocol uses integer message ids; reject a malformed reply
	// target before any network I/O.
	if post.ParentMsgId != "" {
		if _, err := strconv.ParseInt(post.ParentMsgId, 10, 64); err != nil {
			return failure(http.StatusBadRequest, fmt.Sprintf("ParentMsgId %q is not a valid peer message id", post.ParentMsgId))
		}
	}

	body, err := json.Marshal(post)
	if err != nil {
		return failure(http.StatusInternalServerError, "encoding request failed")
	}

	endpoint := strings.TrimSuffix(s.profile.BaseAddress, "/") + "/SubmitPost"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(http.StatusInternalServerError, "building request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.profile.UserAgent)

	if s.forward && s.signer.Enabled() {
		timestamp, nonce, signature, err := s.signer.Sign(body)
		if err != nil {
			return failure(http.StatusInternalServerError, "signing request failed")
		}
		req.Header.Set(sign.HeaderPublicID, s.signer.PublicID())
		req.Header.Set(sign.HeaderNonce, nonce)
		req.Header.Set(sign.HeaderTimestamp, timestamp)
		req.Header.Set(sign.HeaderSignature, signature)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("peer request failed", "error", err)
		return mapSendError(err)
	}
	defer resp.Body.Close()

	var result SubmitResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&result); err != nil {
		if resp.StatusCode == http.StatusOK {
			return failure(http.StatusInternalServerError, "undecodable peer response")
		}
		return failure(resp.StatusCode, fmt.Sprintf("peer returned status %d", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		if result.ErrorReason == "" {
			result.ErrorReason = fmt.Sprintf("peer returned status %d", resp.StatusCode)
		}
		return resp.StatusCode, &SubmitResponse{ErrorReason: result.ErrorReason}
	}
	return success(result.MsgId)
}

// Close drops any idle connections held for this peer.
func (s *PeerSession) Close() {
	s.client.CloseIdleConnections()
}
