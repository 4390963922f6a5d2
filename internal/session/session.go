// ABOUTME: ClientSession contract and the normalized submit request/response shapes
// ABOUTME: Every failure path resolves to a status/response pair, nothing escapes

package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
)

// SubmitPost is the normalized inbound envelope. NameId and Category select
// the route; Text is the message body; ParentMsgId optionally names a reply
// target in the upstream's own id format.
type SubmitPost struct {
	NameId      string `json:"NameId"`
	Category    string `json:"Category"`
	Text        string `json:"Text"`
	ParentMsgId string `json:"ParentMsgId,omitempty"`
}

// SubmitResponse is the normalized outbound result. Exactly one of MsgId and
// ErrorReason is set; the real outcome travels as the status code alongside.
type SubmitResponse struct {
	MsgId       string `json:"MsgId,omitempty"`
	ErrorReason string `json:"ErrorReason,omitempty"`
}

// Session performs one normalized submit-and-respond cycle against a
// specific upstream. Implementations must be safe for concurrent use and
// must never propagate a fault across this boundary: every failure maps to
// a status/response pair.
type Session interface {
	SubmitPost(ctx context.Context, post *SubmitPost) (int, *SubmitResponse)

	// Close releases underlying resources: idle connections and cached
	// credentials.
	Close()
}

// success builds a 200 result carrying the upstream-assigned message id.
func success(msgID string) (int, *SubmitResponse) {
	return http.StatusOK, &SubmitResponse{MsgId: msgID}
}

// failure builds an error result with the given status and reason.
func failure(status int, reason string) (int, *SubmitResponse) {
	return status, &SubmitResponse{ErrorReason: reason}
}

// mapSendError converts a transport-level error from an upstream call into
// a normalized result. A deadline or timeout of any flavor is 408; anything
// else is an internal 500 with a generic reason.
func mapSendError(err error) (int, *SubmitResponse) {
	if isTimeout(err) {
		return http.StatusRequestTimeout, &SubmitResponse{ErrorReason: "upstream timed out"}
	}
	return http.StatusInternalServerError, &SubmitResponse{ErrorReason: "upstream request failed"}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
