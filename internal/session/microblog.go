// ABOUTME: Microblog vendor session posting statuses via a bearer token
// ABOUTME: The token is fetched lazily with client credentials and cached per session

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/2389/relay-gateway/internal/route"
)

// Credential keys required in the profile's Authentication blob.
const (
	credConsumerKey    = "CONSUMER_KEY"
	credConsumerSecret = "CONSUMER_SECRET"
)

// MicroblogSession submits posts to a microblogging vendor API. The access
// token is exchanged from the consumer key pair on first use and cached;
// the cache is the session's only mutable state and is guarded by mu.
type MicroblogSession struct {
	profile        route.Profile
	client         *http.Client
	consumerKey    string
	consumerSecret string
	logger         *slog.Logger

	mu    sync.Mutex
	token string
}

func newMicroblogSession(profile route.Profile, deps Deps) (Session, error) {
	creds := ParseAuth(profile.Authentication)
	if err := requireKeys(creds, credConsumerKey, credConsumerSecret); err != nil {
		return nil, err
	}
	return &MicroblogSession{
		profile:        profile,
		client:         &http.Client{Timeout: profile.TimeoutDuration()},
		consumerKey:    creds[credConsumerKey],
		consumerSecret: creds[credConsumerSecret],
		logger:         deps.Logger.With("component", "session", "api", APITagMicroblog, "route", profile.Key()),
	}, nil
}

// statusRequest is the vendor's wire shape for creating a status.
type statusRequest struct {
	Status      string `json:"status"`
	InReplyToID int64  `json:"in_reply_to_id,omitempty"`
}

// statusResponse is the vendor's reply; Error is set on failure.
type statusResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// SubmitPost posts a status, translating the vendor's failure modes into
// the normalized result: vendor status and message pass through, a timeout
// becomes 408, anything else 500.
func (s *MicroblogSession) SubmitPost(ctx context.Context, post *SubmitPost) (int, *SubmitResponse) {
	var parent int64
	if post.ParentMsgId != "" {
		var err error
		parent, err = strconv.ParseInt(post.ParentMsgId, 10, 64)
		if err != nil {
			return failure(http.StatusBadRequest, fmt.Sprintf("ParentMsgId %q is not a valid status id", post.ParentMsgId))
		}
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		s.logger.Warn("token fetch failed", "error", err)
		return mapSendError(err)
	}

	body, err := json.Marshal(statusRequest{Status: post.Text, InReplyToID: parent})
	if err != nil {
		return failure(http.StatusInternalServerError, "encoding request failed")
	}

	endpoint := strings.TrimSuffix(s.profile.BaseAddress, "/") + "/api/v1/statuses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(http.StatusInternalServerError, "building request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.profile.UserAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("status post failed", "error", err)
		return mapSendError(err)
	}
	defer resp.Body.Close()

	var result statusResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&result)

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked; drop it so the next call re-fetches.
		s.invalidateToken(token)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		reason := result.Error
		if reason == "" {
			reason = fmt.Sprintf("vendor returned status %d", resp.StatusCode)
		}
		return failure(resp.StatusCode, reason)
	}
	if decodeErr != nil || result.ID == "" {
		return failure(http.StatusInternalServerError, "undecodable vendor response")
	}
	return success(result.ID)
}

// accessToken returns the cached bearer token, exchanging the consumer key
// pair for a fresh one on first use. Serialized so concurrent dispatches
// trigger at most one exchange.
func (s *MicroblogSession) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	endpoint := strings.TrimSuffix(s.profile.BaseAddress, "/") + "/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.profile.UserAgent)
	req.SetBasicAuth(s.consumerKey, s.consumerSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	s.token = payload.AccessToken
	return s.token, nil
}

// invalidateToken clears the cached token if it is still the one that failed.
func (s *MicroblogSession) invalidateToken(failed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == failed {
		s.token = ""
	}
}

// Close clears the cached token and drops idle connections.
func (s *MicroblogSession) Close() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	s.client.CloseIdleConnections()
}
