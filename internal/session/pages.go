// ABOUTME: Pages vendor session publishing posts to a blog-style admin API
// ABOUTME: Mints a short-lived HS256 token from the profile's admin key per request

package session

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/relay-gateway/internal/route"
)

// credAdminKey holds a "keyid:hexsecret" admin key in the Authentication blob.
const credAdminKey = "ADMIN_KEY"

const pagesTokenTTL = 5 * time.Minute

// PagesSession submits posts to a blog-style vendor whose admin API expects
// a short-lived signed token on every request. The key id and secret are
// split and decoded at construction so a malformed key can never surface as
// a runtime error.
type PagesSession struct {
	profile route.Profile
	client  *http.Client
	keyID   string
	secret  []byte
	logger  *slog.Logger
}

func newPagesSession(profile route.Profile, deps Deps) (Session, error) {
	creds := ParseAuth(profile.Authentication)
	if err := requireKeys(creds, credAdminKey); err != nil {
		return nil, err
	}

	keyID, hexSecret, found := strings.Cut(creds[credAdminKey], ":")
	if !found || keyID == "" || hexSecret == "" {
		return nil, fmt.Errorf("%w: %s must be keyid:hexsecret", ErrMissingCredential, credAdminKey)
	}
	secret, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %s secret is not hex", ErrMissingCredential, credAdminKey)
	}

	return &PagesSession{
		profile: profile,
		client:  &http.Client{Timeout: profile.TimeoutDuration()},
		keyID:   keyID,
		secret:  secret,
		logger:  deps.Logger.With("component", "session", "api", APITagPages, "route", profile.Key()),
	}, nil
}

// pageRequest is the vendor's wire shape for creating a post.
type pageRequest struct {
	Text        string `json:"text"`
	ParentMsgID string `json:"parent_id,omitempty"`
}

// pageResponse is the vendor's reply; Error is set on failure.
type pageResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// SubmitPost publishes the text through the vendor's admin API.
func (s *PagesSession) SubmitPost(ctx context.Context, post *SubmitPost) (int, *SubmitResponse) {
	token, err := s.mintToken()
	if err != nil {
		return failure(http.StatusInternalServerError, "minting admin token failed")
	}

	body, err := json.Marshal(pageRequest{Text: post.Text, ParentMsgID: post.ParentMsgId})
	if err != nil {
		return failure(http.StatusInternalServerError, "encoding request failed")
	}

	endpoint := strings.TrimSuffix(s.profile.BaseAddress, "/") + "/admin/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(http.StatusInternalServerError, "building request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.profile.UserAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("post publish failed", "error", err)
		return mapSendError(err)
	}
	defer resp.Body.Close()

	var result pageResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&result)

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

// mintToken creates a fresh HS256 token scoped to the admin API. Tokens are
// deliberately not cached: they are cheap to mint and a stale one would
// outlive its short validity anyway.
func (s *PagesSession) mintToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(pagesTokenTTL).Unix(),
		"aud": "/admin/",
	})
	token.Header["kid"] = s.keyID
	return token.SignedString(s.secret)
}

// Close drops idle connections held for this vendor.
func (s *PagesSession) Close() {
	s.client.CloseIdleConnections()
}
