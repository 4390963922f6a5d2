// ABOUTME: Tests for the microblog vendor session and its token lifecycle
// ABOUTME: Covers lazy token exchange, caching, reply-target validation, error passthrough

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/route"
)

// microblogVendor fakes the vendor's token and status endpoints.
type microblogVendor struct {
	tokenRequests  atomic.Int32
	statusRequests atomic.Int32
	failStatus     int    // when non-zero, status posts fail with this code
	failReason     string // vendor-reported error message
}

func (v *microblogVendor) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		v.tokenRequests.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "k1", user)
		assert.Equal(t, "s1", pass)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("POST /api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		v.statusRequests.Add(1)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		if v.failStatus != 0 {
			w.WriteHeader(v.failStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": v.failReason})
			return
		}
		var req statusRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]string{"id": "99001"})
	})
	return mux
}

func microblogProfile(baseAddress string) route.Profile {
	return route.Profile{
		NameId: "bot1", Category: "social", Api: APITagMicroblog,
		BaseAddress:    baseAddress,
		Authentication: "CONSUMER_KEY=k1,CONSUMER_SECRET=s1",
		UserAgent:      route.DefaultUserAgent,
		Timeout:        5000,
	}
}

func TestMicroblogSessionPostsWithLazyToken(t *testing.T) {
	vendor := &microblogVendor{}
	srv := httptest.NewServer(vendor.handler(t))
	defer srv.Close()

	sess, err := Create(APITagMicroblog, microblogProfile(srv.URL), testDeps(t))
	require.NoError(t, err)
	defer sess.Close()

	status, resp := sess.SubmitPost(context.Background(), &SubmitPost{Text: "hello"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "99001", resp.MsgId)

	// Second post reuses the cached token.
	status, _ = sess.SubmitPost(context.Background(), &SubmitPost{Text: "again"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(1), vendor.tokenRequests.Load())
	assert.Equal(t, int32(2), vendor.statusRequests.Load())
}

func TestMicroblogSessionRejectsNonNumericParentBeforeIO(t *testing.T) {
	vendor := &microblogVendor{}
	srv := httptest.NewServer(vendor.handler(t))
	defer srv.Close()

	sess, err := Create(APITagMicroblog, microblogProfile(srv.URL), testDeps(t))
	require.NoError(t, err)
	defer sess.Close()

	status, resp := sess.SubmitPost(context.Background(), &SubmitPost{
		Text: "hello", ParentMsgId: "abc",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, resp.ErrorReason)
	assert.Zero(t, vendor.tokenRequests.Load())
	assert.Zero(t, vendor.statusRequests.Load())
}

func TestMicroblogSessionPassesThroughVendorError(t *testing.T) {
	vendor := &microblogVendor{failStatus: http.StatusUnprocessableEntity, failReason: "status too long"}
	srv := httptest.NewServer(vendor.handler(t))
	defer srv.Close()

	sess, err := Create(APITagMicroblog, microblogProfile(srv.URL), testDeps(t))
	require.NoError(t, err)
	defer sess.Close()

	status, resp := sess.SubmitPost(context.Background(), &SubmitPost{Text: "hello"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "status too long", resp.ErrorReason)
}
