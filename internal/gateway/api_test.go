// ABOUTME: Tests for the SubmitPost HTTP endpoint and inbound authentication
// ABOUTME: Drives a full Service with a file route source and an httptest peer

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/config"
	"github.com/2389/relay-gateway/internal/session"
	"github.com/2389/relay-gateway/internal/sign"
)

const testSecret = "abcdefabcdef012345"

// testPeer fakes the receiving gateway.
func testPeer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(session.SubmitResponse{MsgId: "42"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeRoutes(t *testing.T, dir string, peerURL string) string {
	t.Helper()
	path := filepath.Join(dir, "routes.json")
	doc := `[{"NameId": "bot1", "Category": "default", "Api": "peer-v1",
		"BaseAddress": "` + peerURL + `", "Authentication": "SECRET=` + testSecret + `",
		"Timeout": 15000}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func newTestService(t *testing.T, signed bool) (*Service, string) {
	t.Helper()

	peer := testPeer(t)
	routesPath := writeRoutes(t, t.TempDir(), peer.URL)

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Routes.Backend = "file"
	cfg.Routes.Connection = routesPath
	cfg.Routes.RefreshInterval = time.Minute
	if signed {
		cfg.Signing.PublicID = "gateway-a"
		cfg.Signing.PrivateSecret = testSecret
		cfg.Signing.AllowedDeltaSeconds = 30
	}

	svc, err := New(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { svc.shutdown() })
	return svc, routesPath
}

func submit(t *testing.T, svc *Service, body []byte, headers map[string]string) (*httptest.ResponseRecorder, *session.SubmitResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/SubmitPost", bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	svc.routes().ServeHTTP(rec, req)

	var resp session.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp
}

func TestSubmitPostEndToEnd(t *testing.T) {
	svc, _ := newTestService(t, false)

	rec, resp := submit(t, svc, []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", resp.MsgId)
	assert.Empty(t, resp.ErrorReason)
}

func TestSubmitPostValidation(t *testing.T) {
	svc, _ := newTestService(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing NameId", `{"Category":"default","Text":"hello"}`},
		{"missing Category", `{"NameId":"bot1","Text":"hello"}`},
		{"missing Text", `{"NameId":"bot1","Category":"default"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := submit(t, svc, []byte(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, resp.ErrorReason)
		})
	}
}

func TestSubmitPostUnroutedReturns404(t *testing.T) {
	svc, _ := newTestService(t, false)

	rec, resp := submit(t, svc, []byte(`{"NameId":"ghost","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, resp.ErrorReason)
}

func TestInboundAuthRequiresAllHeaders(t *testing.T) {
	svc, _ := newTestService(t, true)
	body := []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`)

	client, err := sign.New("gateway-a", []byte(testSecret), 30*time.Second)
	require.NoError(t, err)
	ts, nonce, sig, err := client.Sign(body)
	require.NoError(t, err)

	full := map[string]string{
		sign.HeaderPublicID:  "gateway-a",
		sign.HeaderNonce:     nonce,
		sign.HeaderTimestamp: ts,
		sign.HeaderSignature: sig,
	}

	// Dropping any single header rejects before signature computation.
	for missing := range full {
		t.Run("missing "+missing, func(t *testing.T) {
			headers := make(map[string]string, len(full)-1)
			for k, v := range full {
				if k != missing {
					headers[k] = v
				}
			}
			rec, resp := submit(t, svc, body, headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "missing authentication header", resp.ErrorReason)
		})
	}
}

func TestInboundAuthAcceptsValidSignature(t *testing.T) {
	svc, _ := newTestService(t, true)
	body := []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`)

	client, err := sign.New("gateway-a", []byte(testSecret), 30*time.Second)
	require.NoError(t, err)
	ts, nonce, sig, err := client.Sign(body)
	require.NoError(t, err)

	rec, resp := submit(t, svc, body, map[string]string{
		sign.HeaderPublicID:  "gateway-a",
		sign.HeaderNonce:     nonce,
		sign.HeaderTimestamp: ts,
		sign.HeaderSignature: sig,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", resp.MsgId)
}

func TestInboundAuthRejectsBadSignature(t *testing.T) {
	svc, _ := newTestService(t, true)
	body := []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`)

	client, err := sign.New("gateway-a", []byte("wrong-secret-entirely"), 30*time.Second)
	require.NoError(t, err)
	ts, nonce, sig, err := client.Sign(body)
	require.NoError(t, err)

	rec, _ := submit(t, svc, body, map[string]string{
		sign.HeaderPublicID:  "gateway-a",
		sign.HeaderNonce:     nonce,
		sign.HeaderTimestamp: ts,
		sign.HeaderSignature: sig,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfiguredDefaultsFillEmptyProfileFields(t *testing.T) {
	var gotAgent atomic.Value
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent.Store(r.Header.Get("User-Agent"))
		json.NewEncoder(w).Encode(session.SubmitResponse{MsgId: "42"})
	}))
	t.Cleanup(peer.Close)

	// The profile carries neither UserAgent nor Timeout; both must come
	// from the configured defaults before validation runs.
	routesPath := filepath.Join(t.TempDir(), "routes.json")
	doc := `[{"NameId": "bot1", "Category": "default", "Api": "peer-v1",
		"BaseAddress": "` + peer.URL + `"}]`
	require.NoError(t, os.WriteFile(routesPath, []byte(doc), 0644))

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Routes.Backend = "file"
	cfg.Routes.Connection = routesPath
	cfg.Routes.RefreshInterval = time.Minute
	cfg.Defaults.UserAgent = "configured-agent"
	cfg.Defaults.TimeoutMs = 15000

	svc, err := New(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { svc.shutdown() })

	rec, _ := submit(t, svc, []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "configured-agent", gotAgent.Load())

	// The refresh path applies the same defaults.
	doc = `[{"NameId": "bot2", "Category": "default", "Api": "peer-v1",
		"BaseAddress": "` + peer.URL + `"}]`
	require.NoError(t, os.WriteFile(routesPath, []byte(doc), 0644))
	svc.refresh()

	rec, _ = submit(t, svc, []byte(`{"NameId":"bot2","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "configured-agent", gotAgent.Load())
}

func TestRefreshFailureKeepsServingOldTable(t *testing.T) {
	svc, routesPath := newTestService(t, false)
	require.Equal(t, 1, svc.manager.Len())

	// Corrupt the backend, then force a refresh cycle.
	require.NoError(t, os.WriteFile(routesPath, []byte("{broken"), 0644))
	svc.refresh()

	assert.Equal(t, 1, svc.manager.Len(), "previous table must survive a failed load")
	rec, resp := submit(t, svc, []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", resp.MsgId)
}

func TestRefreshInstallsNewTable(t *testing.T) {
	svc, routesPath := newTestService(t, false)

	peer := testPeer(t)
	doc := `[{"NameId": "bot2", "Category": "default", "Api": "peer-v1",
		"BaseAddress": "` + peer.URL + `", "Timeout": 15000}]`
	require.NoError(t, os.WriteFile(routesPath, []byte(doc), 0644))
	svc.refresh()

	rec, _ := submit(t, svc, []byte(`{"NameId":"bot1","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := submit(t, svc, []byte(`{"NameId":"bot2","Category":"default","Text":"hello"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", resp.MsgId)
}
