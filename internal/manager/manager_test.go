// ABOUTME: Tests for SessionManager dispatch and atomic reload behavior
// ABOUTME: A rejected batch must leave the previous generation serving

package manager

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/route"
	"github.com/2389/relay-gateway/internal/session"
	"github.com/2389/relay-gateway/internal/sign"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	signer, err := sign.New("", nil, 0)
	require.NoError(t, err)
	return New(session.Deps{Signer: signer}, slog.Default())
}

func peerServer(t *testing.T, msgID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(session.SubmitResponse{MsgId: msgID})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func profileFor(srv *httptest.Server, nameID string) route.Profile {
	return route.Profile{
		NameId: nameID, Category: "default", Api: session.APITagPeer,
		BaseAddress: srv.URL, Timeout: 5000,
	}
}

func TestDispatchMissReturns404WithoutNetwork(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	status, resp := m.Dispatch(context.Background(), &session.SubmitPost{
		NameId: "ghost", Category: "default", Text: "hello",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, resp.ErrorReason)
	assert.Empty(t, resp.MsgId)
}

func TestDispatchHitDelegatesUnchanged(t *testing.T) {
	srv := peerServer(t, "42")
	m := newTestManager(t)
	defer m.Close()

	require.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot1")}))

	status, resp := m.Dispatch(context.Background(), &session.SubmitPost{
		NameId: "BOT1", Category: "Default", Text: "hello",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "42", resp.MsgId)
}

func TestReloadRejectsBatchWithDuplicateKeys(t *testing.T) {
	srv := peerServer(t, "42")
	m := newTestManager(t)
	defer m.Close()

	require.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot1")}))
	require.Equal(t, 1, m.Len())

	p1 := profileFor(srv, "bot2")
	p2 := profileFor(srv, "BOT2")
	err := m.Reload([]route.Profile{p1, p2})
	assert.ErrorIs(t, err, route.ErrDuplicateRoute)

	// Previous generation still serves.
	assert.Equal(t, 1, m.Len())
	status, _ := m.Dispatch(context.Background(), &session.SubmitPost{
		NameId: "bot1", Category: "default", Text: "hello",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestReloadRejectsBatchWithUnknownAPITag(t *testing.T) {
	srv := peerServer(t, "42")
	m := newTestManager(t)
	defer m.Close()

	require.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot1")}))

	bad := profileFor(srv, "bot2")
	bad.Api = "telegraph-v0"
	err := m.Reload([]route.Profile{bad})
	assert.ErrorIs(t, err, session.ErrUnknownAPI)
	assert.Equal(t, 1, m.Len())
}

func TestReloadSwapsWholeGeneration(t *testing.T) {
	srv := peerServer(t, "42")
	m := newTestManager(t)
	defer m.Close()

	require.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot1")}))
	require.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot2")}))

	status, _ := m.Dispatch(context.Background(), &session.SubmitPost{
		NameId: "bot1", Category: "default", Text: "hello",
	})
	assert.Equal(t, http.StatusNotFound, status, "dropped route must be gone")

	status, _ = m.Dispatch(context.Background(), &session.SubmitPost{
		NameId: "bot2", Category: "default", Text: "hello",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestConcurrentDispatchDuringReload(t *testing.T) {
	srv := peerServer(t, "42")
	m := newTestManager(t)
	defer m.Close()

	require.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot1")}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(200 * time.Millisecond)
		for time.Now().Before(deadline) {
			assert.NoError(t, m.Reload([]route.Profile{profileFor(srv, "bot1")}))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		status, resp := m.Dispatch(context.Background(), &session.SubmitPost{
			NameId: "bot1", Category: "default", Text: "hello",
		})
		// Whichever generation the dispatch observed, it is complete.
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "42", resp.MsgId)
	}
}
