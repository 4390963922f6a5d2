// ABOUTME: Owns the live route-key to session mapping with atomic snapshot swaps
// ABOUTME: Readers always observe one complete table generation, old or new

package manager

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/relay-gateway/internal/metrics"
	"github.com/2389/relay-gateway/internal/route"
	"github.com/2389/relay-gateway/internal/session"
)

// entry pairs a session with the api tag it was built from, for metrics.
type entry struct {
	session session.Session
	api     string
}

// table is one immutable generation of the routing state. It is never
// mutated after publication; Reload builds a whole new one off to the side.
type table struct {
	entries map[string]entry
}

// Manager owns the mapping from route key to live session. Dispatches read
// the current snapshot with a single atomic load; Reload publishes a
// complete replacement with a single atomic store.
type Manager struct {
	current atomic.Pointer[table]
	deps    session.Deps
	logger  *slog.Logger

	// mu serializes Reload and Close; Dispatch never takes it.
	mu sync.Mutex
}

// New creates a Manager with an empty routing table.
func New(deps session.Deps, logger *slog.Logger) *Manager {
	m := &Manager{
		deps:   deps,
		logger: logger.With("component", "manager"),
	}
	m.current.Store(&table{entries: map[string]entry{}})
	return m
}

// Dispatch looks up the posting's route key and delegates to the bound
// session. A miss is a 404 without touching the network; a hit returns the
// session's result unchanged.
func (m *Manager) Dispatch(ctx context.Context, post *session.SubmitPost) (int, *session.SubmitResponse) {
	snapshot := m.current.Load()

	e, ok := snapshot.entries[route.Key(post.NameId, post.Category)]
	if !ok {
		metrics.DispatchTotal.WithLabelValues(strconv.Itoa(http.StatusNotFound)).Inc()
		return http.StatusNotFound, &session.SubmitResponse{
			ErrorReason: fmt.Sprintf("no route for %s/%s", post.NameId, post.Category),
		}
	}

	start := time.Now()
	status, resp := e.session.SubmitPost(ctx, post)
	metrics.UpstreamSeconds.WithLabelValues(e.api).Observe(time.Since(start).Seconds())
	metrics.DispatchTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	return status, resp
}

// Reload builds an entirely new key-to-session mapping from profiles and
// publishes it atomically. Any validation or construction failure rejects
// the whole batch and keeps the previous generation serving. Sessions of
// the old generation are not torn down: in-flight dispatches may still hold
// the old snapshot, so it is simply dropped once unreferenced.
func (m *Manager) Reload(profiles []route.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profileTable, err := route.BuildTable(profiles)
	if err != nil {
		return fmt.Errorf("building route table: %w", err)
	}

	entries := make(map[string]entry, len(profileTable))
	for key, profile := range profileTable {
		sess, err := session.Create(profile.Api, profile, m.deps)
		if err != nil {
			// Reject the batch; close what was built so far.
			for _, e := range entries {
				e.session.Close()
			}
			return err
		}
		entries[key] = entry{session: sess, api: profile.Api}
	}

	m.current.Store(&table{entries: entries})
	metrics.RoutesActive.Set(float64(len(entries)))
	m.logger.Info("route table reloaded", "routes", len(entries))
	return nil
}

// Len returns the number of routes in the current table.
func (m *Manager) Len() int {
	return len(m.current.Load().entries)
}

// Close swaps in an empty table and releases every session's resources.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.current.Swap(&table{entries: map[string]entry{}})
	for _, e := range old.entries {
		e.session.Close()
	}
	metrics.RoutesActive.Set(0)
}
