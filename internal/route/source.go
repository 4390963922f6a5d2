// ABOUTME: Source interface for loading route profile batches from a backend
// ABOUTME: Load errors are distinct from a legitimately empty batch

package route

import (
	"context"
	"errors"
	"fmt"
)

// ErrLoad wraps any backend failure while fetching profiles. Callers must
// distinguish it from a successful load of zero routes: the former keeps
// the previous table, the latter installs an empty one.
var ErrLoad = errors.New("route load failed")

// Source loads the full set of route profiles from a backend. A Source
// never mutates shared state; it only returns data for the caller to
// install.
type Source interface {
	// Load returns a fresh batch of profiles. Implementations return the
	// complete set on every call; there is no incremental variant.
	Load(ctx context.Context) ([]Profile, error)
}

// Backend kinds accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open constructs the Source for the configured backend kind.
// An unknown kind is a configuration error.
func Open(ctx context.Context, backend, connection string) (Source, error) {
	switch backend {
	case BackendFile:
		return NewFileSource(connection), nil
	case BackendSQLite:
		return NewSQLiteSource(connection)
	case BackendPostgres:
		return NewPostgresSource(ctx, connection)
	default:
		return nil, fmt.Errorf("unknown route backend %q", backend)
	}
}
