// ABOUTME: Builds the identity-keyed routing table from a loaded profile batch
// ABOUTME: A duplicate key rejects the whole batch rather than merging best-effort

package route

import (
	"errors"
	"fmt"
)

// ErrDuplicateRoute indicates two profiles in one batch share an identity key.
var ErrDuplicateRoute = errors.New("duplicate route key")

// BuildTable validates every profile in the batch, applies defaults, and
// returns the batch keyed by identity. The build fails atomically: any
// invalid profile or duplicate key rejects the entire batch so a caller
// never installs a partial table.
func BuildTable(profiles []Profile) (map[string]Profile, error) {
	table := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if p.UserAgent == "" {
			p.UserAgent = DefaultUserAgent
		}
		key := p.Key()
		if _, exists := table[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
		}
		table[key] = p
	}
	return table, nil
}
