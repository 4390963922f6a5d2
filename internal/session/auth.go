// ABOUTME: Parses the opaque key=value,key=value credential blob on a route profile
// ABOUTME: Missing required keys are construction-time errors, never runtime ones

package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredential indicates a required key is absent from a profile's
// Authentication blob.
var ErrMissingCredential = errors.New("missing credential key")

// ParseAuth splits a key=value,key=value blob into a map. Whitespace around
// keys and values is trimmed; the value may itself contain '='. An empty
// blob is an empty map.
func ParseAuth(blob string) map[string]string {
	creds := make(map[string]string)
	for _, pair := range strings.Split(blob, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		creds[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return creds
}

// requireKeys returns ErrMissingCredential naming the first required key
// that is absent or empty.
func requireKeys(creds map[string]string, keys ...string) error {
	for _, key := range keys {
		if creds[key] == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredential, key)
		}
	}
	return nil
}
