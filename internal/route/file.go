// ABOUTME: File backend for route profiles, a whole-array JSON document
// ABOUTME: A missing file is an empty batch, not a load error

package route

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource loads profiles from a JSON file containing an array of
// profile records.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed Source reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and parses the profile document. A missing file yields an
// empty batch so a fresh deployment can start before any routes exist.
func (s *FileSource) Load(_ context.Context) ([]Profile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLoad, s.path, err)
	}

	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrLoad, s.path, err)
	}
	return profiles, nil
}
