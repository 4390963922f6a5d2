// ABOUTME: Route profile definition, validation, and identity-key normalization
// ABOUTME: Profiles are immutable once loaded; all validation happens at table build time

package route

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultUserAgent is used when a profile does not specify one.
const DefaultUserAgent = "relay-gateway"

// ErrInvalidProfile indicates a profile failed shape validation.
var ErrInvalidProfile = errors.New("invalid route profile")

// Profile describes one upstream endpoint: its identity, API kind,
// address, credentials, and timeout. Field names double as the wire
// format of the file backend, so they are fixed.
type Profile struct {
	NameId         string `json:"NameId"`
	Category       string `json:"Category"`
	Api            string `json:"Api"`
	BaseAddress    string `json:"BaseAddress"`
	Authentication string `json:"Authentication"`
	UserAgent      string `json:"UserAgent"`
	Timeout        int    `json:"Timeout"` // milliseconds
}

// Key returns the identity key for a (name, category) pair.
// Both components are case-insensitive.
func Key(nameID, category string) string {
	return strings.ToLower(nameID) + "/" + strings.ToLower(category)
}

// Key returns this profile's identity key.
func (p Profile) Key() string {
	return Key(p.NameId, p.Category)
}

// TimeoutDuration returns the profile timeout as a time.Duration.
func (p Profile) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Millisecond
}

// Validate checks that all required profile fields are present and well-formed.
func (p Profile) Validate() error {
	if p.NameId == "" {
		return fmt.Errorf("%w: NameId is required", ErrInvalidProfile)
	}
	if p.Category == "" {
		return fmt.Errorf("%w: Category is required", ErrInvalidProfile)
	}
	if p.Api == "" {
		return fmt.Errorf("%w: Api is required", ErrInvalidProfile)
	}
	if !validBaseAddress(p.BaseAddress) {
		return fmt.Errorf("%w: BaseAddress %q must be an http(s) URL", ErrInvalidProfile, p.BaseAddress)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: Timeout must be positive, got %d", ErrInvalidProfile, p.Timeout)
	}
	return nil
}

// validBaseAddress requires an http or https scheme with something after it.
func validBaseAddress(addr string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(addr, scheme) && len(addr) > len(scheme) {
			return true
		}
	}
	return false
}
