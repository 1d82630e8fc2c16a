//go:build !profile

package prof

import "errors"

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Profiling errors (defined for API compatibility but never returned by stubs).
var (
	// ErrActive indicates a session is already running.
	ErrActive = errors.New("profile session already active")

	// ErrInvalidProfile indicates an unknown snapshot profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Session is a no-op when built without the "profile" tag.
type Session struct{}

// Start is a no-op when built without the "profile" tag.
func Start(_ Config) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (*Session) Stop() error {
	return nil
}

// Active always returns false when built without the "profile" tag.
func Active() bool {
	return false
}
