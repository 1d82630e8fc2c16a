//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Enabled reports whether profiling is compiled in.
const Enabled = true

// Profiling errors.
var (
	// ErrActive indicates a session is already running.
	ErrActive = errors.New("profile session already active")

	// ErrInvalidProfile indicates an unknown snapshot profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

var (
	// sessionMutex protects active.
	sessionMutex sync.Mutex

	// active is the running session, if any.
	active *Session
)

// Session is one profiling run. CPU samples stream while it runs; the
// snapshot profiles are written when it stops.
type Session struct {
	cfg     Config
	cpuFile *os.File
	stopped bool
}

// Start begins a session. Only one session may run at a time.
func Start(cfg Config) (*Session, error) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if active != nil {
		return nil, ErrActive
	}
	for _, snap := range cfg.snapshots() {
		if pprof.Lookup(string(snap.profile)) == nil {
			return nil, fmt.Errorf("%s: %w", snap.profile, ErrInvalidProfile)
		}
	}

	s := &Session{cfg: cfg}
	if cfg.CPU != "" {
		f, err := os.Create(cfg.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		s.cpuFile = f
	}
	if cfg.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}

	active = s
	return s, nil
}

// Stop ends the session and writes the snapshot profiles. Calling Stop
// again does nothing.
func (s *Session) Stop() error {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	if active == s {
		active = nil
	}

	var errs []error
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpuFile.Close())
	}
	if s.cfg.Block != "" {
		defer runtime.SetBlockProfileRate(0)
	}
	if s.cfg.Mutex != "" {
		defer runtime.SetMutexProfileFraction(0)
	}
	for _, snap := range s.cfg.snapshots() {
		errs = append(errs, writeProfile(snap.profile, snap.path))
	}
	return errors.Join(errs...)
}

// Active reports whether a session is running.
func Active() bool {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()
	return active != nil
}

// writeProfile writes the named snapshot to path in protobuf format.
func writeProfile(p Profile, path string) error {
	if p == ProfileHeap {
		runtime.GC() // Up-to-date live objects
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.Lookup(string(p)).WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", p, err)
	}
	return f.Close()
}
