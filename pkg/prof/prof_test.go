//go:build profile

package prof

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func nonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%s) error = %v", filepath.Base(path), err)
	}
	if info.Size() == 0 {
		t.Errorf("%s is empty", filepath.Base(path))
	}
}

func TestSession(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPU:       filepath.Join(dir, "cpu.prof"),
		Heap:      filepath.Join(dir, "heap.prof"),
		Goroutine: filepath.Join(dir, "goroutine.prof"),
		Mutex:     filepath.Join(dir, "mutex.prof"),
	}

	s, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !Active() {
		t.Error("Active() = false during session")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if Active() {
		t.Error("Active() = true after Stop()")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	nonEmpty(t, cfg.CPU)
	nonEmpty(t, cfg.Heap)
	nonEmpty(t, cfg.Goroutine)
	nonEmpty(t, cfg.Mutex)
	if _, err := os.Stat(filepath.Join(dir, "block.prof")); err == nil {
		t.Error("unrequested block profile written")
	}
}

func TestStartFailFastWhenActive(t *testing.T) {
	s, err := Start(Config{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if _, err := Start(Config{}); !errors.Is(err, ErrActive) {
		t.Errorf("Start() error = %v, want %v", err, ErrActive)
	}
}

func TestStartInvalidPath(t *testing.T) {
	if _, err := Start(Config{CPU: "/nonexistent/directory/cpu.prof"}); err == nil {
		t.Error("Start() error = nil, want error for invalid path")
	}
	if Active() {
		t.Error("failed Start() left a session active")
	}
}

func TestStopReportsWriteErrors(t *testing.T) {
	s, err := Start(Config{Heap: "/nonexistent/directory/heap.prof"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err == nil {
		t.Error("Stop() error = nil, want error for invalid path")
	}
}
