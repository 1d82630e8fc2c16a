package firmware

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardnew/softhpi/pkg"
)

// Dir loads images named by FileName from a directory.
type Dir struct {
	Path string
}

var _ Source = Dir{}

// Open implements Source.
func (d Dir) Open(f Family) (*Code, error) {
	path := filepath.Join(d.Path, FileName(f))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("firmware: %s: %w", path, pkg.ErrNotFound)
		}
		return nil, fmt.Errorf("firmware: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if c.Family != f {
		return nil, fmt.Errorf("firmware: %s holds family %s, want %s: %w", path, c.Family, f, pkg.ErrFormat)
	}
	pkg.LogDebug(pkg.ComponentFirmware, "image loaded",
		"path", path,
		"family", f.String(),
		"version", c.Version,
		"words", c.Len())
	return c, nil
}

// Memory serves encoded images from memory.
type Memory struct {
	mu     sync.RWMutex
	images map[Family][]byte
}

var _ Source = (*Memory)(nil)

// NewMemory returns an empty memory source.
func NewMemory() *Memory {
	return &Memory{images: make(map[Family][]byte)}
}

// Add stores an encoded image under family f.
func (m *Memory) Add(f Family, image []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[f] = image
}

// Open implements Source.
func (m *Memory) Open(f Family) (*Code, error) {
	m.mu.RLock()
	image, ok := m.images[f]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("firmware: family %s: %w", f, pkg.ErrNotFound)
	}
	return Parse(image)
}

// Chain tries each source in order until one holds the family.
type Chain []Source

var _ Source = Chain(nil)

// Open implements Source. Errors other than ErrNotFound stop the search.
func (c Chain) Open(f Family) (*Code, error) {
	for _, src := range c {
		code, err := src.Open(f)
		if errors.Is(err, pkg.ErrNotFound) {
			continue
		}
		return code, err
	}
	return nil, fmt.Errorf("firmware: family %s: %w", f, pkg.ErrNotFound)
}
