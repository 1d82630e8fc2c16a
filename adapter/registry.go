package adapter

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softhpi/pkg"
)

// MaxAdapters is the number of registry slots. Adapter indexes run from 0 to
// MaxAdapters-1.
const MaxAdapters = 20

// Registry is the index-keyed table of adapters.
//
// Add and Delete serialize on the registry lock. Find reads a slot without
// locking and may run concurrently with either. The registry lock is never
// held while an adapter talks to hardware.
type Registry struct {
	slots [MaxAdapters]atomic.Pointer[Adapter]
	count atomic.Int32
	mutex sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func identityError(err error) error {
	return &pkg.Error{Category: pkg.CategoryIdentity, DSP: -1, Err: err}
}

// Add places a in the slot named by its index. It fails if the index is out
// of range or the slot is occupied; an occupied slot is left untouched.
func (r *Registry) Add(a *Adapter) error {
	i := int(a.index)
	if i >= MaxAdapters {
		return fmt.Errorf("registry: add %s: index %d: %w", a.Name(), i, identityError(pkg.ErrBadIndex))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cur := r.slots[i].Load(); cur != nil {
		pkg.LogWarn(pkg.ComponentRegistry, "adapter index in use",
			"index", i,
			"existing", cur.Name(),
			"rejected", a.Name())
		return fmt.Errorf("registry: add %s: index %d: %w", a.Name(), i, identityError(pkg.ErrDuplicateIndex))
	}
	r.slots[i].Store(a)
	r.count.Add(1)

	pkg.LogDebug(pkg.ComponentRegistry, "adapter added",
		"index", i,
		"name", a.Name())
	return nil
}

// Find returns the adapter at index, or nil.
func (r *Registry) Find(index int) *Adapter {
	if index < 0 || index >= MaxAdapters {
		return nil
	}
	return r.slots[index].Load()
}

// Delete clears a's slot. It fails if a is not the adapter registered there.
func (r *Registry) Delete(a *Adapter) error {
	i := int(a.index)
	if i >= MaxAdapters {
		return fmt.Errorf("registry: delete index %d: %w", i, identityError(pkg.ErrBadIndex))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.slots[i].CompareAndSwap(a, nil) {
		return fmt.Errorf("registry: delete index %d: %w", i, identityError(pkg.ErrNoAdapter))
	}
	r.count.Add(-1)

	pkg.LogDebug(pkg.ComponentRegistry, "adapter removed",
		"index", i,
		"name", a.Name())
	return nil
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Indexes returns the occupied indexes in ascending order.
func (r *Registry) Indexes() []int {
	result := make([]int, 0, r.Len())
	for i := range MaxAdapters {
		if r.slots[i].Load() != nil {
			result = append(result, i)
		}
	}
	return result
}

// Adapters returns the registered adapters in index order.
func (r *Registry) Adapters() []*Adapter {
	result := make([]*Adapter, 0, r.Len())
	for i := range MaxAdapters {
		if a := r.slots[i].Load(); a != nil {
			result = append(result, a)
		}
	}
	return result
}
