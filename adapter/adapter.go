package adapter

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/cache"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// DefaultCrashThreshold is the number of consecutive failed transactions
// after which an adapter is marked crashed.
const DefaultCrashThreshold = 10

// Adapter is one booted audio adapter.
//
// All transactions run under the adapter lock, data phases included.
// A crashed adapter refuses every further transaction without touching
// hardware until it is deleted and created again.
type Adapter struct {
	res     *hal.BusResource
	kind    backend.Kind
	backend backend.Backend
	info    hpi.AdapterInfo
	index   uint16
	limit   int

	hasCache bool
	crashed  atomic.Bool

	// Guarded by mutex
	open     bool
	failures int
	deleted  bool
	mutex    sync.Mutex
}

// newAdapter wraps a booted backend.
func newAdapter(res *hal.BusResource, k backend.Kind, b backend.Backend, info hpi.AdapterInfo, limit int) *Adapter {
	if limit <= 0 {
		limit = DefaultCrashThreshold
	}
	a := &Adapter{
		res:     res,
		kind:    k,
		backend: b,
		info:    info,
		index:   info.Index,
		limit:   limit,
	}
	if c, ok := b.(interface{ Cache() *cache.Cache }); ok {
		a.hasCache = c.Cache() != nil
	}
	return a
}

// Index returns the adapter index.
func (a *Adapter) Index() int {
	return int(a.index)
}

// Type returns the adapter type code.
func (a *Adapter) Type() uint16 {
	return a.info.Type
}

// Name returns the bus location of the adapter.
func (a *Adapter) Name() string {
	return a.res.Name
}

// IDs returns the bus identifiers of the adapter.
func (a *Adapter) IDs() hal.IDs {
	return a.res.IDs
}

// Kind returns the backend family driving the adapter.
func (a *Adapter) Kind() backend.Kind {
	return a.kind
}

// Info returns the adapter information reported at creation.
func (a *Adapter) Info() hpi.AdapterInfo {
	return a.info
}

// HasCache reports whether the backend keeps a control cache.
func (a *Adapter) HasCache() bool {
	return a.hasCache
}

// NumDSPs returns the number of DSPs on the adapter.
func (a *Adapter) NumDSPs() int {
	if n, ok := a.backend.(interface{ NumDSPs() int }); ok {
		return n.NumDSPs()
	}
	return 1
}

// Crashed reports whether the adapter has been marked crashed.
func (a *Adapter) Crashed() bool {
	return a.crashed.Load()
}

// IsOpen reports whether the adapter has been opened and not closed.
func (a *Adapter) IsOpen() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.open
}

// Failures returns the current run of consecutive failed transactions.
func (a *Adapter) Failures() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.failures
}

// Stats returns the backend counters, if the backend keeps any.
func (a *Adapter) Stats() backend.Stats {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if s, ok := a.backend.(interface{ Stats() backend.Stats }); ok {
		return s.Stats()
	}
	return backend.Stats{}
}

// Transact delivers m to the DSP named by its DSP index and returns the
// response. The response is never nil and its error field is always set.
func (a *Adapter) Transact(m *hpi.Message) (*hpi.Response, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.deleted {
		err := identityError(pkg.ErrNoAdapter)
		return backend.ErrorResponse(hpi.NewResponse(m), err), err
	}
	if a.crashed.Load() {
		err := &pkg.Error{
			Category: pkg.CategoryFatal,
			Backend:  a.kind.String(),
			DSP:      int(m.DSPIndex),
			Err:      pkg.ErrCrashed,
		}
		return backend.ErrorResponse(hpi.NewResponse(m), err), err
	}

	r, err := a.backend.Exchange(int(m.DSPIndex), m)
	if err != nil {
		a.fail(m, err)
		return r, err
	}
	a.failures = 0

	if r.Error == hpi.ErrorNone {
		switch m.Function {
		case hpi.AdapterOpen:
			a.open = true
		case hpi.AdapterClose:
			a.open = false
		}
	}
	return r, nil
}

// fail counts a failed transaction. Only hardware failures count; a
// request rejected before reaching the DSP leaves the run untouched.
func (a *Adapter) fail(m *hpi.Message, err error) {
	switch pkg.CategoryOf(err) {
	case pkg.CategoryTransport, pkg.CategoryProtocol:
	default:
		return
	}
	a.failures++
	pkg.LogWarn(pkg.ComponentAdapter, "transaction failed",
		"index", a.index,
		"function", m.Function.String(),
		"failures", a.failures,
		"error", err)

	if a.failures >= a.limit {
		a.crashed.Store(true)
		pkg.LogError(pkg.ComponentAdapter, "adapter crashed",
			"index", a.index,
			"name", a.Name(),
			"failures", a.failures)
	}
}

// close releases the backend. The adapter refuses transactions afterwards.
func (a *Adapter) close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.deleted {
		return nil
	}
	a.deleted = true
	a.open = false
	if c, ok := a.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
