package adapter

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/backend/bridge"
	"github.com/ardnew/softhpi/backend/busmaster"
	"github.com/ardnew/softhpi/backend/serial"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// Subsystem version reported by SubsysGetVersion.
const (
	Version     = 0x00040A00
	DataVersion = 0x00000001
)

// Constructor builds an unbooted backend for a bus resource.
type Constructor func(res *hal.BusResource, opts backend.Options) (backend.Backend, error)

// construct adapts a concrete backend constructor to Constructor.
func construct[B backend.Backend](fn func(*hal.BusResource, backend.Options) (B, error)) Constructor {
	return func(res *hal.BusResource, opts backend.Options) (backend.Backend, error) {
		b, err := fn(res, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// defaultConstructors maps every backend kind to its implementation.
func defaultConstructors() map[backend.Kind]Constructor {
	return map[backend.Kind]Constructor{
		backend.KindSerial:    construct(serial.New),
		backend.KindBridge:    construct(bridge.New),
		backend.KindBusMaster: construct(busmaster.New),
	}
}

// Options configures a Subsystem.
type Options struct {
	Transport      backend.Options // Handshake bounds for every backend
	CrashThreshold int             // Consecutive failures before an adapter crashes
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Transport:      backend.DefaultOptions(),
		CrashThreshold: DefaultCrashThreshold,
	}
}

// Subsystem creates, deletes and addresses adapters.
type Subsystem struct {
	registry *Registry
	firmware firmware.Source
	opts     Options

	constructors map[backend.Kind]Constructor
	mutex        sync.RWMutex
}

// NewSubsystem returns a subsystem that registers adapters in reg and boots
// them from src. A nil reg selects a fresh registry.
func NewSubsystem(reg *Registry, src firmware.Source, opts Options) *Subsystem {
	if reg == nil {
		reg = NewRegistry()
	}
	opts.Transport = opts.Transport.Normalize()
	if opts.CrashThreshold <= 0 {
		opts.CrashThreshold = DefaultCrashThreshold
	}
	return &Subsystem{
		registry:     reg,
		firmware:     src,
		opts:         opts,
		constructors: defaultConstructors(),
	}
}

// Registry returns the adapter registry.
func (s *Subsystem) Registry() *Registry {
	return s.registry
}

// SetConstructor replaces the backend used for kind k.
func (s *Subsystem) SetConstructor(k backend.Kind, fn Constructor) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.constructors[k] = fn
}

func (s *Subsystem) constructor(k backend.Kind) Constructor {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.constructors[k]
}

// =============================================================================
// Adapter Lifecycle
// =============================================================================

// CreateAdapter boots the adapter behind res and registers it under the
// index its DSP reports. Bus identifiers are checked before any register is
// touched.
func (s *Subsystem) CreateAdapter(res *hal.BusResource) (*Adapter, error) {
	k, err := backend.KindOf(res.IDs)
	if err != nil {
		pkg.LogWarn(pkg.ComponentSubsystem, "unsupported adapter",
			"name", res.Name,
			"ids", res.IDs.String())
		return nil, fmt.Errorf("create %s: %s: %w", res.Name, res.IDs, identityError(err))
	}
	ctor := s.constructor(k)
	if ctor == nil {
		return nil, fmt.Errorf("create %s: %s backend: %w", res.Name, k, pkg.ErrNotSupported)
	}

	b, err := ctor(res, s.opts.Transport)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", res.Name, err)
	}

	pkg.LogDebug(pkg.ComponentSubsystem, "booting adapter",
		"name", res.Name,
		"backend", k.String())
	if err := b.Boot(s.firmware); err != nil {
		return nil, s.abandon(res, b, fmt.Errorf("create %s: boot: %w", res.Name, err))
	}

	m := hpi.NewMessage(hpi.AdapterGetInfo, 0, 0)
	r, err := b.Exchange(0, m)
	if err == nil && r.Error != hpi.ErrorNone {
		err = fmt.Errorf("%s: %w", r.Error, pkg.ErrProtocol)
	}
	if err != nil {
		return nil, s.abandon(res, b, fmt.Errorf("create %s: get info: %w", res.Name, err))
	}

	a := newAdapter(res, k, b, r.Adapter.Info, s.opts.CrashThreshold)
	if err := s.registry.Add(a); err != nil {
		return nil, s.abandon(res, b, fmt.Errorf("create %s: %w", res.Name, err))
	}

	pkg.LogInfo(pkg.ComponentSubsystem, "adapter created",
		"name", res.Name,
		"index", a.Index(),
		"type", fmt.Sprintf("%#04x", a.Type()),
		"backend", k.String(),
		"ostreams", a.info.NumOStreams,
		"istreams", a.info.NumIStreams,
		"cache", a.HasCache())
	return a, nil
}

// abandon releases a backend that never made it into the registry.
func (s *Subsystem) abandon(res *hal.BusResource, b backend.Backend, err error) error {
	pkg.LogError(pkg.ComponentSubsystem, "adapter creation failed",
		"name", res.Name,
		"error", err)
	if c, ok := b.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			return errors.Join(err, cerr)
		}
	}
	return err
}

// DeleteAdapter deregisters the adapter at index and releases its backend.
func (s *Subsystem) DeleteAdapter(index int) error {
	a := s.registry.Find(index)
	if a == nil {
		return fmt.Errorf("delete adapter %d: %w", index, identityError(pkg.ErrNoAdapter))
	}
	if err := s.registry.Delete(a); err != nil {
		return fmt.Errorf("delete adapter %d: %w", index, err)
	}
	if err := a.close(); err != nil {
		pkg.LogWarn(pkg.ComponentSubsystem, "releasing adapter",
			"index", index,
			"error", err)
		return fmt.Errorf("delete adapter %d: %w", index, err)
	}
	pkg.LogInfo(pkg.ComponentSubsystem, "adapter deleted",
		"index", index,
		"name", a.Name())
	return nil
}

// Close deletes every registered adapter.
func (s *Subsystem) Close() error {
	var errs []error
	for _, i := range s.registry.Indexes() {
		if err := s.DeleteAdapter(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Message Dispatch
// =============================================================================

// Call answers m. Subsystem messages are handled here; everything else is
// delivered to the adapter named in the header. The response's error field
// is always set.
func (s *Subsystem) Call(m *hpi.Message) *hpi.Response {
	if m.Object == hpi.ObjectSubsystem {
		return s.subsystem(m)
	}
	a := s.registry.Find(int(m.AdapterIndex))
	if a == nil {
		return backend.ErrorResponse(hpi.NewResponse(m), pkg.ErrNoAdapter)
	}
	r, err := a.Transact(m)
	if err != nil {
		pkg.LogDebug(pkg.ComponentSubsystem, "call failed",
			"index", m.AdapterIndex,
			"function", m.Function.String(),
			"code", r.Error.String(),
			"error", err)
	}
	return r
}

func (s *Subsystem) subsystem(m *hpi.Message) *hpi.Response {
	r := hpi.NewResponse(m)
	r.Error = hpi.ErrorNone

	switch m.Function {
	case hpi.SubsysOpen, hpi.SubsysClose:
	case hpi.SubsysGetVersion:
		r.Subsys.Version = Version
		r.Subsys.DataVersion = DataVersion
	case hpi.SubsysGetInfo:
		r.Subsys.Version = Version
		r.Subsys.DataVersion = DataVersion
		r.Subsys.NumAdapters = uint16(s.registry.Len())
	case hpi.SubsysGetNumAdapters:
		r.Subsys.NumAdapters = uint16(s.registry.Len())
	case hpi.SubsysGetAdapter:
		// The object index is a position among registered adapters.
		list := s.registry.Adapters()
		pos := int(m.ObjIndex)
		if pos >= len(list) {
			return backend.ErrorResponse(r, pkg.ErrBadIndex)
		}
		r.Subsys.NumAdapters = uint16(len(list))
		r.Subsys.AdapterIndex = uint16(list[pos].Index())
		r.Subsys.AdapterType = list[pos].Type()
	case hpi.SubsysDeleteAdapter:
		if err := s.DeleteAdapter(int(m.Subsys.AdapterIndex)); err != nil {
			return backend.ErrorResponse(r, err)
		}
	case hpi.SubsysCreateAdapter:
		// Creation needs a bus resource, which cannot travel in a message.
		r.Error = hpi.ErrorInvalidOperation
	default:
		r.Error = hpi.ErrorInvalidFunction
	}
	return r
}

// GetAssert reads the oldest pending assert of a DSP. The returned count is
// zero when nothing is pending.
func (s *Subsystem) GetAssert(index, dsp int) (hpi.AssertInfo, error) {
	a := s.registry.Find(index)
	if a == nil {
		return hpi.AssertInfo{}, fmt.Errorf("get assert %d: %w", index, identityError(pkg.ErrNoAdapter))
	}
	m := hpi.NewMessage(hpi.AdapterGetAssert, uint16(index), 0)
	m.DSPIndex = uint16(dsp)
	r, err := a.Transact(m)
	if err != nil {
		return hpi.AssertInfo{}, fmt.Errorf("get assert %d: %w", index, err)
	}
	if r.Error != hpi.ErrorNone {
		return hpi.AssertInfo{}, fmt.Errorf("get assert %d: %s: %w", index, r.Error, pkg.ErrProtocol)
	}
	return r.Adapter.Assert, nil
}
