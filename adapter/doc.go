// Package adapter owns the table of booted audio adapters and routes
// messages to them.
//
// A [Subsystem] creates adapters from bus resources. Creation checks the
// bus identifiers, picks the backend for them, boots the DSPs, asks the
// firmware for its adapter information and registers the result under the
// index the firmware reports:
//
//	sub := adapter.NewSubsystem(nil, firmware.Dir{Path: "/lib/firmware/asihpi"}, adapter.DefaultOptions())
//	a, err := sub.CreateAdapter(res)
//	if err != nil {
//		return err
//	}
//	r := sub.Call(hpi.NewMessage(hpi.AdapterOpen, uint16(a.Index()), 0))
//
// [Subsystem.Call] answers subsystem messages itself and hands everything
// else to [Adapter.Transact]. Transactions on one adapter are serialized by
// the adapter lock. Each failed transaction extends a run of consecutive
// failures; a successful one ends it. When the run reaches the crash
// threshold the adapter is marked crashed and every later transaction is
// answered with [hpi.ErrorDSPHardware] without touching the hardware.
//
// The [Registry] holds at most [MaxAdapters] adapters. Lookups are lock
// free; additions and removals serialize on a lock that is never held
// during a hardware exchange.
package adapter
