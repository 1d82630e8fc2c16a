// Package dspsim simulates HPI adapter DSPs behind the register windows the
// backends drive.
//
// An [Engine] is the message-level firmware: it answers HPI messages, keeps
// stream and mixer state, and runs the data phase that follows a write or
// read. The register models wrap an engine in the hardware a backend sees:
//
//   - [Serial] models the host port of a serial-protocol DSP, including the
//     boot loader handshake and word-level data transfer.
//   - [Bridge] models a PCI bridge in front of two DSPs, with their shared
//     interface memory reached through a paged window.
//   - [BusMaster] models a single bus-mastering DSP that fetches messages
//     from host memory and pushes its control cache back.
//
// Each model publishes a [hal.BusResource] that can be handed to the
// adapter subsystem as if it were a mapped PCI function.
//
// [Faults] injects misbehavior (stalls, hangs, glitching status reads,
// bridge timeouts, short reads and corrupted responses) so the transport
// error paths can be exercised without hardware.
package dspsim
