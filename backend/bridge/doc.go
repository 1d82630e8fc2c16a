// Package bridge implements the backend for adapters with one or two DSPs
// behind a PCI bridge, each reached through its host port interface (HPI).
//
// Every DSP memory access goes through the bridge, which can time out. A
// timed-out access sets a status bit; the access is retried a bounded
// number of times and the timeouts are counted. The counters are reported
// once as a synthesized assert when no DSP has one pending.
//
// Messages are written into a buffer in DSP memory, the DSP is interrupted
// with a command in the host interface block and acknowledges it there.
// Stream data moves in rounds sized by the DSP's data buffer.
//
// The primary DSP publishes a control cache region. The backend re-reads it
// when the DSP marks it dirty and answers cacheable state reads from it.
package bridge
