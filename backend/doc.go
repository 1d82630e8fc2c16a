// Package backend defines the contract between the adapter layer and the
// per-family transports, and the pieces the transports share.
//
// A backend moves an [hpi.Message] to a DSP and brings its [hpi.Response]
// back. Every handshake step is a bounded poll; when a bound runs out the
// step fails with a [pkg.Error] naming the backend, phase and step.
//
// # Recovery
//
// [Recover] wraps one sequence. A failed sequence is followed by a single
// resync. If the resync succeeds and the failure came before the DSP
// accepted the message, the sequence runs once more. Data phases and
// response reads are never repeated, since the DSP has already acted on the
// message.
//
// # Boot Helpers
//
// [WalkingBits], [Sparse], [Download] and [Verify] implement the memory
// tests and the firmware download and read-back passes over a [Memory].
package backend
