// Package serial implements the backend for single-DSP adapters reached
// through a serial FIFO host interface (DSP56301 class).
//
// The host port is a pair of 24-bit FIFOs plus three host flags, three DSP
// flags and a command vector register. Messages cross as 16-bit units, one
// per FIFO word, through a ring on the DSP side. Before each block the DSP
// reports how many units fit before its ring wraps; the host splits the
// block there and issues a ring-wrap command to continue.
//
// # Errata
//
// The status register can return a transient value, so it is read until
// two consecutive reads agree. Command vector reads without the
// differentiator bit are discarded.
//
// # Boot
//
// Boot resets the DSP into host bootstrap mode, streams the bootloader,
// reads the family code the bootloader posts in the DSP flags and streams
// the matching firmware as (length, address, type, words) records. The
// interface has no read-back path, so there is no verify pass.
package serial
