// Package busmaster implements the backend for adapters whose DSP reaches
// host memory by bus mastering (C6205 class).
//
// The host sees DSP memory through a 4 MB window whose page is chosen by a
// bridge register. Writes through the window are followed by a read after
// every fourth one, which the bridge needs to avoid losing data.
//
// After boot the host and the DSP share an interface buffer in host memory.
// The host writes a message into its union area, posts a host command and
// interrupts the DSP; the DSP answers in the same area, acknowledges the
// command and interrupts back. Bulk data moves through the union area in
// chunks.
//
// # Host Buffers
//
// A stream can be given a DMA buffer of its own. Allocation is two steps:
// the host allocates the buffer, then grants it to the DSP with a message.
// Writes and reads then copy at the host index of the stream's status
// record without a DSP message, and get-info is answered from the record.
// The first write after a reset sends the stream format ahead of the data.
//
// The DSP also advertises a control cache and an async event area during
// boot; the host allocates both and hands their addresses back.
package busmaster
