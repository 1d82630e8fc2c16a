// Package firmware reads DSP code images.
//
// An image is a 20 byte [Header] followed by little-endian 32-bit words. The
// words hold (length, address, type, length×word) records ending with an
// [EndOfCode] length. Backends that bootstrap a DSP with raw words (a
// bootloader) read the words directly with [Code.ReadWord].
//
// Images are buffered completely when opened, so [Code.Rewind] is always
// available for a verification pass.
package firmware
