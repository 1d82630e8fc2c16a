package backend

import (
	"fmt"
	"io"

	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/pkg"
)

// Memory is DSP memory reachable from the host, addressed in bytes.
type Memory interface {
	ReadWord(addr uint32) (uint32, error)
	WriteWord(addr uint32, v uint32) error
}

// WalkingBits writes and reads back every single-bit pattern in each word
// of [base, base+4*words), leaving the range zeroed.
func WalkingBits(mem Memory, base uint32, words int) error {
	for i := 0; i < words; i++ {
		addr := base + uint32(4*i)
		for bit := 0; bit < 32; bit++ {
			want := uint32(1) << bit
			if err := mem.WriteWord(addr, want); err != nil {
				return err
			}
			got, err := mem.ReadWord(addr)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("walking bit at %#08x: wrote %#08x, read %#08x: %w", addr, want, got, pkg.ErrMemoryTest)
			}
		}
		if err := mem.WriteWord(addr, 0); err != nil {
			return err
		}
	}
	return nil
}

// Sparse writes a distinct value at base plus each power-of-two offset below
// size, then reads all of them back. Aliased address lines show up as
// overwritten values.
func Sparse(mem Memory, base, size uint32) error {
	if size > 1<<31 {
		size = 1 << 31
	}
	pattern := func(off uint32) uint32 { return ^off ^ 0xA5A5A5A5 }
	if err := mem.WriteWord(base, pattern(0)); err != nil {
		return err
	}
	for off := uint32(4); off < size; off <<= 1 {
		if err := mem.WriteWord(base+off, pattern(off)); err != nil {
			return err
		}
	}
	for off := uint32(0); off < size; {
		got, err := mem.ReadWord(base + off)
		if err != nil {
			return err
		}
		if want := pattern(off); got != want {
			return fmt.Errorf("sparse at %#08x: wrote %#08x, read %#08x: %w", base+off, want, got, pkg.ErrMemoryTest)
		}
		if off == 0 {
			off = 4
		} else {
			off <<= 1
		}
	}
	return nil
}

// Download passes every segment of code to load, in image order.
func Download(code *firmware.Code, load func(firmware.Segment) error) error {
	code.Rewind()
	for {
		seg, err := code.NextSegment()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := load(seg); err != nil {
			return err
		}
	}
}

// Verify rewinds code and compares every segment with what read returns.
func Verify(code *firmware.Code, read func(addr uint32, n int) ([]uint32, error)) error {
	return Download(code, func(seg firmware.Segment) error {
		got, err := read(seg.Address, len(seg.Words))
		if err != nil {
			return err
		}
		for i, want := range seg.Words {
			if i >= len(got) || got[i] != want {
				var v uint32
				if i < len(got) {
					v = got[i]
				}
				return fmt.Errorf("verify at %#08x: want %#08x, read %#08x: %w",
					seg.Address+uint32(4*i), want, v, pkg.ErrVerify)
			}
		}
		return nil
	})
}
