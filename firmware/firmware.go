package firmware

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/ardnew/softhpi/pkg"
)

// Family identifies the DSP code image for one adapter family or DSP.
type Family uint32

// String returns the family as four hex digits.
func (f Family) String() string {
	return fmt.Sprintf("%04x", uint32(f))
}

// EndOfCode terminates the segment list of an image.
const EndOfCode = 0xFFFFFFFF

// Magic identifies firmware images.
var Magic = [4]byte{'D', 'S', 'P', 'C'}

// HeaderSize is the encoded size of Header.
const HeaderSize = 20

// Header prefixes every firmware image.
type Header struct {
	Size     uint32 // Total image size in bytes
	Magic    [4]byte
	Family   Family
	Version  uint32
	Checksum uint32 // Sum of all code words
}

// SegmentType selects the DSP memory space a segment loads into.
type SegmentType uint32

// Segment types.
const (
	SegmentCode  SegmentType = 0
	SegmentXData SegmentType = 1
	SegmentYData SegmentType = 2
)

// Segment is one (length, address, type, words) record of an image.
type Segment struct {
	Address uint32
	Type    SegmentType
	Words   []uint32
}

// Source locates firmware images by family.
type Source interface {
	// Open returns the image for family f. Missing images yield an error
	// wrapping pkg.ErrNotFound.
	Open(f Family) (*Code, error)
}

// Code is an open firmware image. The whole image is buffered, so Rewind
// always succeeds and a second pass (verification) reads the same words.
type Code struct {
	Header
	words  []uint32
	pos    int
	closed bool
}

// NewCode returns an open image holding words.
func NewCode(family Family, version uint32, words []uint32) *Code {
	return &Code{
		Header: Header{
			Size:     uint32(HeaderSize + 4*len(words)),
			Magic:    Magic,
			Family:   family,
			Version:  version,
			Checksum: checksum(words),
		},
		words: words,
	}
}

// Parse decodes an image, validating magic, size and checksum.
func Parse(data []byte) (*Code, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("firmware: %d byte image: %w", len(data), pkg.ErrFormat)
	}
	var h Header
	h.Size = binary.LittleEndian.Uint32(data[0:])
	copy(h.Magic[:], data[4:8])
	h.Family = Family(binary.LittleEndian.Uint32(data[8:]))
	h.Version = binary.LittleEndian.Uint32(data[12:])
	h.Checksum = binary.LittleEndian.Uint32(data[16:])

	if h.Magic != Magic {
		return nil, fmt.Errorf("firmware: bad magic %q: %w", h.Magic[:], pkg.ErrFormat)
	}
	if int(h.Size) != len(data) || (len(data)-HeaderSize)%4 != 0 {
		return nil, fmt.Errorf("firmware: size %d for %d bytes: %w", h.Size, len(data), pkg.ErrFormat)
	}

	words := make([]uint32, (len(data)-HeaderSize)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[HeaderSize+4*i:])
	}
	if sum := checksum(words); sum != h.Checksum {
		return nil, fmt.Errorf("firmware: family %s sum %#x, header %#x: %w",
			h.Family, sum, h.Checksum, pkg.ErrChecksum)
	}
	return &Code{Header: h, words: words}, nil
}

func checksum(words []uint32) uint32 {
	var sum uint32
	for _, w := range words {
		sum += w
	}
	return sum
}

// Len returns the number of code words.
func (c *Code) Len() int {
	return len(c.words)
}

// ReadWord returns the next word, or io.EOF at the end of the image.
func (c *Code) ReadWord() (uint32, error) {
	if c.closed {
		return 0, pkg.ErrClosed
	}
	if c.pos >= len(c.words) {
		return 0, io.EOF
	}
	w := c.words[c.pos]
	c.pos++
	return w, nil
}

// ReadBlock returns the next n words. The slice aliases the image and must
// not be modified.
func (c *Code) ReadBlock(n int) ([]uint32, error) {
	if c.closed {
		return nil, pkg.ErrClosed
	}
	if n < 0 || c.pos+n > len(c.words) {
		return nil, fmt.Errorf("firmware: block of %d at word %d: %w", n, c.pos, io.ErrUnexpectedEOF)
	}
	b := c.words[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Rewind restarts reading from the first word.
func (c *Code) Rewind() {
	c.pos = 0
}

// Close releases the image.
func (c *Code) Close() error {
	if c.closed {
		return pkg.ErrClosed
	}
	c.closed = true
	c.words = nil
	return nil
}

// NextSegment reads one record. It returns io.EOF at the end-of-code marker.
func (c *Code) NextSegment() (Segment, error) {
	length, err := c.ReadWord()
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("firmware: missing end marker: %w", pkg.ErrFormat)
		}
		return Segment{}, err
	}
	if length == EndOfCode {
		return Segment{}, io.EOF
	}
	hdr, err := c.ReadBlock(2)
	if err != nil {
		return Segment{}, err
	}
	words, err := c.ReadBlock(int(length))
	if err != nil {
		return Segment{}, err
	}
	return Segment{Address: hdr[0], Type: SegmentType(hdr[1]), Words: words}, nil
}

// =============================================================================
// Image Construction
// =============================================================================

// Encode returns the image file bytes for c.
func (c *Code) Encode() []byte {
	b := make([]byte, HeaderSize+4*len(c.words))
	binary.LittleEndian.PutUint32(b[0:], uint32(len(b)))
	copy(b[4:8], Magic[:])
	binary.LittleEndian.PutUint32(b[8:], uint32(c.Family))
	binary.LittleEndian.PutUint32(b[12:], c.Version)
	binary.LittleEndian.PutUint32(b[16:], checksum(c.words))
	for i, w := range c.words {
		binary.LittleEndian.PutUint32(b[HeaderSize+4*i:], w)
	}
	return b
}

// SegmentWords lays out segments as records followed by the end marker.
func SegmentWords(segments ...Segment) []uint32 {
	var words []uint32
	for _, s := range segments {
		words = append(words, uint32(len(s.Words)), s.Address, uint32(s.Type))
		words = append(words, s.Words...)
	}
	return append(words, EndOfCode)
}

// Build returns an encoded image holding segments.
func Build(family Family, version uint32, segments ...Segment) []byte {
	return NewCode(family, version, SegmentWords(segments...)).Encode()
}

// FileName returns the image file name for a family.
func FileName(f Family) string {
	return "dsp" + strconv.FormatUint(uint64(f), 16) + ".bin"
}
