package firmware

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/softhpi/pkg"
)

func testSegments() []Segment {
	return []Segment{
		{Address: 0x100, Type: SegmentCode, Words: []uint32{1, 2, 3}},
		{Address: 0x8000, Type: SegmentXData, Words: []uint32{0xAA}},
	}
}

func TestBuildParse(t *testing.T) {
	image := Build(0x6205, 7, testSegments()...)

	c, err := Parse(image)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Family != 0x6205 || c.Version != 7 {
		t.Errorf("header = %+v", c.Header)
	}

	var got []Segment
	for {
		s, err := c.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextSegment() error = %v", err)
		}
		got = append(got, s)
	}
	want := testSegments()
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Address != want[i].Address || got[i].Type != want[i].Type ||
			len(got[i].Words) != len(want[i].Words) {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	good := Build(1, 1, testSegments()...)

	tests := []struct {
		name    string
		mutate  func(b []byte) []byte
		wantErr error
	}{
		{"short", func(b []byte) []byte { return b[:10] }, pkg.ErrFormat},
		{"magic", func(b []byte) []byte { b[4] = 'X'; return b }, pkg.ErrFormat},
		{"size", func(b []byte) []byte { return b[:len(b)-4] }, pkg.ErrFormat},
		{"checksum", func(b []byte) []byte { b[HeaderSize] ^= 1; return b }, pkg.ErrChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(append([]byte(nil), good...))
			if _, err := Parse(b); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodeRewind(t *testing.T) {
	c := NewCode(2, 0, []uint32{10, 20, 30})

	first, _ := c.ReadBlock(2)
	if first[0] != 10 || first[1] != 20 {
		t.Fatalf("ReadBlock() = %v", first)
	}
	if w, _ := c.ReadWord(); w != 30 {
		t.Errorf("ReadWord() = %d, want 30", w)
	}
	if _, err := c.ReadWord(); err != io.EOF {
		t.Errorf("ReadWord() at end error = %v, want io.EOF", err)
	}
	if _, err := c.ReadBlock(1); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadBlock() at end error = %v", err)
	}

	c.Rewind()
	if w, _ := c.ReadWord(); w != 10 {
		t.Errorf("ReadWord() after Rewind = %d, want 10", w)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := c.ReadWord(); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("ReadWord() after Close error = %v", err)
	}
}

func TestNextSegmentMissingEnd(t *testing.T) {
	words := SegmentWords(testSegments()...)
	c := NewCode(1, 0, words[:len(words)-1])
	for {
		_, err := c.NextSegment()
		if err == nil {
			continue
		}
		if !errors.Is(err, pkg.ErrFormat) {
			t.Errorf("NextSegment() error = %v, want ErrFormat", err)
		}
		return
	}
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName(0x6205)), Build(0x6205, 3, testSegments()...), 0o644); err != nil {
		t.Fatal(err)
	}
	// Image stored under the wrong name.
	if err := os.WriteFile(filepath.Join(dir, FileName(0x6713)), Build(0x6205, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	src := Dir{Path: dir}
	c, err := src.Open(0x6205)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Version != 3 {
		t.Errorf("Version = %d, want 3", c.Version)
	}

	if _, err := src.Open(0x5600); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := src.Open(0x6713); !errors.Is(err, pkg.ErrFormat) {
		t.Errorf("Open(mislabelled) error = %v, want ErrFormat", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.Add(9, Build(9, 1, testSegments()...))

	if _, err := m.Open(9); err != nil {
		t.Errorf("Open() error = %v", err)
	}
	if _, err := m.Open(10); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
}

func TestChain(t *testing.T) {
	first := NewMemory()
	first.Add(9, Build(9, 1))
	second := NewMemory()
	second.Add(9, Build(9, 2))
	second.Add(10, Build(10, 5))
	broken := NewMemory()
	broken.Add(11, []byte{1, 2, 3})

	src := Chain{first, broken, second}

	tests := []struct {
		family  Family
		version uint32
		err     error
	}{
		{9, 1, nil},
		{10, 5, nil},
		{11, 0, pkg.ErrFormat},
		{12, 0, pkg.ErrNotFound},
	}
	for _, tt := range tests {
		c, err := src.Open(tt.family)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("Open(%d) error = %v, want %v", tt.family, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Open(%d) error = %v", tt.family, err)
			continue
		}
		if c.Version != tt.version {
			t.Errorf("Open(%d) version = %d, want %d", tt.family, c.Version, tt.version)
		}
	}
}
