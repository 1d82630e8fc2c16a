package cache

import (
	"encoding/binary"

	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// EntryHeaderSize is the size of the per-entry info word.
const EntryHeaderSize = 4

type fieldKind uint8

const (
	fieldGain  fieldKind = iota // Two int16 <-> Gain
	fieldLevel                  // One int16 <-> Gain[0]
	fieldU16                    // uint16 <-> Param1
	fieldU32                    // uint32 <-> Param1
	fieldPair                   // Two uint16 <-> Param1, Param2
)

type field struct {
	off      int
	kind     fieldKind
	settable bool
}

// fields maps each cacheable attribute to its place in the entry payload.
var fields = map[hpi.Attribute]field{
	hpi.MeterPeak:              {0, fieldGain, false},
	hpi.MeterRMS:               {4, fieldGain, false},
	hpi.VolumeGain:             {0, fieldGain, true},
	hpi.VolumeMute:             {4, fieldU32, true},
	hpi.LevelGain:              {0, fieldGain, true},
	hpi.MultiplexerSource:      {0, fieldPair, true},
	hpi.ChannelModeMode:        {0, fieldU16, true},
	hpi.TunerBand:              {0, fieldU16, true},
	hpi.TunerFreq:              {4, fieldU32, true},
	hpi.TunerLevelAvg:          {8, fieldLevel, false},
	hpi.AESEBURxFormat:         {0, fieldU16, false},
	hpi.AESEBURxErrorStatus:    {2, fieldU16, false},
	hpi.AESEBUTxFormat:         {0, fieldU16, true},
	hpi.ToneDetectorState:      {0, fieldU32, false},
	hpi.SilenceDetectorState:   {0, fieldU32, false},
	hpi.SampleClockSource:      {0, fieldU16, true},
	hpi.SampleClockSourceIndex: {2, fieldU16, true},
	hpi.SampleClockSampleRate:  {4, fieldU32, true},
}

var payloadSizes = map[hpi.ControlType]int{
	hpi.ControlMeter:             8,
	hpi.ControlVolume:            8,
	hpi.ControlLevel:             4,
	hpi.ControlMultiplexer:       4,
	hpi.ControlChannelMode:       4,
	hpi.ControlTuner:             12,
	hpi.ControlAESEBUReceiver:    4,
	hpi.ControlAESEBUTransmitter: 4,
	hpi.ControlToneDetector:      4,
	hpi.ControlSilenceDetector:   4,
	hpi.ControlSampleClock:       8,
}

// PayloadSize returns the payload bytes stored for control type t. Types
// with no cacheable attribute store nothing.
func PayloadSize(t hpi.ControlType) int {
	return payloadSizes[t]
}

// Cacheable reports whether get-state of attribute a can be served from the
// cache.
func Cacheable(a hpi.Attribute) bool {
	_, ok := fields[a]
	return ok
}

// AppendEntry appends a zeroed entry for a control to region.
func AppendEntry(region []byte, t hpi.ControlType, index uint16) []byte {
	n := EntryHeaderSize + PayloadSize(t)
	var hdr [EntryHeaderSize]byte
	hdr[0] = byte(t)
	hdr[1] = byte(n / 4)
	binary.LittleEndian.PutUint16(hdr[2:], index)
	region = append(region, hdr[:]...)
	return append(region, make([]byte, n-EntryHeaderSize)...)
}

// =============================================================================
// Entry
// =============================================================================

// Entry is one control's slot in the cache region. Its type and index are
// fixed; the payload aliases the region.
type Entry struct {
	Type    hpi.ControlType
	Index   uint16
	payload []byte
}

func (e *Entry) field(a hpi.Attribute) (field, bool) {
	if a.Control() != e.Type {
		return field{}, false
	}
	f, ok := fields[a]
	if !ok || f.off+f.size() > len(e.payload) {
		return field{}, false
	}
	return f, true
}

func (f field) size() int {
	switch f.kind {
	case fieldLevel, fieldU16:
		return 2
	default:
		return 4
	}
}

// Load fills cr with the cached value of attribute a. It reports false when
// a is not cached for this entry.
func (e *Entry) Load(a hpi.Attribute, cr *hpi.ControlResponse) bool {
	f, ok := e.field(a)
	if !ok {
		return false
	}
	p := e.payload[f.off:]
	switch f.kind {
	case fieldGain:
		cr.Gain[0] = int16(binary.LittleEndian.Uint16(p))
		cr.Gain[1] = int16(binary.LittleEndian.Uint16(p[2:]))
	case fieldLevel:
		cr.Gain[0] = int16(binary.LittleEndian.Uint16(p))
	case fieldU16:
		cr.Param1 = uint32(binary.LittleEndian.Uint16(p))
	case fieldU32:
		cr.Param1 = binary.LittleEndian.Uint32(p)
	case fieldPair:
		cr.Param1 = uint32(binary.LittleEndian.Uint16(p))
		cr.Param2 = uint32(binary.LittleEndian.Uint16(p[2:]))
	}
	return true
}

// Store records the value of attribute a from cr.
func (e *Entry) Store(a hpi.Attribute, cr *hpi.ControlResponse) bool {
	f, ok := e.field(a)
	if !ok {
		return false
	}
	p := e.payload[f.off:]
	switch f.kind {
	case fieldGain:
		binary.LittleEndian.PutUint16(p, uint16(cr.Gain[0]))
		binary.LittleEndian.PutUint16(p[2:], uint16(cr.Gain[1]))
	case fieldLevel:
		binary.LittleEndian.PutUint16(p, uint16(cr.Gain[0]))
	case fieldU16:
		binary.LittleEndian.PutUint16(p, uint16(cr.Param1))
	case fieldU32:
		binary.LittleEndian.PutUint32(p, cr.Param1)
	case fieldPair:
		binary.LittleEndian.PutUint16(p, uint16(cr.Param1))
		binary.LittleEndian.PutUint16(p[2:], uint16(cr.Param2))
	}
	return true
}

// Check answers a get-state message from the entry. On a hit the response
// is complete and its error field cleared.
func (e *Entry) Check(m *hpi.Message, r *hpi.Response) bool {
	if m.Function != hpi.ControlGetState {
		return false
	}
	if !e.Load(m.Control.Attribute, &r.Control) {
		return false
	}
	r.Size = uint16(hpi.ResponseSize(hpi.ObjectControl))
	r.Error = hpi.ErrorNone
	r.SpecificError = 0
	return true
}

// Sync records the confirmed value of a successful set-state. The response,
// not the message, carries the value: the DSP may have clamped or
// quantized the request.
func (e *Entry) Sync(m *hpi.Message, r *hpi.Response) {
	if m.Function != hpi.ControlSetState || r.Error != hpi.ErrorNone {
		return
	}
	f, ok := e.field(m.Control.Attribute)
	if !ok || !f.settable {
		return
	}
	e.Store(m.Control.Attribute, &r.Control)
}

// =============================================================================
// Cache
// =============================================================================

// Cache indexes the entries of a control cache region. It is not safe for
// concurrent use; callers hold the adapter lock.
type Cache struct {
	count   int
	region  []byte
	entries []*Entry
	ready   bool
	warned  bool
	hits    uint64
	misses  uint64
}

// New returns a cache over region holding count controls. The region is
// walked on first use, so it may be filled in after New returns.
func New(count int, region []byte) *Cache {
	return &Cache{count: count, region: region}
}

// Len returns the number of controls the region describes.
func (c *Cache) Len() int {
	return c.count
}

// Region returns the backing region.
func (c *Cache) Region() []byte {
	return c.region
}

// Stats returns the number of cache hits and misses.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

func (c *Cache) init() bool {
	if c.ready {
		return true
	}
	entries := make([]*Entry, c.count)
	off := 0
	for i := 0; i < c.count; i++ {
		if off+EntryHeaderSize > len(c.region) {
			return c.fail("region truncated", i)
		}
		t := hpi.ControlType(c.region[off])
		size := int(c.region[off+1]) * 4
		index := binary.LittleEndian.Uint16(c.region[off+2:])
		if size < EntryHeaderSize+PayloadSize(t) || off+size > len(c.region) {
			return c.fail("bad entry size", i)
		}
		if int(index) >= c.count || entries[index] != nil {
			return c.fail("bad control index", i)
		}
		entries[index] = &Entry{
			Type:    t,
			Index:   index,
			payload: c.region[off+EntryHeaderSize : off+size],
		}
		off += size
	}
	c.entries = entries
	c.ready = true
	pkg.LogDebug(pkg.ComponentCache, "control cache ready",
		"controls", c.count,
		"bytes", off)
	return true
}

func (c *Cache) fail(reason string, entry int) bool {
	if !c.warned {
		c.warned = true
		pkg.LogWarn(pkg.ComponentCache, "control cache unusable",
			"reason", reason,
			"entry", entry)
	}
	return false
}

// Entry returns the entry of a control, or nil.
func (c *Cache) Entry(index uint16) *Entry {
	if !c.init() || int(index) >= len(c.entries) {
		return nil
	}
	return c.entries[index]
}

// Check answers m from the cache if possible. It reports whether r has been
// filled in.
func (c *Cache) Check(m *hpi.Message, r *hpi.Response) bool {
	if m.Object != hpi.ObjectControl || m.Function != hpi.ControlGetState {
		return false
	}
	e := c.Entry(m.ObjIndex)
	if e != nil && e.Check(m, r) {
		c.hits++
		return true
	}
	c.misses++
	return false
}

// Sync records the confirmed value of a successful set-state.
func (c *Cache) Sync(m *hpi.Message, r *hpi.Response) {
	if m.Object != hpi.ObjectControl {
		return
	}
	if e := c.Entry(m.ObjIndex); e != nil {
		e.Sync(m, r)
	}
}

// Refresh copies a fresh image of the region from the DSP.
func (c *Cache) Refresh(data []byte) {
	copy(c.region, data)
}
