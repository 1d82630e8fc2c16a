package hpi

import "encoding/binary"

// Words packs b into little-endian 32-bit words, zero padding the tail.
func Words(b []byte) []uint32 {
	w := make([]uint32, (len(b)+3)/4)
	for i := range w {
		var v [4]byte
		copy(v[:], b[i*4:])
		w[i] = binary.LittleEndian.Uint32(v[:])
	}
	return w
}

// Bytes unpacks little-endian 32-bit words.
func Bytes(w []uint32) []byte {
	b := make([]byte, len(w)*4)
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

// Units packs b into little-endian 16-bit units, zero padding the tail.
func Units(b []byte) []uint16 {
	u := make([]uint16, (len(b)+1)/2)
	for i := range u {
		var v [2]byte
		copy(v[:], b[i*2:])
		u[i] = binary.LittleEndian.Uint16(v[:])
	}
	return u
}

// UnitBytes unpacks little-endian 16-bit units.
func UnitBytes(u []uint16) []byte {
	b := make([]byte, len(u)*2)
	for i, v := range u {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}
