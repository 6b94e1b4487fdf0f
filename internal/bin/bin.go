// Package bin holds the integer encode/decode helpers used by the wire
// formats in this module. Frame and handshake lengths are little-endian on
// the wire, so this adds the LE counterparts to the teacher's own
// big-endian helpers.
package bin

import "encoding/binary"

// PutU32LE writes v into b[0:4] little-endian. b must have length >= 4.
func PutU32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// U32LE reads a little-endian uint32 from b[0:4].
func U32LE(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// PutU16LE writes v into b[0:2] little-endian.
func PutU16LE(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// U16LE reads a little-endian uint16 from b[0:2].
func U16LE(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
