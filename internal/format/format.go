// Package format defines the sample formats the engine understands and the
// byte-level primitives (width lookup, in-place byte-swap, host endianness)
// that the conversion engine builds on.
package format

import (
	"encoding/binary"
	"math"
)

// SampleFormat identifies the in-memory representation of one audio sample.
type SampleFormat int

const (
	Unknown SampleFormat = iota
	Int8
	Int16
	Int24
	Int32
	Float32
	Float64
)

// String returns a short human-readable name, used in error messages.
func (f SampleFormat) String() string {
	switch f {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int24:
		return "int24"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// BytesOf returns the size in bytes of one sample of the given format, or 0
// if the format is not recognized.
func BytesOf(f SampleFormat) int {
	switch f {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int24:
		return 3
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Endianness identifies the byte order of the host CPU.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// HostEndianness reports the byte order of the running process. Used only at
// probe time to decide whether a direction needs byte-swapping.
func HostEndianness() Endianness {
	var probe uint16 = 1
	buf := make([]byte, 2)
	binary.NativeEndian.PutUint16(buf, probe)
	if buf[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}

// ByteSwap reverses the byte order of every sample in buf, in place. samples
// is the number of samples (not bytes) to swap; buf must hold at least
// samples*BytesOf(f) bytes. Formats with no defined byte-swap (Unknown,
// Int8) are no-ops.
func ByteSwap(buf []byte, samples int, f SampleFormat) {
	switch f {
	case Int16:
		for i := 0; i < samples; i++ {
			p := i * 2
			buf[p], buf[p+1] = buf[p+1], buf[p]
		}
	case Int24:
		for i := 0; i < samples; i++ {
			p := i * 3
			buf[p], buf[p+2] = buf[p+2], buf[p]
		}
	case Int32, Float32:
		for i := 0; i < samples; i++ {
			p := i * 4
			buf[p], buf[p+3] = buf[p+3], buf[p]
			buf[p+1], buf[p+2] = buf[p+2], buf[p+1]
		}
	case Float64:
		for i := 0; i < samples; i++ {
			p := i * 8
			buf[p], buf[p+7] = buf[p+7], buf[p]
			buf[p+1], buf[p+6] = buf[p+6], buf[p+1]
			buf[p+2], buf[p+5] = buf[p+5], buf[p+2]
			buf[p+3], buf[p+4] = buf[p+4], buf[p+3]
		}
	}
}

// Float32ToBytes appends the little-endian bytes of v to dst, returning the
// extended slice.
func Float32ToBytes(dst []byte, v float32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return append(dst, buf[:]...)
}

// BytesToFloat32 decodes a little-endian float32 at the start of buf.
func BytesToFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
