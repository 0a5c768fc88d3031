package convert

import (
	"bytes"
	"testing"

	"github.com/ColonelBlimp/raudio/internal/format"
)

func buildSymmetric(dir Direction, channels, bufferSize uint32) Info {
	return Build(BuildParams{
		Dir:               dir,
		FirstChannel:      0,
		BufferSize:        bufferSize,
		UserChannels:      channels,
		DeviceChannels:    channels,
		UserFormat:        format.Int16,
		DeviceFormat:      format.Int16,
		DeviceInterleaved: true,
	})
}

// Applying convertBuffer then its inverse (roles swapped) is the identity
// whenever userChannels == deviceChannels, userFormat == deviceFormat,
// deviceInterleaved is true and firstChannel == 0.
func TestApplyRoundTripIsIdentity(t *testing.T) {
	const channels, bufferSize = 2, 4
	out := buildSymmetric(Out, channels, bufferSize)
	in := buildSymmetric(In, channels, bufferSize)

	userBuf := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0, 7, 0, 8, 0}
	orig := append([]byte(nil), userBuf...)

	deviceBuf := make([]byte, len(userBuf))
	Apply(deviceBuf, userBuf, out, bufferSize, false)

	roundTrip := make([]byte, len(userBuf))
	Apply(roundTrip, deviceBuf, in, bufferSize, false)

	if !bytes.Equal(roundTrip, orig) {
		t.Errorf("round trip = %v, want %v", roundTrip, orig)
	}
}

func TestBuildNonInterleavedPlanarLayout(t *testing.T) {
	info := Build(BuildParams{
		Dir:               Out,
		BufferSize:        8,
		UserChannels:      2,
		DeviceChannels:    2,
		UserFormat:        format.Float32,
		DeviceFormat:      format.Float32,
		DeviceInterleaved: false,
	})
	if info.OutJump != 1 {
		t.Errorf("OutJump = %d, want 1 (planar device side)", info.OutJump)
	}
	if info.OutOffset[0] != 0 || info.OutOffset[1] != 8 {
		t.Errorf("OutOffset = %v, want [0 8]", info.OutOffset)
	}
	if info.InJump != 2 {
		t.Errorf("InJump = %d, want 2 (interleaved user side)", info.InJump)
	}
}

func TestBuildFirstChannelShift(t *testing.T) {
	info := Build(BuildParams{
		Dir:               Out,
		FirstChannel:      3,
		BufferSize:        8,
		UserChannels:      2,
		DeviceChannels:    8,
		UserFormat:        format.Int16,
		DeviceFormat:      format.Int16,
		DeviceInterleaved: true,
	})
	if info.OutOffset[0] != 3 || info.OutOffset[1] != 4 {
		t.Errorf("OutOffset = %v, want [3 4]", info.OutOffset)
	}
}

func TestApplyDuplexZeroesUncoveredOutputChannels(t *testing.T) {
	// deviceChannels[out]=1 < deviceChannels[in]=2: uncovered output
	// channels must be silent.
	info := Info{
		Channels:  1,
		InJump:    2,
		OutJump:   1,
		InFormat:  format.Int16,
		OutFormat: format.Int16,
		InOffset:  []int{0},
		OutOffset: []int{0},
	}
	dst := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	src := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	Apply(dst, src, info, 2, true)
	want := []byte{0x01, 0x00, 0x03, 0x00}
	if !bytes.Equal(dst, want) {
		t.Errorf("Apply = %x, want %x", dst, want)
	}
}

func TestApplyChannelSubset(t *testing.T) {
	// userChannels=1 < deviceChannels=2: only the first channel is touched.
	out := Build(BuildParams{
		Dir:               Out,
		BufferSize:        2,
		UserChannels:      1,
		DeviceChannels:    2,
		UserFormat:        format.Int8,
		DeviceFormat:      format.Int8,
		DeviceInterleaved: true,
	})
	if out.Channels != 1 {
		t.Fatalf("Channels = %d, want 1", out.Channels)
	}
	src := []byte{0x11, 0x22}
	dst := make([]byte, 4)
	Apply(dst, src, out, 2, false)
	want := []byte{0x11, 0x00, 0x22, 0x00}
	if !bytes.Equal(dst, want) {
		t.Errorf("Apply = %x, want %x", dst, want)
	}
}
