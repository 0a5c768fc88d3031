// Package convert builds and applies the per-direction ConvertInfo table
// that adapts a user-format buffer to a device-format buffer: channel
// demultiplex/interleave and byte-wise copy. It does not perform numeric
// format conversion (int<->float); ProbeOpen callers must pick a device
// format with the same element width as the user format whenever
// DoConvertBuffer is required.
package convert

import (
	"github.com/ColonelBlimp/raudio/internal/format"
)

// Direction identifies which way a ConvertInfo moves samples.
type Direction int

const (
	// Out converts the user buffer into the device buffer (playback).
	Out Direction = iota
	// In converts the device buffer into the user buffer (capture).
	In
)

// Info is the immutable, precomputed table that Apply walks once per period.
// It is the Go analogue of airtaudio::ConvertInfo.
type Info struct {
	Channels  int
	InJump    int
	OutJump   int
	InFormat  format.SampleFormat
	OutFormat format.SampleFormat
	InOffset  []int
	OutOffset []int
}

// BuildParams carries everything Build needs to compute an Info for one
// direction of one stream.
type BuildParams struct {
	Dir               Direction
	FirstChannel      uint32
	BufferSize        uint32
	UserChannels      uint32
	DeviceChannels    uint32
	UserFormat        format.SampleFormat
	DeviceFormat      format.SampleFormat
	DeviceInterleaved bool
}

// Build computes the ConvertInfo for one stream direction, following
// airtaudio::Api::setConvertInfo exactly: jumps and formats are set
// according to direction, channels is the minimum of the two jumps, offsets
// are rewritten to a planar layout on whichever side is non-interleaved,
// and a non-zero FirstChannel shifts the offsets on the appropriate side.
func Build(p BuildParams) Info {
	var info Info
	if p.Dir == In {
		// device -> user
		info.InJump = int(p.DeviceChannels)
		info.OutJump = int(p.UserChannels)
		info.InFormat = p.DeviceFormat
		info.OutFormat = p.UserFormat
	} else {
		// user -> device
		info.InJump = int(p.UserChannels)
		info.OutJump = int(p.DeviceChannels)
		info.InFormat = p.UserFormat
		info.OutFormat = p.DeviceFormat
	}

	if info.InJump < info.OutJump {
		info.Channels = info.InJump
	} else {
		info.Channels = info.OutJump
	}

	bufferSize := int(p.BufferSize)
	if !p.DeviceInterleaved {
		info.InOffset = make([]int, 0, info.Channels)
		info.OutOffset = make([]int, 0, info.Channels)
		if p.Dir == In {
			for k := 0; k < info.Channels; k++ {
				info.InOffset = append(info.InOffset, k*bufferSize)
				info.OutOffset = append(info.OutOffset, k)
			}
			info.InJump = 1
		} else {
			for k := 0; k < info.Channels; k++ {
				info.InOffset = append(info.InOffset, k)
				info.OutOffset = append(info.OutOffset, k*bufferSize)
			}
			info.OutJump = 1
		}
	} else {
		info.InOffset = make([]int, info.Channels)
		info.OutOffset = make([]int, info.Channels)
		for k := 0; k < info.Channels; k++ {
			info.InOffset[k] = k
			info.OutOffset[k] = k
		}
	}

	if p.FirstChannel > 0 {
		shift := int(p.FirstChannel)
		if !p.DeviceInterleaved {
			shift = int(p.FirstChannel) * bufferSize
		}
		if p.Dir == Out {
			for k := range info.OutOffset {
				info.OutOffset[k] += shift
			}
		} else {
			for k := range info.InOffset {
				info.InOffset[k] += shift
			}
		}
	}

	return info
}

// Apply performs the copy described by info: for each of bufferSize frames,
// copy info.Channels channels from src[InOffset[c]] to dst[OutOffset[c]],
// then advance both cursors by InJump/OutJump samples. zeroDst zeroes dst
// before copying, for the duplex case where the output device has fewer
// channels than the input device and uncovered output channels must be
// silent. src and dst must hold samples of the same element width
// (format.BytesOf(info.OutFormat) == format.BytesOf(info.InFormat)).
func Apply(dst, src []byte, info Info, bufferSize uint32, zeroDst bool) {
	width := format.BytesOf(info.OutFormat)
	if zeroDst {
		n := int(bufferSize) * info.OutJump * width
		if n > len(dst) {
			n = len(dst)
		}
		for i := range dst[:n] {
			dst[i] = 0
		}
	}
	switch width {
	case 1:
		applyWidth1(dst, src, info, bufferSize)
	case 2:
		applyWidth2(dst, src, info, bufferSize)
	case 3:
		applyWidth3(dst, src, info, bufferSize)
	case 4:
		applyWidth4(dst, src, info, bufferSize)
	case 8:
		applyWidth8(dst, src, info, bufferSize)
	}
}

func applyWidth1(dst, src []byte, info Info, bufferSize uint32) {
	inBase, outBase := 0, 0
	for i := uint32(0); i < bufferSize; i++ {
		for c := 0; c < info.Channels; c++ {
			dst[outBase+info.OutOffset[c]] = src[inBase+info.InOffset[c]]
		}
		inBase += info.InJump
		outBase += info.OutJump
	}
}

func applyWidth2(dst, src []byte, info Info, bufferSize uint32) {
	inBase, outBase := 0, 0
	for i := uint32(0); i < bufferSize; i++ {
		for c := 0; c < info.Channels; c++ {
			si := (inBase + info.InOffset[c]) * 2
			di := (outBase + info.OutOffset[c]) * 2
			dst[di], dst[di+1] = src[si], src[si+1]
		}
		inBase += info.InJump
		outBase += info.OutJump
	}
}

func applyWidth3(dst, src []byte, info Info, bufferSize uint32) {
	inBase, outBase := 0, 0
	for i := uint32(0); i < bufferSize; i++ {
		for c := 0; c < info.Channels; c++ {
			si := (inBase + info.InOffset[c]) * 3
			di := (outBase + info.OutOffset[c]) * 3
			copy(dst[di:di+3], src[si:si+3])
		}
		inBase += info.InJump
		outBase += info.OutJump
	}
}

func applyWidth4(dst, src []byte, info Info, bufferSize uint32) {
	inBase, outBase := 0, 0
	for i := uint32(0); i < bufferSize; i++ {
		for c := 0; c < info.Channels; c++ {
			si := (inBase + info.InOffset[c]) * 4
			di := (outBase + info.OutOffset[c]) * 4
			copy(dst[di:di+4], src[si:si+4])
		}
		inBase += info.InJump
		outBase += info.OutJump
	}
}

func applyWidth8(dst, src []byte, info Info, bufferSize uint32) {
	inBase, outBase := 0, 0
	for i := uint32(0); i < bufferSize; i++ {
		for c := 0; c < info.Channels; c++ {
			si := (inBase + info.InOffset[c]) * 8
			di := (outBase + info.OutOffset[c]) * 8
			copy(dst[di:di+8], src[si:si+8])
		}
		inBase += info.InJump
		outBase += info.OutJump
	}
}
