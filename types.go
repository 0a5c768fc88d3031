package raudio

import (
	"time"

	"github.com/ColonelBlimp/raudio/internal/driver"
	"github.com/ColonelBlimp/raudio/internal/format"
)

// SampleFormat identifies the in-memory representation of one audio
// sample. It is re-exported from internal/format so the public API can
// name formats without internal/convert and internal/driver importing this
// package (which would create an import cycle).
type SampleFormat = format.SampleFormat

const (
	FormatUnknown = format.Unknown
	FormatInt8    = format.Int8
	FormatInt16   = format.Int16
	FormatInt24   = format.Int24
	FormatInt32   = format.Int32
	FormatFloat32 = format.Float32
	FormatFloat64 = format.Float64
)

// StreamParameters describes one direction's open request: which device,
// how many channels, and the first device channel to use.
type StreamParameters struct {
	DeviceID     uint32
	ChannelCount uint32
	FirstChannel uint32
}

// TimestampMode selects which timing discipline a driver should prefer, per
// the distilled spec's §4.5 timing section.
type TimestampMode int

const (
	// TimestampAuto lets the driver use the best timing source it has.
	TimestampAuto TimestampMode = iota
	TimestampSoft
	TimestampTriggered
	TimestampHardware
)

// StreamOptions carries the tuning knobs from the distilled spec's §6
// Options. Unrecognized fields set by a caller via a future version of this
// struct are simply ignored by backends that don't understand them.
type StreamOptions struct {
	MinimizeLatency          bool
	HogDevice                bool
	NonInterleavedUserBuffer bool
	NumberOfBuffers          int
	StreamName               string
	TimestampMode            TimestampMode
}

// Status is a single xrun condition observed since the previous period.
type Status int

const (
	StatusOK Status = iota
	StatusUnderflow
	StatusOverflow
)

// StatusSet is the set of Status values delivered to the callback for one
// period.
type StatusSet = driver.StatusSet

const (
	FlagUnderflow = driver.StatusUnderflow
	FlagOverflow  = driver.StatusOverflow
)

// CallbackResult is the user callback's return code: continue, drain-stop,
// or discard-abort.
type CallbackResult = driver.CallbackResult

const (
	ResultContinue = driver.ResultContinue
	ResultStop     = driver.ResultStop
	ResultAbort    = driver.ResultAbort
)

// Callback is the user-provided pull function invoked once per completed
// period. inBuf/outBuf are valid only for the duration of the call.
// inBuf is nil unless mode includes input; outBuf is nil unless mode
// includes output.
type Callback func(inBuf []byte, inTime time.Time, outBuf []byte, outTime time.Time, framesPerPeriod uint32, status StatusSet) CallbackResult

// DeviceInfo is a snapshot of one enumerable device's capabilities.
type DeviceInfo struct {
	Name            string
	IsDefaultInput  bool
	IsDefaultOutput bool
	InputChannels   uint32
	OutputChannels  uint32
	DuplexChannels  uint32
	SampleRates     []uint32
	NativeFormats   []SampleFormat
	Probed          bool
}

func deviceInfoFromDriver(d driver.DeviceInfo) DeviceInfo {
	return DeviceInfo{
		Name:            d.Name,
		IsDefaultInput:  d.IsDefaultInput,
		IsDefaultOutput: d.IsDefaultOutput,
		InputChannels:   d.InputChannels,
		OutputChannels:  d.OutputChannels,
		DuplexChannels:  d.DuplexChannels,
		SampleRates:     d.SampleRates,
		NativeFormats:   d.NativeFormats,
		Probed:          d.Probed,
	}
}

// GenericSampleRates is the fixed generic sample-rate list, the Go port of
// airtaudio::genericSampleRate. The wired backends report each device's
// rates from their own sources and do not consult this list.
var GenericSampleRates = []uint32{
	4000, 5512, 8000, 9600, 11025, 16000, 22050, 32000,
	44100, 48000, 64000, 88200, 96000, 128000, 176400, 192000,
}
