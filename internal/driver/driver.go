// Package driver defines the backend driver contract every native audio
// subsystem binding must satisfy (the Go port of airtaudio::Api's pure
// virtual method set) and a small name-based registry backends use to
// advertise themselves to the dispatcher, mirroring
// airtaudio::Interface::addInterface.
package driver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ColonelBlimp/raudio/internal/convert"
	"github.com/ColonelBlimp/raudio/internal/format"
)

// Direction reuses the convert package's direction constants: Out for
// playback, In for capture.
type Direction = convert.Direction

const (
	Out = convert.Out
	In  = convert.In
)

// StatusSet is a bitmask of xrun conditions observed since the previous
// period, delivered to the user callback on the period that follows the
// one where they were detected.
type StatusSet uint8

const (
	StatusUnderflow StatusSet = 1 << iota
	StatusOverflow
)

// Has reports whether flag is set.
func (s StatusSet) Has(flag StatusSet) bool { return s&flag != 0 }

// CallbackResult is the user callback's return code.
type CallbackResult int

const (
	ResultContinue CallbackResult = iota
	ResultStop
	ResultAbort
)

// PeriodFunc is handed to a driver by the engine at Start time. The driver
// calls it exactly once per completed period from its own device thread
// (native callback or owned goroutine), passing it the raw native buffers:
// nativeIn holds one period of device-format input bytes (nil if this
// stream has no input direction), nativeOut is a buffer the driver owns and
// must write to the device after the call returns (nil if this stream has
// no output direction). The engine performs all format/channel conversion,
// invokes the user callback, ticks the stream clock, and returns the user
// callback's result code.
type PeriodFunc func(nativeOut, nativeIn []byte, frames uint32, observed StatusSet, inTime, outTime time.Time) CallbackResult

// FaultFunc is called by a driver's device thread when it hits an
// unrecoverable native error outside of a period callback (device removed,
// server shutdown notification, ...). It is distinct from the engine-driven
// Close path: Close is always initiated by the control thread, FaultFunc is
// always initiated by the driver itself.
type FaultFunc func(err error)

// DeviceInfo is a value snapshot of one enumerable device.
type DeviceInfo struct {
	Name            string
	IsDefaultInput  bool
	IsDefaultOutput bool
	InputChannels   uint32
	OutputChannels  uint32
	DuplexChannels  uint32
	SampleRates     []uint32
	NativeFormats   []format.SampleFormat
	Probed          bool
}

// ProbeRequest carries one direction's open parameters to ProbeOpen.
type ProbeRequest struct {
	Dir             Direction
	DeviceID        uint32
	Channels        uint32
	FirstChannel    uint32
	SampleRate      uint32
	UserFormat      format.SampleFormat
	BufferFrames    uint32
	MinimizeLatency bool
	HogDevice       bool
	NumberOfBuffers uint32
	StreamName      string
}

// ProbeResult is what the driver reports back after a successful
// ProbeOpen: the format/layout it actually configured the device with, and
// whether the engine needs to run a conversion pass for this direction.
type ProbeResult struct {
	DeviceChannels    uint32
	DeviceFormat      format.SampleFormat
	DeviceInterleaved bool
	DoByteSwap        bool
	BufferFrames      uint32
	DoConvertBuffer   bool
	Latency           uint64
}

// Driver is the contract every backend (malgo, portaudio, null, and any
// future native binding) must satisfy. The engine holds at most one Driver
// instance per Engine value; Driver implementations own their native
// handles exclusively and must release them in Close.
type Driver interface {
	// CurrentAPI returns the backend identifier this driver was registered
	// under.
	CurrentAPI() string

	DeviceCount() (int, error)
	DeviceInfo(i int) (DeviceInfo, error)
	DefaultInputDevice() int
	DefaultOutputDevice() int

	// ProbeOpen attempts to open the device with the given parameters. It
	// must not leave partial state on failure: on error, any resources it
	// allocated for this direction must already be released.
	ProbeOpen(req ProbeRequest) (ProbeResult, error)

	// Start begins the device thread (or registers the native callback)
	// and must, per completed period, call fn exactly once with fresh
	// native buffers. onFault is called instead of tearing down the
	// stream on an unrecoverable native error discovered outside of a
	// period.
	Start(fn PeriodFunc, onFault FaultFunc) error
	// Stop drains: it must not return until all buffered output handed to
	// the driver so far has been played.
	Stop() error
	// Abort discards: it must return within at most one period.
	Abort() error
	// Close releases every native handle the driver owns. It must be safe
	// to call on a driver that was never started, and must not touch any
	// engine-owned buffer.
	Close() error
}

var (
	mu       sync.Mutex
	registry = map[string]func() Driver{}
	order    []string
)

// Register makes a backend available under name. It must be called from an
// init() in the backend's own package, mirroring
// airtaudio::Interface::addInterface being fed one entry per compiled-in
// backend header.
func Register(name string, factory func() Driver) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; !exists {
		order = append(order, name)
	}
	registry[name] = factory
}

// Names returns the registered backend names in registration order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), order...)
}

// New instantiates the named backend, or the first registered backend if
// name is empty (auto-select).
func New(name string) (Driver, error) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" {
		if len(order) == 0 {
			return nil, fmt.Errorf("driver: no backend registered")
		}
		name = order[0]
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("driver: unknown backend %q (have: %s)", name, strings.Join(order, ", "))
	}
	return factory(), nil
}
