// Package portaudio implements the driver.Driver contract on top of
// github.com/gordonklaus/portaudio, registered as a second backend so a
// host can fall back to it where miniaudio's coverage is thin (older
// platform audio stacks PortAudio has supported for decades).
package portaudio

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gordonklaus/portaudio"

	"github.com/ColonelBlimp/raudio/internal/driver"
	"github.com/ColonelBlimp/raudio/internal/format"
)

func init() {
	driver.Register("portaudio", func() driver.Driver { return New() })
}

type pending struct {
	active       bool
	deviceIndex  int
	channels     uint32
	firstChannel uint32
	userFormat   format.SampleFormat
}

// Driver is a driver.Driver backed by one PortAudio stream, opened once
// Start is called against whichever direction(s) were probed.
type Driver struct {
	mu sync.Mutex

	initialized bool

	pending      [2]pending
	sampleRate   uint32
	bufferFrames uint32

	stream *portaudio.Stream
	fn     driver.PeriodFunc
}

// New returns an unopened PortAudio driver instance.
func New() *Driver { return &Driver{} }

func (d *Driver) CurrentAPI() string { return "portaudio" }

// ensureInit initializes the PortAudio library on first use. It is
// intentionally never paired with a Terminate: DeviceCount/DeviceInfo must
// keep working across OpenStream/CloseStream cycles for as long as this
// Driver value is alive, and the Driver contract has no separate shutdown
// hook to call Terminate from.
func (d *Driver) ensureInit() error {
	if d.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	d.initialized = true
	return nil
}

func (d *Driver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit(); err != nil {
		return 0, err
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return 0, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	return len(devs), nil
}

func (d *Driver) DeviceInfo(i int) (driver.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit(); err != nil {
		return driver.DeviceInfo{}, err
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return driver.DeviceInfo{}, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	if i < 0 || i >= len(devs) {
		return driver.DeviceInfo{}, fmt.Errorf("portaudio: device index %d out of range", i)
	}
	info := devs[i]

	host, _ := portaudio.DefaultHostApi()
	isDefaultIn := host != nil && host.DefaultInputDevice == info
	isDefaultOut := host != nil && host.DefaultOutputDevice == info

	return driver.DeviceInfo{
		Name:            info.Name,
		IsDefaultInput:  isDefaultIn,
		IsDefaultOutput: isDefaultOut,
		InputChannels:   uint32(info.MaxInputChannels),
		OutputChannels:  uint32(info.MaxOutputChannels),
		DuplexChannels:  min32(uint32(info.MaxInputChannels), uint32(info.MaxOutputChannels)),
		SampleRates:     []uint32{uint32(info.DefaultSampleRate)},
		NativeFormats:   []format.SampleFormat{format.Float32},
		Probed:          true,
	}, nil
}

func (d *Driver) DefaultInputDevice() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit(); err != nil {
		return 0
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return 0
	}
	host, err := portaudio.DefaultHostApi()
	if err != nil || host == nil {
		return 0
	}
	for i, info := range devs {
		if info == host.DefaultInputDevice {
			return i
		}
	}
	return 0
}

func (d *Driver) DefaultOutputDevice() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureInit(); err != nil {
		return 0
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return 0
	}
	host, err := portaudio.DefaultHostApi()
	if err != nil || host == nil {
		return 0
	}
	for i, info := range devs {
		if info == host.DefaultOutputDevice {
			return i
		}
	}
	return 0
}

// ProbeOpen records the direction's parameters. PortAudio's stream callback
// only ever deals in float32 natively; internal/convert performs no numeric
// format conversion (same contract as the teacher's convertBuffer), so any
// other user format is refused rather than reinterpreted at the wrong width.
func (d *Driver) ProbeOpen(req driver.ProbeRequest) (driver.ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if req.UserFormat != format.Float32 {
		return driver.ProbeResult{}, fmt.Errorf("portaudio: no device format matches user format %v", req.UserFormat)
	}

	if err := d.ensureInit(); err != nil {
		return driver.ProbeResult{}, err
	}
	n, err := portaudio.Devices()
	if err != nil {
		return driver.ProbeResult{}, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	if int(req.DeviceID) >= len(n) {
		return driver.ProbeResult{}, fmt.Errorf("portaudio: device index %d out of range", req.DeviceID)
	}

	d.pending[req.Dir] = pending{
		active:       true,
		deviceIndex:  int(req.DeviceID),
		channels:     req.Channels,
		firstChannel: req.FirstChannel,
		userFormat:   req.UserFormat,
	}
	d.sampleRate = req.SampleRate
	d.bufferFrames = req.BufferFrames
	if d.bufferFrames == 0 {
		d.bufferFrames = 1024
	}

	return driver.ProbeResult{
		DeviceChannels:    req.Channels,
		DeviceFormat:      format.Float32,
		DeviceInterleaved: true,
		DoByteSwap:        false,
		BufferFrames:      d.bufferFrames,
		DoConvertBuffer:   false,
		Latency:           uint64(d.bufferFrames),
	}, nil
}

// Start opens and starts the PortAudio stream for whichever direction(s)
// were probed. The callback receives PortAudio's timing info, but period
// timestamps are taken from time.Now() (see onPeriod), not from hardware.
func (d *Driver) Start(fn driver.PeriodFunc, onFault driver.FaultFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	outP := d.pending[driver.Out]
	inP := d.pending[driver.In]
	if !outP.active && !inP.active {
		return fmt.Errorf("portaudio: start called with no active direction")
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("portaudio: enumerate devices: %w", err)
	}

	var params portaudio.StreamParameters
	params.SampleRate = float64(d.sampleRate)
	params.FramesPerBuffer = int(d.bufferFrames)
	if outP.active {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   devs[outP.deviceIndex],
			Channels: int(outP.channels),
			Latency:  devs[outP.deviceIndex].DefaultLowOutputLatency,
		}
	}
	if inP.active {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   devs[inP.deviceIndex],
			Channels: int(inP.channels),
			Latency:  devs[inP.deviceIndex].DefaultLowInputLatency,
		}
	}

	d.fn = fn

	stream, err := portaudio.OpenStream(params, d.onPeriod)
	if err != nil {
		return fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	d.stream = stream
	return nil
}

// onPeriod is PortAudio's stream callback. in/out are nil on whichever
// side this stream has no direction open. PortAudio reports buffer
// timestamps as a stream-relative Time, not a wall-clock instant, so this
// backend stamps periods with time.Now() rather than translate one.
func (d *Driver) onPeriod(in, out []float32, timeInfo portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	var observed driver.StatusSet
	if flags&portaudio.InputOverflow != 0 || flags&portaudio.InputUnderflow != 0 {
		observed |= driver.StatusOverflow
	}
	if flags&portaudio.OutputOverflow != 0 || flags&portaudio.OutputUnderflow != 0 {
		observed |= driver.StatusUnderflow
	}

	var nativeIn, nativeOut []byte
	if len(in) > 0 {
		nativeIn = float32SliceAsBytes(in)
	}
	if len(out) > 0 {
		nativeOut = float32SliceAsBytes(out)
	}

	frames := uint32(len(out))
	if d.pending[driver.Out].channels > 0 {
		frames = uint32(len(out)) / d.pending[driver.Out].channels
	} else if d.pending[driver.In].channels > 0 {
		frames = uint32(len(in)) / d.pending[driver.In].channels
	}

	now := time.Now()
	d.fn(nativeOut, nativeIn, frames, observed, now, now)
}

// float32SliceAsBytes reinterprets a []float32 as its underlying bytes
// without copying, the same zero-copy trick the malgo backend's teacher
// code used for the reverse direction.
func float32SliceAsBytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return nil
	}
	return d.stream.Stop()
}

// Abort discards in-flight buffers; gordonklaus/portaudio names this
// Stream.Abort explicitly, unlike the drain semantics of Stream.Stop.
func (d *Driver) Abort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return nil
	}
	return d.stream.Abort()
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		err := d.stream.Close()
		d.stream = nil
		d.pending[driver.Out] = pending{}
		d.pending[driver.In] = pending{}
		if err != nil {
			return fmt.Errorf("portaudio: close stream: %w", err)
		}
		return nil
	}
	d.pending[driver.Out] = pending{}
	d.pending[driver.In] = pending{}
	return nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
