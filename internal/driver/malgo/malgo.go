// Package malgo implements the driver.Driver contract on top of
// github.com/gen2brain/malgo, a cgo binding of miniaudio. It is the
// primary backend: miniaudio covers WASAPI, CoreAudio, ALSA and PulseAudio
// from one API, so this one driver carries most platforms.
package malgo

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/raudio/internal/driver"
	"github.com/ColonelBlimp/raudio/internal/format"
)

func init() {
	driver.Register("malgo", func() driver.Driver { return New() })
}

// xrunGapFactor is how many period lengths the gap between two successive
// callbacks has to exceed before the driver reports an xrun. miniaudio's simple data callback
// carries no broken-pipe indicator, so this backend infers one from
// wall-clock gaps between successive callbacks instead.
const xrunGapFactor = 1.5

type pending struct {
	active       bool
	nativeID     unsafe.Pointer
	channels     uint32
	firstChannel uint32
	userFormat   format.SampleFormat
	nativeFormat malgo.FormatType
	deviceFormat format.SampleFormat
}

// Driver is a driver.Driver backed by one miniaudio context and, once
// started, one miniaudio device (Capture, Playback, or Duplex).
type Driver struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext

	pending      [2]pending
	sampleRate   uint32
	bufferFrames uint32

	device       *malgo.Device
	fn           driver.PeriodFunc
	onFault      driver.FaultFunc
	lastCallback time.Time
	period       time.Duration
}

// New returns an unopened malgo driver instance.
func New() *Driver { return &Driver{} }

func (d *Driver) CurrentAPI() string { return "malgo" }

func (d *Driver) ensureContext() error {
	if d.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo: init context: %w", err)
	}
	d.ctx = ctx
	return nil
}

type aggregated struct {
	name            string
	captureID       malgo.DeviceID
	hasCapture      bool
	playbackID      malgo.DeviceID
	hasPlayback     bool
	isDefaultInput  bool
	isDefaultOutput bool
	inChannels      uint32
	outChannels     uint32
	sampleRates     []uint32
	formats         []format.SampleFormat
}

func (d *Driver) enumerate() ([]aggregated, error) {
	if err := d.ensureContext(); err != nil {
		return nil, err
	}
	captures, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo: enumerate capture devices: %w", err)
	}
	playbacks, err := d.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("malgo: enumerate playback devices: %w", err)
	}

	byName := map[string]*aggregated{}
	var order []string
	for _, info := range captures {
		name := info.Name()
		a, ok := byName[name]
		if !ok {
			a = &aggregated{name: name}
			byName[name] = a
			order = append(order, name)
		}
		a.captureID = info.ID
		a.hasCapture = true
		a.isDefaultInput = info.IsDefault != 0
		d.mergeCaps(a, malgo.Capture, info.ID)
	}
	for _, info := range playbacks {
		name := info.Name()
		a, ok := byName[name]
		if !ok {
			a = &aggregated{name: name}
			byName[name] = a
			order = append(order, name)
		}
		a.playbackID = info.ID
		a.hasPlayback = true
		a.isDefaultOutput = info.IsDefault != 0
		d.mergeCaps(a, malgo.Playback, info.ID)
	}

	result := make([]aggregated, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result, nil
}

// mergeCaps queries miniaudio's detailed capability report for one
// enumerated device and folds its native formats into a. A failure here
// just leaves a's channel/rate/format info at whatever it already had;
// enumeration itself must not fail because one device's capability query
// did.
func (d *Driver) mergeCaps(a *aggregated, dt malgo.DeviceType, id malgo.DeviceID) {
	detail, err := d.ctx.DeviceInfo(dt, id, malgo.Shared)
	if err != nil {
		return
	}
	for _, nf := range detail.NativeDataFormats {
		if dt == malgo.Capture && nf.Channels > a.inChannels {
			a.inChannels = nf.Channels
		}
		if dt == malgo.Playback && nf.Channels > a.outChannels {
			a.outChannels = nf.Channels
		}
		a.sampleRates = appendUnique(a.sampleRates, nf.SampleRate)
		if sf := formatFromMalgo(nf.Format); sf != format.Unknown {
			a.formats = appendUniqueFormat(a.formats, sf)
		}
	}
}

func appendUnique(s []uint32, v uint32) []uint32 {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func appendUniqueFormat(s []format.SampleFormat, v format.SampleFormat) []format.SampleFormat {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

func (d *Driver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	devs, err := d.enumerate()
	if err != nil {
		return 0, err
	}
	return len(devs), nil
}

func (d *Driver) DeviceInfo(i int) (driver.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	devs, err := d.enumerate()
	if err != nil {
		return driver.DeviceInfo{}, err
	}
	if i < 0 || i >= len(devs) {
		return driver.DeviceInfo{}, fmt.Errorf("malgo: device index %d out of range", i)
	}
	a := devs[i]
	return driver.DeviceInfo{
		Name:            a.name,
		IsDefaultInput:  a.isDefaultInput,
		IsDefaultOutput: a.isDefaultOutput,
		InputChannels:   a.inChannels,
		OutputChannels:  a.outChannels,
		DuplexChannels:  min32(a.inChannels, a.outChannels),
		SampleRates:     a.sampleRates,
		NativeFormats:   a.formats,
		Probed:          true,
	}, nil
}

func (d *Driver) DefaultInputDevice() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	devs, err := d.enumerate()
	if err != nil {
		return 0
	}
	for i, a := range devs {
		if a.isDefaultInput {
			return i
		}
	}
	return 0
}

func (d *Driver) DefaultOutputDevice() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	devs, err := d.enumerate()
	if err != nil {
		return 0
	}
	for i, a := range devs {
		if a.isDefaultOutput {
			return i
		}
	}
	return 0
}

// ProbeOpen maps the caller's format to the native miniaudio format of the
// same kind and width (refusing formats with no such match, see
// pickNativeFormat) and records it; the actual malgo.Device is built lazily
// in Start, once both directions (if any) have been probed.
func (d *Driver) ProbeOpen(req driver.ProbeRequest) (driver.ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureContext(); err != nil {
		return driver.ProbeResult{}, err
	}

	devs, err := d.enumerate()
	if err != nil {
		return driver.ProbeResult{}, err
	}
	if int(req.DeviceID) >= len(devs) {
		return driver.ProbeResult{}, fmt.Errorf("malgo: device index %d out of range", req.DeviceID)
	}
	a := devs[req.DeviceID]

	nativeFmt, deviceFmt, ok := pickNativeFormat(req.UserFormat)
	if !ok {
		return driver.ProbeResult{}, fmt.Errorf("malgo: no device format matches user format %v", req.UserFormat)
	}

	p := pending{
		active:       true,
		channels:     req.Channels,
		firstChannel: req.FirstChannel,
		userFormat:   req.UserFormat,
		nativeFormat: nativeFmt,
		deviceFormat: deviceFmt,
	}
	if req.Dir == driver.In && a.hasCapture {
		p.nativeID = a.captureID.Pointer()
	}
	if req.Dir == driver.Out && a.hasPlayback {
		p.nativeID = a.playbackID.Pointer()
	}
	d.pending[req.Dir] = p

	d.sampleRate = req.SampleRate
	d.bufferFrames = req.BufferFrames
	if d.bufferFrames == 0 {
		d.bufferFrames = 960
	}
	d.period = time.Duration(d.bufferFrames) * time.Second / time.Duration(maxu32(d.sampleRate, 1))

	return driver.ProbeResult{
		DeviceChannels:    req.Channels,
		DeviceFormat:      deviceFmt,
		DeviceInterleaved: true,
		DoByteSwap:        false,
		BufferFrames:      d.bufferFrames,
		DoConvertBuffer:   false,
		Latency:           uint64(d.bufferFrames),
	}, nil
}

// pickNativeFormat maps a requested user format to a native malgo format.
// miniaudio natively supports U8/S16/S24/S32/F32; internal/convert never
// remaps numeric format (only channel layout), so a request this driver
// can't match one-to-one must be refused rather than silently misread at
// the wrong width. Our Int8 is signed (miniaudio's 1-byte format is
// unsigned) and Float64 has no native counterpart, so both are refused.
func pickNativeFormat(want format.SampleFormat) (malgo.FormatType, format.SampleFormat, bool) {
	switch want {
	case format.Int16:
		return malgo.FormatS16, format.Int16, true
	case format.Int24:
		return malgo.FormatS24, format.Int24, true
	case format.Int32:
		return malgo.FormatS32, format.Int32, true
	case format.Float32:
		return malgo.FormatF32, format.Float32, true
	default:
		return malgo.FormatS16, format.Int16, false
	}
}

func formatFromMalgo(f malgo.FormatType) format.SampleFormat {
	switch f {
	case malgo.FormatS16:
		return format.Int16
	case malgo.FormatS24:
		return format.Int24
	case malgo.FormatS32:
		return format.Int32
	case malgo.FormatF32:
		return format.Float32
	default:
		return format.Unknown
	}
}

// Start builds the native device from whatever directions were probed and
// begins miniaudio's callback thread.
func (d *Driver) Start(fn driver.PeriodFunc, onFault driver.FaultFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	outP := d.pending[driver.Out]
	inP := d.pending[driver.In]

	cfg := malgo.DeviceConfig{
		SampleRate:         d.sampleRate,
		PeriodSizeInFrames: d.bufferFrames,
	}
	switch {
	case outP.active && inP.active:
		cfg.DeviceType = malgo.Duplex
	case outP.active:
		cfg.DeviceType = malgo.Playback
	case inP.active:
		cfg.DeviceType = malgo.Capture
	default:
		return fmt.Errorf("malgo: start called with no active direction")
	}
	if outP.active {
		cfg.Playback = malgo.SubConfig{Format: outP.nativeFormat, Channels: outP.channels}
		if outP.nativeID != nil {
			cfg.Playback.DeviceID = outP.nativeID
		}
	}
	if inP.active {
		cfg.Capture = malgo.SubConfig{Format: inP.nativeFormat, Channels: inP.channels}
		if inP.nativeID != nil {
			cfg.Capture.DeviceID = inP.nativeID
		}
	}

	d.fn = fn
	d.onFault = onFault
	d.lastCallback = time.Time{}

	callbacks := malgo.DeviceCallbacks{Data: d.onPeriod}
	device, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("malgo: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("malgo: start device: %w", err)
	}
	d.device = device
	return nil
}

// onPeriod is miniaudio's data callback. It infers an xrun from the gap
// since the previous callback, then hands the raw native buffers straight
// to the engine.
func (d *Driver) onPeriod(outputSamples, inputSamples []byte, frameCount uint32) {
	now := time.Now()
	var observed driver.StatusSet
	if !d.lastCallback.IsZero() && d.period > 0 {
		gap := now.Sub(d.lastCallback)
		if float64(gap) > xrunGapFactor*float64(d.period) {
			if d.pending[driver.Out].active {
				observed |= driver.StatusUnderflow
			}
			if d.pending[driver.In].active {
				observed |= driver.StatusOverflow
			}
		}
	}
	d.lastCallback = now

	d.fn(outputSamples, inputSamples, frameCount, observed, now, now)
}

// Stop drains: miniaudio's device Stop blocks until the backend reports
// the device has actually stopped moving data.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil
	}
	return d.device.Stop()
}

// Abort is indistinguishable from Stop in miniaudio's simple callback
// model: it exposes no discard-in-flight-buffers primitive, so this
// backend stops on the same path for both.
func (d *Driver) Abort() error { return d.Stop() }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
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

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
