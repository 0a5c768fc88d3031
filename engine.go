package raudio

import (
	"sync"
	"time"

	"github.com/ColonelBlimp/raudio/internal/convert"
	"github.com/ColonelBlimp/raudio/internal/driver"
	"github.com/ColonelBlimp/raudio/internal/format"
	"github.com/ColonelBlimp/raudio/internal/sstate"
)

// direction is an alias of the internal convert package's direction
// constants, used to index the two-element per-direction arrays below.
type direction = convert.Direction

const (
	dirOut = convert.Out
	dirIn  = convert.In
)

// directionState holds everything the distilled spec's data model lists
// per direction. It is mutated only by the control path (OpenStream and
// CloseStream, while no device thread is running), and read by the device
// thread only between Start and Stop, per the distilled spec's §5
// shared-resource policy.
type directionState struct {
	active bool

	device         uint32
	userChannels   uint32
	deviceChannels uint32
	channelOffset  uint32

	userFormat   format.SampleFormat
	deviceFormat format.SampleFormat

	deviceInterleaved bool
	doByteSwap        bool
	doConvertBuffer   bool

	userBuffer []byte

	convertInfo convert.Info
	latency     uint64
}

// Engine is one open (or openable) stream bound to exactly one backend
// driver. It is the Go port of airtaudio::Api generalized across backends:
// the state machine and buffer adaptation live here, backend specifics
// live behind the driver.Driver contract.
type Engine struct {
	backend string
	drv     driver.Driver

	sm *sstate.Machine

	dir        [2]directionState
	bufferSize uint32
	sampleRate uint32
	nBuffers   uint32

	callback Callback

	faultMu sync.Mutex
	fault   error

	requestCh    chan driver.CallbackResult
	superviseSig chan struct{}
}

func newEngine(backend string, drv driver.Driver) *Engine {
	return &Engine{
		backend: backend,
		drv:     drv,
		sm:      sstate.New(),
	}
}

// DeviceCount returns the number of devices the backend can see.
func (e *Engine) DeviceCount() (int, error) {
	n, err := e.drv.DeviceCount()
	if err != nil {
		return 0, newErr("DeviceCount", KindSystemError, err)
	}
	return n, nil
}

// DeviceInfo returns a snapshot of device i's capabilities.
func (e *Engine) DeviceInfo(i int) (DeviceInfo, error) {
	n, err := e.drv.DeviceCount()
	if err != nil {
		return DeviceInfo{}, newErr("DeviceInfo", KindSystemError, err)
	}
	if i < 0 || i >= n {
		return DeviceInfo{}, newErr("DeviceInfo", KindInvalidUse, nil)
	}
	di, err := e.drv.DeviceInfo(i)
	if err != nil {
		return DeviceInfo{}, newErr("DeviceInfo", KindSystemError, err)
	}
	return deviceInfoFromDriver(di), nil
}

// DefaultInputDevice returns the backend's default capture device index.
func (e *Engine) DefaultInputDevice() int { return e.drv.DefaultInputDevice() }

// DefaultOutputDevice returns the backend's default playback device index.
func (e *Engine) DefaultOutputDevice() int { return e.drv.DefaultOutputDevice() }

// CurrentBackend returns the name of the backend this Engine was created
// against.
func (e *Engine) CurrentBackend() string { return e.backend }

// OpenStream validates parameters, probes the requested direction(s)
// through the driver, builds the conversion tables, and installs the
// callback, following airtaudio::Api::openStream step for step.
func (e *Engine) OpenStream(out, in *StreamParameters, sampleFormat SampleFormat, sampleRate uint32, bufferFrames *uint32, cb Callback, opts *StreamOptions) error {
	const op = "OpenStream"

	if e.sm.State() != sstate.StateClosed {
		return newErr(op, KindInvalidUse, nil)
	}
	if out == nil && in == nil {
		return newErr(op, KindInvalidUse, nil)
	}
	if out != nil && out.ChannelCount == 0 {
		return newErr(op, KindInvalidUse, nil)
	}
	if in != nil && in.ChannelCount == 0 {
		return newErr(op, KindInvalidUse, nil)
	}
	if format.BytesOf(sampleFormat) == 0 {
		return newErr(op, KindInvalidUse, nil)
	}
	if bufferFrames == nil {
		return newErr(op, KindInvalidUse, nil)
	}

	nDevices, err := e.drv.DeviceCount()
	if err != nil {
		return newErr(op, KindSystemError, err)
	}
	if out != nil && int(out.DeviceID) >= nDevices {
		return newErr(op, KindInvalidUse, nil)
	}
	if in != nil && int(in.DeviceID) >= nDevices {
		return newErr(op, KindInvalidUse, nil)
	}

	if opts == nil {
		opts = &StreamOptions{}
	}

	e.dir[dirOut] = directionState{}
	e.dir[dirIn] = directionState{}

	var outResult, inResult driver.ProbeResult
	if out != nil {
		outResult, err = e.probeDirection(dirOut, out, sampleFormat, sampleRate, *bufferFrames, opts)
		if err != nil {
			return newErr(op, KindSystemError, err)
		}
	}
	if in != nil {
		inResult, err = e.probeDirection(dirIn, in, sampleFormat, sampleRate, *bufferFrames, opts)
		if err != nil {
			if out != nil {
				_ = e.drv.Close()
			}
			return newErr(op, KindSystemError, err)
		}
	}

	switch {
	case out != nil && in != nil:
		e.bufferSize = outResult.BufferFrames
		e.sm.SetMode(sstate.ModeDuplex)
	case out != nil:
		e.bufferSize = outResult.BufferFrames
		e.sm.SetMode(sstate.ModeOutput)
	case in != nil:
		e.bufferSize = inResult.BufferFrames
		e.sm.SetMode(sstate.ModeInput)
	}
	*bufferFrames = e.bufferSize

	if e.dir[dirOut].doConvertBuffer {
		e.dir[dirOut].convertInfo = convert.Build(convert.BuildParams{
			Dir:               dirOut,
			FirstChannel:      e.dir[dirOut].channelOffset,
			BufferSize:        e.bufferSize,
			UserChannels:      e.dir[dirOut].userChannels,
			DeviceChannels:    e.dir[dirOut].deviceChannels,
			UserFormat:        e.dir[dirOut].userFormat,
			DeviceFormat:      e.dir[dirOut].deviceFormat,
			DeviceInterleaved: e.dir[dirOut].deviceInterleaved,
		})
	}
	if e.dir[dirIn].doConvertBuffer {
		e.dir[dirIn].convertInfo = convert.Build(convert.BuildParams{
			Dir:               dirIn,
			FirstChannel:      e.dir[dirIn].channelOffset,
			BufferSize:        e.bufferSize,
			UserChannels:      e.dir[dirIn].userChannels,
			DeviceChannels:    e.dir[dirIn].deviceChannels,
			UserFormat:        e.dir[dirIn].userFormat,
			DeviceFormat:      e.dir[dirIn].deviceFormat,
			DeviceInterleaved: e.dir[dirIn].deviceInterleaved,
		})
	}

	if opts.NumberOfBuffers > 0 {
		e.nBuffers = uint32(opts.NumberOfBuffers)
	} else {
		e.nBuffers = 2
	}

	e.callback = cb
	e.sampleRate = sampleRate
	e.sm.Configure(sampleRate, e.bufferSize)
	e.sm.Transition(sstate.StateStopped, sstate.StateClosed)
	return nil
}

func (e *Engine) probeDirection(dir direction, p *StreamParameters, sampleFormat SampleFormat, sampleRate, bufferFrames uint32, opts *StreamOptions) (driver.ProbeResult, error) {
	req := driver.ProbeRequest{
		Dir:             dir,
		DeviceID:        p.DeviceID,
		Channels:        p.ChannelCount,
		FirstChannel:    p.FirstChannel,
		SampleRate:      sampleRate,
		UserFormat:      sampleFormat,
		BufferFrames:    bufferFrames,
		MinimizeLatency: opts.MinimizeLatency,
		HogDevice:       opts.HogDevice,
		NumberOfBuffers: uint32(opts.NumberOfBuffers),
		StreamName:      opts.StreamName,
	}
	result, err := e.drv.ProbeOpen(req)
	if err != nil {
		return driver.ProbeResult{}, err
	}

	ds := &e.dir[dir]
	ds.active = true
	ds.device = p.DeviceID
	ds.userChannels = p.ChannelCount
	ds.channelOffset = p.FirstChannel
	ds.userFormat = sampleFormat
	ds.deviceChannels = result.DeviceChannels
	ds.deviceFormat = result.DeviceFormat
	ds.deviceInterleaved = result.DeviceInterleaved
	ds.doByteSwap = result.DoByteSwap
	ds.doConvertBuffer = result.DoConvertBuffer
	ds.latency = result.Latency
	ds.userBuffer = make([]byte, p.ChannelCount*result.BufferFrames*uint32(format.BytesOf(sampleFormat)))
	return result, nil
}

// CloseStream stops the driver if running, releases native and
// engine-owned resources, and sets the state to Closed.
func (e *Engine) CloseStream() error {
	const op = "CloseStream"
	if f := e.checkFault(op); f != nil {
		return f
	}
	if e.sm.State() == sstate.StateClosed {
		return newErr(op, KindWarning, nil)
	}
	if e.sm.State() != sstate.StateStopped {
		_ = e.drv.Stop()
		e.stopSupervisor()
	}
	if err := e.drv.Close(); err != nil {
		e.sm.ForceClosed()
		return newErr(op, KindSystemError, err)
	}
	e.dir[dirOut] = directionState{}
	e.dir[dirIn] = directionState{}
	e.callback = nil
	e.sm.ForceClosed()
	return nil
}

// StartStream moves the stream to Running and starts the driver's device
// thread.
func (e *Engine) StartStream() error {
	const op = "StartStream"
	if f := e.checkFault(op); f != nil {
		return f
	}
	if e.sm.State() == sstate.StateClosed {
		return newErr(op, KindInvalidUse, nil)
	}
	if e.sm.State() == sstate.StateRunning {
		return newErr(op, KindWarning, nil)
	}
	e.requestCh = make(chan driver.CallbackResult, 1)
	e.superviseSig = make(chan struct{})
	go e.supervise()

	if !e.sm.Transition(sstate.StateRunning, sstate.StateStopped) {
		return newErr(op, KindFail, nil)
	}
	if err := e.drv.Start(e.runPeriod, e.onFault); err != nil {
		e.sm.Transition(sstate.StateStopped, sstate.StateRunning)
		e.stopSupervisor()
		return newErr(op, KindSystemError, err)
	}
	return nil
}

// StopStream drains: it blocks until the driver confirms buffered output
// has finished playing, then moves the stream to Stopped.
func (e *Engine) StopStream() error {
	const op = "StopStream"
	if f := e.checkFault(op); f != nil {
		return f
	}
	if e.sm.State() == sstate.StateClosed {
		return newErr(op, KindInvalidUse, nil)
	}
	if e.sm.State() == sstate.StateStopped {
		return newErr(op, KindWarning, nil)
	}
	if err := e.drv.Stop(); err != nil {
		e.sm.Transition(sstate.StateStopped, sstate.StateRunning, sstate.StateStopping)
		e.stopSupervisor()
		return newErr(op, KindSystemError, err)
	}
	e.sm.Transition(sstate.StateStopped, sstate.StateRunning, sstate.StateStopping)
	e.stopSupervisor()
	return nil
}

// AbortStream discards buffered audio and moves the stream to Stopped
// within at most one period.
func (e *Engine) AbortStream() error {
	const op = "AbortStream"
	if f := e.checkFault(op); f != nil {
		return f
	}
	if e.sm.State() == sstate.StateClosed {
		return newErr(op, KindInvalidUse, nil)
	}
	if e.sm.State() == sstate.StateStopped {
		return newErr(op, KindWarning, nil)
	}
	if err := e.drv.Abort(); err != nil {
		e.sm.Transition(sstate.StateStopped, sstate.StateRunning, sstate.StateStopping)
		e.stopSupervisor()
		return newErr(op, KindSystemError, err)
	}
	e.sm.Transition(sstate.StateStopped, sstate.StateRunning, sstate.StateStopping)
	e.stopSupervisor()
	return nil
}

// IsStreamOpen reports whether the stream is not Closed.
func (e *Engine) IsStreamOpen() bool { return e.sm.State() != sstate.StateClosed }

// IsStreamRunning reports whether the stream is Running.
func (e *Engine) IsStreamRunning() bool { return e.sm.State() == sstate.StateRunning }

// StreamTime returns the stream-time clock: startTime+duration, or the zero
// time while Closed.
func (e *Engine) StreamTime() time.Time { return e.sm.StreamTime() }

// StreamLatency returns the sum of the active directions' reported
// latencies, in frames.
func (e *Engine) StreamLatency() uint64 {
	if e.sm.State() == sstate.StateClosed {
		return 0
	}
	var total uint64
	if e.dir[dirOut].active {
		total += e.dir[dirOut].latency
	}
	if e.dir[dirIn].active {
		total += e.dir[dirIn].latency
	}
	return total
}

// StreamSampleRate returns the sample rate the open stream runs at, or 0
// while Closed.
func (e *Engine) StreamSampleRate() uint32 {
	if e.sm.State() == sstate.StateClosed {
		return 0
	}
	return e.sampleRate
}

// runPeriod is the driver.PeriodFunc the engine hands every driver at
// Start. It performs the conversion/byte-swap pass, invokes the user
// callback exactly once, and ticks the stream clock, per airtaudio's
// callback-event contract.
func (e *Engine) runPeriod(nativeOut, nativeIn []byte, frames uint32, observed driver.StatusSet, inTime, outTime time.Time) driver.CallbackResult {
	var inBuf, outBuf []byte

	if e.dir[dirIn].active {
		ds := &e.dir[dirIn]
		if ds.doByteSwap {
			format.ByteSwap(nativeIn, int(frames)*int(ds.deviceChannels), ds.deviceFormat)
		}
		if ds.doConvertBuffer {
			convert.Apply(ds.userBuffer, nativeIn, ds.convertInfo, frames, false)
		} else {
			copy(ds.userBuffer, nativeIn)
		}
		inBuf = ds.userBuffer
	}
	if e.dir[dirOut].active {
		outBuf = e.dir[dirOut].userBuffer
	}

	result := driver.ResultContinue
	if e.callback != nil {
		result = driver.CallbackResult(e.callback(inBuf, inTime, outBuf, outTime, frames, observed))
	}

	if e.dir[dirOut].active {
		ds := &e.dir[dirOut]
		zeroFirst := e.dir[dirIn].active && ds.deviceChannels < e.dir[dirIn].deviceChannels
		if ds.doConvertBuffer {
			convert.Apply(nativeOut, ds.userBuffer, ds.convertInfo, frames, zeroFirst)
		} else {
			copy(nativeOut, ds.userBuffer)
		}
		if ds.doByteSwap {
			format.ByteSwap(nativeOut, int(frames)*int(ds.deviceChannels), ds.deviceFormat)
		}
	}

	e.sm.Tick()

	if result != driver.ResultContinue {
		select {
		case e.requestCh <- result:
		default:
		}
	}
	return result
}

// supervise performs the stop/abort the user callback requested from
// outside the device thread, avoiding the re-entrant driver call a
// callback-owning backend (ASIO/JACK/CoreAudio) cannot tolerate.
func (e *Engine) supervise() {
	select {
	case r := <-e.requestCh:
		e.sm.Transition(sstate.StateStopping, sstate.StateRunning)
		switch r {
		case driver.ResultStop:
			_ = e.StopStream()
		case driver.ResultAbort:
			_ = e.AbortStream()
		}
	case <-e.superviseSig:
	}
}

func (e *Engine) stopSupervisor() {
	if e.superviseSig != nil {
		select {
		case <-e.superviseSig:
		default:
			close(e.superviseSig)
		}
	}
}

// onFault is handed to the driver as its FaultFunc: called when the
// device thread hits an unrecoverable native error outside of a period.
func (e *Engine) onFault(err error) {
	e.faultMu.Lock()
	e.fault = err
	e.faultMu.Unlock()
	e.sm.Transition(sstate.StateStopped, sstate.StateRunning, sstate.StateStopping)
	e.stopSupervisor()
}

func (e *Engine) checkFault(op string) error {
	e.faultMu.Lock()
	err := e.fault
	e.fault = nil
	e.faultMu.Unlock()
	if err != nil {
		return newErr(op, KindSystemError, err)
	}
	return nil
}
