// Package null implements driver.Driver with a software-timed clock and no
// native device at all, the Go port of goshadertoy's NullDevice: a
// hardware-free backend for tests and for hosts with nothing to play to.
package null

import (
	"fmt"
	"sync"
	"time"

	"github.com/ColonelBlimp/raudio/internal/driver"
	"github.com/ColonelBlimp/raudio/internal/format"
)

func init() {
	driver.Register("null", func() driver.Driver { return New() })
}

const deviceName = "null"

type pending struct {
	active       bool
	channels     uint32
	firstChannel uint32
	userFormat   format.SampleFormat
}

// Driver ticks a time.Ticker at the requested period rate and calls the
// engine's PeriodFunc with zeroed native buffers, standing in for a real
// device thread.
type Driver struct {
	mu sync.Mutex

	pending      [2]pending
	sampleRate   uint32
	bufferFrames uint32

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns an unopened null driver instance.
func New() *Driver { return &Driver{} }

func (d *Driver) CurrentAPI() string { return "null" }

func (d *Driver) DeviceCount() (int, error) { return 1, nil }

func (d *Driver) DeviceInfo(i int) (driver.DeviceInfo, error) {
	if i != 0 {
		return driver.DeviceInfo{}, fmt.Errorf("null: device index %d out of range", i)
	}
	return driver.DeviceInfo{
		Name:            deviceName,
		IsDefaultInput:  true,
		IsDefaultOutput: true,
		InputChannels:   2,
		OutputChannels:  2,
		DuplexChannels:  2,
		SampleRates:     append([]uint32(nil), defaultSampleRates()...),
		NativeFormats:   []format.SampleFormat{format.Float32},
		Probed:          true,
	}, nil
}

func defaultSampleRates() []uint32 {
	return []uint32{8000, 16000, 22050, 44100, 48000, 96000}
}

func (d *Driver) DefaultInputDevice() int  { return 0 }
func (d *Driver) DefaultOutputDevice() int { return 0 }

// ProbeOpen succeeds for device 0, the only device, and fails for any other
// index. The null device has no native capability limits, so whatever
// format the caller requests is also its device format and no conversion
// pass runs.
func (d *Driver) ProbeOpen(req driver.ProbeRequest) (driver.ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if req.DeviceID != 0 {
		return driver.ProbeResult{}, fmt.Errorf("null: device index %d out of range", req.DeviceID)
	}

	d.pending[req.Dir] = pending{
		active:       true,
		channels:     req.Channels,
		firstChannel: req.FirstChannel,
		userFormat:   req.UserFormat,
	}
	d.sampleRate = req.SampleRate
	d.bufferFrames = req.BufferFrames
	if d.bufferFrames == 0 {
		d.bufferFrames = 512
	}

	return driver.ProbeResult{
		DeviceChannels:    req.Channels,
		DeviceFormat:      req.UserFormat,
		DeviceInterleaved: true,
		DoByteSwap:        false,
		BufferFrames:      d.bufferFrames,
		DoConvertBuffer:   false,
		Latency:           uint64(d.bufferFrames),
	}, nil
}

// Start launches a goroutine that calls fn once per period on a
// software clock derived from sampleRate/bufferFrames.
func (d *Driver) Start(fn driver.PeriodFunc, onFault driver.FaultFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending[driver.Out].active && !d.pending[driver.In].active {
		return fmt.Errorf("null: start called with no active direction")
	}
	if d.sampleRate == 0 {
		return fmt.Errorf("null: sample rate is zero")
	}

	period := time.Duration(d.bufferFrames) * time.Second / time.Duration(d.sampleRate)
	if period <= 0 {
		period = time.Millisecond
	}

	var outBuf, inBuf []byte
	if p := d.pending[driver.Out]; p.active {
		outBuf = make([]byte, int(p.channels)*int(d.bufferFrames)*format.BytesOf(p.userFormat))
	}
	if p := d.pending[driver.In]; p.active {
		inBuf = make([]byte, int(p.channels)*int(d.bufferFrames)*format.BytesOf(p.userFormat))
	}

	d.ticker = time.NewTicker(period)
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go func() {
		defer close(d.doneCh)
		for {
			select {
			case <-d.stopCh:
				return
			case now := <-d.ticker.C:
				for i := range inBuf {
					inBuf[i] = 0
				}
				result := fn(outBuf, inBuf, d.bufferFrames, 0, now, now)
				if result != driver.ResultContinue {
					return
				}
			}
		}
	}()
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Abort is identical to Stop: the null device has no hardware buffer to
// discard, so there is nothing "in flight" to distinguish.
func (d *Driver) Abort() error { return d.Stop() }

func (d *Driver) stopLocked() error {
	if d.ticker == nil {
		return nil
	}
	d.ticker.Stop()
	close(d.stopCh)
	<-d.doneCh
	d.ticker = nil
	d.stopCh = nil
	d.doneCh = nil
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.stopLocked()
	d.pending[driver.Out] = pending{}
	d.pending[driver.In] = pending{}
	return nil
}
