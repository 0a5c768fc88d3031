// cmd/tone.go
package cmd

import (
	"encoding/binary"
	"fmt"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/raudio"
	"github.com/ColonelBlimp/raudio/internal/config"
)

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Play a sine test tone until interrupted",
	RunE:  runTone,
}

func runTone(cmd *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}

	sampleFormat, err := parseFormat(settings.Format)
	if err != nil {
		return err
	}

	engine, err := raudio.New(settings.Backend)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer engine.CloseStream()

	deviceID := uint32(settings.DeviceIndex)
	if settings.DeviceIndex < 0 {
		deviceID = uint32(engine.DefaultOutputDevice())
	}

	out := &raudio.StreamParameters{
		DeviceID:     deviceID,
		ChannelCount: uint32(settings.Channels),
	}

	bufferFrames := uint32(settings.BufferSize)
	sampleRate := uint32(settings.SampleRate)

	var phase float64
	step := 2 * math.Pi * settings.ToneFrequency / settings.SampleRate

	gen := toneGenerator{sampleFormat: sampleFormat, channels: uint32(settings.Channels)}

	callback := func(_ []byte, _ time.Time, outBuf []byte, _ time.Time, framesPerPeriod uint32, status raudio.StatusSet) raudio.CallbackResult {
		if status&raudio.FlagUnderflow != 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "underflow")
		}
		for i := uint32(0); i < framesPerPeriod; i++ {
			sample := math.Sin(phase)
			phase += step
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
			gen.writeFrame(outBuf, i, sample)
		}
		return raudio.ResultContinue
	}

	if err := engine.OpenStream(out, nil, sampleFormat, sampleRate, &bufferFrames, callback, nil); err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	if err := engine.StartStream(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "playing %.1f Hz on %s, %d Hz / %d ch / %s, Ctrl-C to stop\n",
		settings.ToneFrequency, engine.CurrentBackend(), sampleRate, settings.Channels, settings.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return engine.StopStream()
}

// toneGenerator encodes one sample value into every channel of a frame of
// the given user format, following the same byte layout convert.Apply
// expects from an engine user buffer: interleaved, little-endian.
type toneGenerator struct {
	sampleFormat raudio.SampleFormat
	channels     uint32
}

func (g toneGenerator) writeFrame(buf []byte, frame uint32, v float64) {
	var width uint32
	switch g.sampleFormat {
	case raudio.FormatInt16:
		width = 2
	case raudio.FormatInt24:
		width = 3
	case raudio.FormatInt32:
		width = 4
	case raudio.FormatFloat32:
		width = 4
	case raudio.FormatFloat64:
		width = 8
	default:
		return
	}
	frameOffset := frame * g.channels * width
	for ch := uint32(0); ch < g.channels; ch++ {
		off := int(frameOffset + ch*width)
		g.writeSample(buf[off:off+int(width)], v)
	}
}

func (g toneGenerator) writeSample(dst []byte, v float64) {
	switch g.sampleFormat {
	case raudio.FormatInt16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v*math.MaxInt16)))
	case raudio.FormatInt24:
		i := int32(v * 8388607)
		dst[0] = byte(i)
		dst[1] = byte(i >> 8)
		dst[2] = byte(i >> 16)
	case raudio.FormatInt32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v*math.MaxInt32)))
	case raudio.FormatFloat32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case raudio.FormatFloat64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	}
}
