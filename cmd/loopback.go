// cmd/loopback.go
package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/raudio"
	"github.com/ColonelBlimp/raudio/internal/config"
)

var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Copy capture straight to playback until interrupted",
	RunE:  runLoopback,
}

func runLoopback(cmd *cobra.Command, _ []string) error {
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

	outID := uint32(settings.DeviceIndex)
	inID := uint32(settings.DeviceIndex)
	if settings.DeviceIndex < 0 {
		outID = uint32(engine.DefaultOutputDevice())
		inID = uint32(engine.DefaultInputDevice())
	}

	out := &raudio.StreamParameters{DeviceID: outID, ChannelCount: uint32(settings.Channels)}
	in := &raudio.StreamParameters{DeviceID: inID, ChannelCount: uint32(settings.Channels)}

	bufferFrames := uint32(settings.BufferSize)
	sampleRate := uint32(settings.SampleRate)

	var overflowed, underflowed int

	callback := func(inBuf []byte, _ time.Time, outBuf []byte, _ time.Time, _ uint32, status raudio.StatusSet) raudio.CallbackResult {
		if status&raudio.FlagOverflow != 0 {
			overflowed++
		}
		if status&raudio.FlagUnderflow != 0 {
			underflowed++
		}
		copy(outBuf, inBuf)
		return raudio.ResultContinue
	}

	if err := engine.OpenStream(out, in, sampleFormat, sampleRate, &bufferFrames, callback, nil); err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	if err := engine.StartStream(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "looping capture to playback on %s, %d Hz / %d ch / %s, Ctrl-C to stop\n",
		engine.CurrentBackend(), sampleRate, settings.Channels, settings.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if overflowed > 0 || underflowed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "xruns: %d overflow, %d underflow\n", overflowed, underflowed)
	}

	return engine.StopStream()
}
