// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/raudio/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "raudio",
	Short: "Backend-agnostic real-time audio I/O demo",
	Long: `raudio drives a cross-platform audio stream engine: pick a backend,
list its devices, play a test tone, or loop capture straight back to
playback.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "execution error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("backend", "b", "", "audio backend (malgo, portaudio, null; empty auto-selects)")
	rootCmd.PersistentFlags().IntP("device", "d", -1, "device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("rate", "r", 48000, "sample rate in Hz")
	rootCmd.PersistentFlags().IntP("channels", "c", 2, "channel count")
	rootCmd.PersistentFlags().StringP("format", "F", "float32", "sample format: int16, int24, int32, float32, float64")
	rootCmd.PersistentFlags().IntP("buffer-size", "B", 512, "frames per period")
	rootCmd.PersistentFlags().Float64P("frequency", "f", 440, "tone frequency in Hz")

	bindFlags()

	rootCmd.AddCommand(devicesCmd, toneCmd, loopbackCmd)
}

// bindFlags binds the persistent flags to their viper keys.
func bindFlags() {
	cobra.CheckErr(viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend")))
	cobra.CheckErr(viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device")))
	cobra.CheckErr(viper.BindPFlag("sample_rate", rootCmd.PersistentFlags().Lookup("rate")))
	cobra.CheckErr(viper.BindPFlag("channels", rootCmd.PersistentFlags().Lookup("channels")))
	cobra.CheckErr(viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format")))
	cobra.CheckErr(viper.BindPFlag("buffer_size", rootCmd.PersistentFlags().Lookup("buffer-size")))
	cobra.CheckErr(viper.BindPFlag("tone_frequency", rootCmd.PersistentFlags().Lookup("frequency")))
}

func initConfig() {
	if err := config.Init(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
