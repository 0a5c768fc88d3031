// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/raudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices the selected backend can see",
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, _ []string) error {
	backend := viper.GetString("backend")

	engine, err := raudio.New(backend)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n", engine.CurrentBackend())

	n, err := engine.DeviceCount()
	if err != nil {
		return fmt.Errorf("device count: %w", err)
	}
	defIn := engine.DefaultInputDevice()
	defOut := engine.DefaultOutputDevice()

	for i := 0; i < n; i++ {
		info, err := engine.DeviceInfo(i)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%d] <error: %v>\n", i, err)
			continue
		}
		marks := ""
		if i == defIn {
			marks += " default-in"
		}
		if i == defOut {
			marks += " default-out"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s  in=%d out=%d rates=%v%s\n",
			i, info.Name, info.InputChannels, info.OutputChannels, info.SampleRates, marks)
	}
	return nil
}
