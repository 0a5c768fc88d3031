// cmd/format.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/raudio"
)

func parseFormat(name string) (raudio.SampleFormat, error) {
	switch name {
	case "int16":
		return raudio.FormatInt16, nil
	case "int24":
		return raudio.FormatInt24, nil
	case "int32":
		return raudio.FormatInt32, nil
	case "float32":
		return raudio.FormatFloat32, nil
	case "float64":
		return raudio.FormatFloat64, nil
	default:
		return raudio.FormatUnknown, fmt.Errorf("unknown sample format %q", name)
	}
}
