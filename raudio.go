// Package raudio is a backend-agnostic, real-time audio I/O engine: open a
// stream against one of several native backends, and pull or push audio
// through a single Callback regardless of which backend is actually moving
// bytes to hardware.
//
// The buffer-conversion and stream-state-machine internals are format- and
// backend-agnostic; everything native lives behind the internal/driver
// contract, one implementation per backend package imported for side
// effect below.
package raudio

import (
	"github.com/ColonelBlimp/raudio/internal/driver"

	_ "github.com/ColonelBlimp/raudio/internal/driver/malgo"
	_ "github.com/ColonelBlimp/raudio/internal/driver/null"
	_ "github.com/ColonelBlimp/raudio/internal/driver/portaudio"
)

// Backends returns the names of the backends compiled into this binary, in
// registration order. The first entry is what New("") selects.
func Backends() []string { return driver.Names() }

// New instantiates an Engine bound to the named backend. An empty name
// auto-selects the first registered backend, mirroring airtaudio's
// "probe every compiled-in API, use the first that works" constructor
// fallback, simplified here to registration order since each of our
// backends is always either usable or simply absent from the build.
func New(backend string) (*Engine, error) {
	drv, err := driver.New(backend)
	if err != nil {
		return nil, newErr("New", KindInputNull, err)
	}
	return newEngine(drv.CurrentAPI(), drv), nil
}
