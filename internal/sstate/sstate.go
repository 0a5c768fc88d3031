// Package sstate implements the stream state machine and stream-time clock
// shared by the engine façade and every backend driver's callback loop. It
// is the Go port of the mutex/condition-variable discipline documented on
// airtaudio::Api: a single stream-level mutex guards the state field, the
// driver's runnable condition, and the stream-time clock.
package sstate

import (
	"sync"
	"time"
)

// State is one of the four stream states from the distilled spec's state
// machine.
type State int

const (
	StateClosed State = iota
	StateStopped
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "invalid"
	}
}

// Mode identifies which directions a stream carries.
type Mode int

const (
	ModeNone Mode = iota
	ModeInput
	ModeOutput
	ModeDuplex
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	case ModeDuplex:
		return "duplex"
	default:
		return "none"
	}
}

// Machine holds a stream's state, mode and stream-time clock behind a single
// mutex, plus a condition variable the device thread can block on between
// Stopped and Running.
type Machine struct {
	mu   sync.Mutex
	cond *sync.Cond

	state State
	mode  Mode

	sampleRate uint32
	bufferSize uint32

	startTime time.Time
	duration  time.Duration
}

// New returns a Machine in the Closed state.
func New() *Machine {
	m := &Machine{state: StateClosed}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Lock and Unlock expose the stream-level mutex so the engine can guard
// per-direction descriptors that are visited both by the callback thread and
// by the control-path API, as the distilled spec's concurrency model
// requires.
func (m *Machine) Lock()   { m.mu.Lock() }
func (m *Machine) Unlock() { m.mu.Unlock() }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode sets the mode. Callers must only do this while Closed or
// transitioning Closed -> Stopped, per the distilled spec's invariant that
// mode is constant from Stopped onward.
func (m *Machine) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// Configure records the sample rate and buffer size used for stream-time
// accounting. Must be called before the first Transition to Running.
func (m *Machine) Configure(sampleRate, bufferSize uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleRate = sampleRate
	m.bufferSize = bufferSize
}

// Transition moves the machine to `to` iff the current state is one of
// `from`. It reports whether the transition happened. Moving to Running
// samples startTime and resets duration, exactly once per startStream, per
// the distilled spec's stream-time clock rule.
func (m *Machine) Transition(to State, from ...State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := false
	for _, f := range from {
		if m.state == f {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	m.state = to
	if to == StateRunning {
		m.startTime = time.Now()
		m.duration = 0
	}
	m.cond.Broadcast()
	return true
}

// ForceClosed unconditionally moves the machine to Closed and resets the
// mode, used by the engine's CloseStream (including when the driver's Close
// fails).
func (m *Machine) ForceClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateClosed
	m.mode = ModeNone
	m.cond.Broadcast()
}

// Tick advances the stream-time clock by exactly bufferSize/sampleRate
// seconds, called once per successfully completed period.
func (m *Machine) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sampleRate == 0 {
		return
	}
	m.duration += time.Duration(float64(m.bufferSize) / float64(m.sampleRate) * float64(time.Second))
}

// StreamTime returns startTime+duration, or the zero time while Closed.
func (m *Machine) StreamTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return time.Time{}
	}
	return m.startTime.Add(m.duration)
}

// WaitUntilRunningOrClosed blocks the calling goroutine (the device thread)
// until the state becomes Running or Closed, the suspension point the
// distilled spec assigns to the Stopped -> Running transition.
func (m *Machine) WaitUntilRunningOrClosed() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.state != StateRunning && m.state != StateClosed {
		m.cond.Wait()
	}
	return m.state
}
