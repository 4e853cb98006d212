// Package gpioedge wires a real GPIO line, via
// github.com/warthog618/go-gpiocdev, to a capture.Ring, implementing
// the data-pin side of §6's radio driver AttachEdgeISR/DetachEdgeISR
// contract for deployments where the radio's demodulated OOK output
// is read directly off a GPIO pin rather than through a Hamlib rig
// backend (see package radio for that path).
package gpioedge

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/doismellburning/gatekeeper/capture"
)

// Watcher owns the gpiocdev line request for the radio data pin and
// feeds every edge into a capture.Ring.
type Watcher struct {
	line  *gpiocdev.Line
	ring  *capture.Ring
	start time.Time
}

// NewWatcher requests chip/offset with both-edges detection and
// starts delivering events into ring. Close releases the line.
func NewWatcher(chip string, offset int, ring *capture.Ring) (*Watcher, error) {
	w := &Watcher{ring: ring, start: time.Now()}

	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(w.onEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("gpioedge: request %s:%d: %w", chip, offset, err)
	}
	w.line = line
	return w, nil
}

func (w *Watcher) onEvent(evt gpiocdev.LineEvent) {
	level := evt.Type == gpiocdev.LineEventRisingEdge
	w.ring.Handle(uint64(evt.Timestamp/time.Microsecond), level)
}

// Close releases the underlying GPIO line request.
func (w *Watcher) Close() error {
	if w.line == nil {
		return nil
	}
	return w.line.Close()
}

// Actuator drives a GPIO output line for the gate/door relay pulse.
// It is the collaborator-side counterpart named in spec.md §1 ("actuator
// pulse generation"), kept intentionally outside the decode pipeline's
// scope: it is the only operation in the surrounding system allowed to
// busy-wait, per §5.
type Actuator struct {
	line *gpiocdev.Line
}

func NewActuator(chip string, offset int) (*Actuator, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("gpioedge: request actuator %s:%d: %w", chip, offset, err)
	}
	return &Actuator{line: line}, nil
}

// Pulse drives the line high for dur then back low, busy-waiting for
// the duration as §5 permits for this one collaborator operation.
func (a *Actuator) Pulse(dur time.Duration) error {
	if err := a.line.SetValue(1); err != nil {
		return err
	}
	deadline := time.Now().Add(dur)
	for time.Now().Before(deadline) {
	}
	return a.line.SetValue(0)
}

func (a *Actuator) Close() error {
	return a.line.Close()
}
