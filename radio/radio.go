// Package radio defines the abstract radio driver interface consumed
// by the decode pipeline (§6) and a Hamlib-backed implementation for
// real sub-GHz transceivers, generalizing the teacher's PTT-only
// hamlib/rig.h binding (referenced from cmd/direwolf/main.go) to
// receive-side control: frequency, direct-RX mode, and RSSI readback.
package radio

import "context"

// Modulation names the demodulation scheme in effect. Only OOK/ASK is
// in scope for this decoder (spec Non-goals), but the type exists so
// collaborator configuration can name what it asked for.
type Modulation string

const (
	ModulationOOK Modulation = "OOK"
	ModulationASK Modulation = "ASK"
)

// Config is the one-time radio initialization parameter set from §6.
type Config struct {
	FrequencyMHz float64
	Modulation   Modulation
	BitrateKbps  float64
	RXBandwidthK float64
	DeviationK   float64
	PowerDbm     float64
}

// Driver is the narrow interface the core pipeline's collaborator
// wiring talks to; nothing in capture/validate/te/protocol/decode
// imports this package directly, keeping the core hardware-agnostic
// per spec.md §1.
type Driver interface {
	Init(ctx context.Context, cfg Config) error
	SetFrequency(mhz float64) error
	StartDirectRX() error
	Stop() error
	ReadRSSIDbm() (int, error)

	// AttachEdgeISR registers handler to be called on every level
	// transition of the data pin once StartDirectRX is active.
	// DetachEdgeISR stops delivery without otherwise touching the
	// radio's RX state.
	AttachEdgeISR(handler func(timestampUS uint64, level bool)) error
	DetachEdgeISR() error
}

const (
	MinFrequencyMHz = 300.0
	MaxFrequencyMHz = 928.0
)
