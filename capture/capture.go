// Package capture implements C1, the edge-capture front end described
// in the specification's §4.1. The handler on the hot path is called
// from a GPIO edge interrupt and must not allocate, block, or touch
// anything the cooperative side locks; everything it owns is a plain
// ring buffer plus a few flags, guarded by one mutex and by the
// detach-then-copy handoff described below.
//
// The interrupt side and the polling side form a single-producer,
// single-consumer pair: the interrupt fills the buffer and, at
// end-of-frame, detaches itself (stops calling Handle) until the
// consumer calls Poll and then Rearm. This mirrors the teacher's
// dlq.go queue/flag handoff between the receive ISR and the main
// decode loop, simplified to the two-state (armed/detached) case this
// single-channel decoder needs.
package capture

import (
	"sync"

	"github.com/doismellburning/gatekeeper/pulse"
)

// Ring is the capture front end for one radio channel. The zero value
// is not usable; construct with New.
type Ring struct {
	mu sync.Mutex // guards everything below; taken briefly by every Handle call and by each consumer-side method

	armed bool // false once an end-of-frame/overflow has detached the handler

	firstEdgeSeen bool
	lastTS        uint64
	lastLevel     bool

	pulses          []pulse.Pulse
	truncated       bool
	counterOverflow bool
}

// New returns an armed, empty capture ring.
func New() *Ring {
	r := &Ring{pulses: make([]pulse.Pulse, 0, pulse.MaxLen)}
	r.reset()
	return r
}

func (r *Ring) reset() {
	r.armed = true
	r.firstEdgeSeen = false
	r.lastTS = 0
	r.lastLevel = false
	r.pulses = r.pulses[:0]
	r.truncated = false
	r.counterOverflow = false
}

// Start (re)arms the ring for a fresh capture. Safe to call from the
// consumer context only.
func (r *Ring) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// Stop detaches the handler unconditionally; Handle becomes a no-op
// until the next Start.
func (r *Ring) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = false
}

// Handle is the interrupt-context entry point: called once per level
// transition with the monotonic microsecond clock reading and the new
// line level. It implements §4.1 steps 1-7 exactly.
//
// It must never allocate on the steady-state path (the only allocation
// is the one-time buffer grow, which New pre-sizes away) and never
// blocks: the mutex is only ever held briefly by the consumer between
// Poll and Start/Rearm, so contention here is not expected, but a real
// ISR deployment should back this with a lock-free SPSC structure
// instead of sync.Mutex if it must run under a true hardware interrupt
// vector. The mutex form is kept here because it is easiest to reason
// about correctness with from a test harness; callers wiring this to
// an actual GPIO IRQ (see package gpioedge) are expected to move the
// locking to whatever primitive their platform's interrupt context
// permits.
func (r *Ring) Handle(now uint64, lvl bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.armed {
		return
	}

	if !r.firstEdgeSeen {
		r.lastTS = now
		r.lastLevel = lvl
		r.firstEdgeSeen = true
		return
	}

	delta := now - r.lastTS
	r.lastTS = now

	// Glitch coalescing: preserves the prior logical pulse by just
	// extending its duration, per §4.1 step 4.
	if delta < pulse.GlueThreshUS {
		if n := len(r.pulses); n > 0 {
			r.pulses[n-1].DurationUS += uint32(delta)
		}
		r.lastLevel = lvl
		return
	}

	if delta > pulse.MaxPulseUS {
		if len(r.pulses) >= pulse.MinPulsesToAccept {
			r.armed = false // end-of-frame: detach, consumer drains on next Poll
		} else {
			r.reset() // too little captured yet: silence or garbage, start over
		}
		r.lastLevel = lvl
		return
	}

	if delta < pulse.MinPulseUS {
		// Drop without counting; last_ts already advanced above per spec.
		r.lastLevel = lvl
		return
	}

	r.pulses = append(r.pulses, pulse.Pulse{DurationUS: uint32(delta), LevelBefore: r.lastLevel})

	full := len(r.pulses) >= pulse.MaxLen
	if full {
		r.truncated = true
		r.counterOverflow = true
	}
	longEndGap := delta > pulse.EndGapUS && len(r.pulses) >= pulse.MinPulsesToAccept
	if full || longEndGap {
		r.armed = false
	}

	r.lastLevel = lvl
}

// Poll is the non-blocking consumer check: once a frame is complete it
// returns a copy of the buffered train (and true), leaving the ring
// detached until Rearm is called. Poll does not clear the buffer, so
// calling it again before Rearm returns another copy of the same
// frame (and true again); callers process the frame, then Rearm.
func (r *Ring) Poll() (*pulse.Train, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.armed || !r.firstEdgeSeen || len(r.pulses) == 0 {
		return nil, false
	}

	out := &pulse.Train{
		Pulses:    append([]pulse.Pulse(nil), r.pulses...),
		Truncated: r.truncated,
	}
	return out, true
}

// Rearm re-attaches the interrupt source after the consumer has fully
// processed the drained frame, per the Capture FSM's
// FrameReady -> Draining -> Idle transition.
func (r *Ring) Rearm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// Overflowed reports whether the most recently drained frame hit
// MaxLen before an end-of-frame gap (CaptureOverflow in the §7 error
// taxonomy). The frame is still delivered; this is diagnostic only.
func (r *Ring) Overflowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counterOverflow
}
