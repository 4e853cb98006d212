package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/doismellburning/gatekeeper/pulse"
)

func TestHandleCoalescesGlitches(t *testing.T) {
	r := New()

	r.Handle(0, true)
	r.Handle(500, false) // 500us pulse, level_before=true
	r.Handle(520, true)  // 20us glitch, coalesced onto the prior pulse
	r.Handle(1020, false)

	train, ready := r.Poll()
	require.False(t, ready, "frame not ready yet, no end gap seen")
	assert.Nil(t, train)

	require.Len(t, r.pulses, 2, "the glitch adds no pulse of its own")
	assert.Equal(t, uint32(520), r.pulses[0].DurationUS, "glitch duration added onto the prior pulse")
	assert.Equal(t, uint32(500), r.pulses[1].DurationUS)
}

func TestHandleEndOfFrameAfterMinPulses(t *testing.T) {
	r := New()

	ts := uint64(0)
	r.Handle(ts, true)
	for i := 0; i < pulse.MinPulsesToAccept; i++ {
		ts += 500
		r.Handle(ts, i%2 == 0)
	}
	ts += pulse.EndGapUS + 1
	r.Handle(ts, true)

	train, ready := r.Poll()
	require.True(t, ready)
	require.NotNil(t, train)
	// The end gap itself is within MaxPulseUS, so it is stored as the
	// last pulse before the ring detaches.
	assert.Equal(t, pulse.MinPulsesToAccept+1, train.Len())
	assert.False(t, train.Truncated)
}

func TestHandleResetsOnGarbageBeforeMinPulses(t *testing.T) {
	r := New()
	r.Handle(0, true)
	r.Handle(500, false)
	r.Handle(501+pulse.MaxPulseUS, true) // huge gap, too early: reset

	train, ready := r.Poll()
	assert.False(t, ready)
	assert.Nil(t, train)
}

func TestHandleDropsTooShortPulses(t *testing.T) {
	r := New()
	r.Handle(0, true)
	r.Handle(100, false) // 100us < MinPulseUS, dropped without counting
	ts := uint64(100)
	for i := 0; i < pulse.MinPulsesToAccept; i++ {
		ts += 500
		r.Handle(ts, i%2 == 0)
	}
	ts += pulse.EndGapUS + 1
	r.Handle(ts, true)

	train, ready := r.Poll()
	require.True(t, ready)
	assert.Equal(t, pulse.MinPulsesToAccept+1, train.Len(), "the 500us pulses plus the stored end gap, without the dropped 100us one")
}

func TestOverflowStillProducesFrame(t *testing.T) {
	r := New()
	ts := uint64(0)
	r.Handle(ts, true)
	for i := 0; i < pulse.MaxLen; i++ {
		ts += 500
		r.Handle(ts, i%2 == 0)
	}

	train, ready := r.Poll()
	require.True(t, ready)
	assert.True(t, train.Truncated)
	assert.True(t, r.Overflowed())
	assert.Equal(t, pulse.MaxLen, train.Len())
}

func TestRearmAllowsFreshCapture(t *testing.T) {
	r := New()
	ts := uint64(0)
	r.Handle(ts, true)
	for i := 0; i < pulse.MinPulsesToAccept; i++ {
		ts += 500
		r.Handle(ts, i%2 == 0)
	}
	ts += pulse.EndGapUS + 1
	r.Handle(ts, true)

	_, ready := r.Poll()
	require.True(t, ready)

	r.Rearm()
	_, ready = r.Poll()
	assert.False(t, ready, "ring should be empty again right after rearm")
}

// TestCaptureInvariant checks the §8 quantified invariant: every
// captured train has durations within bounds and alternating levels,
// for any well-formed synthetic edge stream.
func TestCaptureInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := New()
		n := rapid.IntRange(pulse.MinPulsesToAccept, 200).Draw(rt, "n")

		ts := uint64(0)
		lvl := true
		r.Handle(ts, lvl)
		for i := 0; i < n; i++ {
			d := rapid.Uint64Range(pulse.MinPulseUS, pulse.MaxPulseUS).Draw(rt, "d")
			ts += d
			lvl = !lvl
			r.Handle(ts, lvl)
		}
		ts += pulse.EndGapUS + 1
		r.Handle(ts, lvl)

		train, ready := r.Poll()
		if !ready {
			return
		}
		assert.True(rt, train.Valid())
	})
}
