package pipeline

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/gatekeeper/capture"
	"github.com/doismellburning/gatekeeper/clock"
	"github.com/doismellburning/gatekeeper/decode"
	"github.com/doismellburning/gatekeeper/metrics"
	"github.com/doismellburning/gatekeeper/pulse"
)

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// encodeCAME24 builds a synthetic, already-validator-clean 1:3-ratio
// train for a 24-bit code at TE=320us, matching the convention
// package protocol's own tests use: bit 0 is (high*TE, low*TE), bit 1
// is (low*TE, high*TE).
func encodeCAME24(code uint64) *pulse.Train {
	t := &pulse.Train{}
	for b := 23; b >= 0; b-- {
		bit := (code >> uint(b)) & 1
		var d0, d1 uint32
		if bit == 0 {
			d0, d1 = 320, 960
		} else {
			d0, d1 = 960, 320
		}
		t.Pulses = append(t.Pulses,
			pulse.Pulse{DurationUS: d0, LevelBefore: true},
			pulse.Pulse{DurationUS: d1, LevelBefore: false},
		)
	}
	return t
}

// fixedRSSI is a stub RSSISource returning a constant reading, so
// tests can pin a frame to either the strong-signal 1-repeat fast
// path or the weak-signal 3-repeat path deterministically.
type fixedRSSI int

func (f fixedRSSI) ReadRSSIDbm() (int, error) { return int(f), nil }

func newPipeline(startMS int64) (*Pipeline, *decode.Engine, *clock.Fake) {
	fc := clock.NewFake(startMS)
	eng := decode.New(fc)
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	p := &Pipeline{
		Ring:     capture.New(),
		Engine:   eng,
		Metrics:  reg,
		Logger:   discardLogger(),
		RSSI:     fixedRSSI(-86),
		FreqMHz:  433.92,
		Modulate: "OOK",
	}
	return p, eng, fc
}

func TestPipelinePollReturnsFalseWithNoFrameReady(t *testing.T) {
	p, _, fc := newPipeline(0)
	fc.Advance(4000)
	assert.False(t, p.Poll(), "nothing fed into the ring yet")
}

func TestPipelineDecodesAndRequiresVerification(t *testing.T) {
	p, _, fc := newPipeline(0)
	fc.Advance(4000) // clear startup quiescence

	var got []decode.Key
	p.OnKey = func(k decode.Key) { got = append(got, k) }

	train := encodeCAME24(0xFD852B)

	p.process(train)
	assert.Empty(t, got, "a weak-RSSI sighting needs three repeats")

	fc.Advance(500)
	p.process(train)
	assert.Empty(t, got, "second sighting still short of the required repeat count")

	fc.Advance(500)
	p.process(train)
	require.NotEmpty(t, got, "third sighting within the 1500ms window should confirm and emit")
	assert.Equal(t, "CAME", got[0].Protocol)
	assert.Equal(t, uint64(0xFD852B), got[0].Code)
}

func TestPipelineLearningModeEmitsImmediately(t *testing.T) {
	p, eng, fc := newPipeline(0)
	fc.Advance(4000)
	eng.SetLearningMode(true)

	var got []decode.Key
	p.OnKey = func(k decode.Key) { got = append(got, k) }

	p.process(encodeCAME24(0xABCDEF))
	require.Len(t, got, 1)
	assert.True(t, got[0].Learning)
}

func TestPipelineUnrecognizedFrameNeverEmitsOnFirstSighting(t *testing.T) {
	p, _, fc := newPipeline(0)
	fc.Advance(4000)

	// A uniform noise-like train: it clears C2's length/ratio/spread
	// gates but fails the clustering gate (every duration equally
	// represented), so it never reaches C3/C4 at all. Whichever gate
	// actually rejects it, no frame should ever emit on a first
	// sighting regardless of path.
	train := &pulse.Train{}
	for i := 0; i < 60; i++ {
		d := uint32(500 + (i%5)*20)
		train.Pulses = append(train.Pulses, pulse.Pulse{DurationUS: d, LevelBefore: i%2 == 0})
	}

	var got []decode.Key
	p.OnKey = func(k decode.Key) { got = append(got, k) }

	p.process(train)
	assert.Empty(t, got)
}

func TestPipelineRejectedFrameNeverReachesEngine(t *testing.T) {
	p, _, fc := newPipeline(0)
	fc.Advance(4000)

	tooShort := &pulse.Train{Pulses: []pulse.Pulse{{DurationUS: 300, LevelBefore: true}}}

	var got []decode.Key
	p.OnKey = func(k decode.Key) { got = append(got, k) }

	p.process(tooShort)
	assert.Empty(t, got)
}

func TestRawHashStableForIdenticalTrains(t *testing.T) {
	a := encodeCAME24(0x1)
	b := encodeCAME24(0x1)
	assert.Equal(t, rawHash(a), rawHash(b))

	c := encodeCAME24(0x2)
	assert.NotEqual(t, rawHash(a), rawHash(c))
}
