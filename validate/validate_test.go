package validate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/doismellburning/gatekeeper/pulse"
)

func trainOf(durations []uint32) *pulse.Train {
	t := &pulse.Train{}
	for i, d := range durations {
		t.Pulses = append(t.Pulses, pulse.Pulse{DurationUS: d, LevelBefore: i%2 == 0})
	}
	return t
}

func TestCheckTooShort(t *testing.T) {
	tr := trainOf(make([]uint32, pulse.MinSignalLength-1))
	for i := range tr.Pulses {
		tr.Pulses[i].DurationUS = 400
	}
	reason, _ := Check(tr)
	assert.Equal(t, ReasonTooShort, reason)
}

func TestCheckBoundaryAcceptsMinSignalLength(t *testing.T) {
	durations := make([]uint32, pulse.MinSignalLength)
	for i := range durations {
		if i%4 == 0 {
			durations[i] = 1200
		} else {
			durations[i] = 400
		}
	}
	reason, _ := Check(trainOf(durations))
	assert.Equal(t, ReasonNone, reason)
}

func TestCheckLowValidRatio(t *testing.T) {
	n := 100
	durations := make([]uint32, n)
	// 74% valid -> rejected
	validCount := 74
	for i := 0; i < n; i++ {
		if i < validCount {
			durations[i] = 400
		} else {
			durations[i] = 50000 // way out of bounds, invalid
		}
	}
	reason, _ := Check(trainOf(durations))
	assert.Equal(t, ReasonLowValidRatio, reason)
}

func TestCheckValidRatioBoundaryAccepts(t *testing.T) {
	n := 100
	durations := make([]uint32, n)
	validCount := 76
	for i := 0; i < n; i++ {
		if i < validCount {
			if i%4 == 0 {
				durations[i] = 1200
			} else {
				durations[i] = 400
			}
		} else {
			durations[i] = pulse.MaxPulseUS + 1000
			if durations[i] > 65000 {
				durations[i] = 65000
			}
		}
	}
	reason, _ := Check(trainOf(durations))
	assert.Equal(t, ReasonNone, reason)
}

func TestCheckUniformNoiseFailsSpreadOrClustering(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	durations := make([]uint32, 60)
	for i := range durations {
		durations[i] = uint32(pulse.MinPulseUS + r.Intn(pulse.MaxPulseUS-pulse.MinPulseUS))
	}
	reason, _ := Check(trainOf(durations))
	assert.Contains(t, []Reason{ReasonBadClustering, ReasonBadSpread}, reason)
}

func TestCheckGoodCameLikeSignalAccepted(t *testing.T) {
	// 24 bits * 2 pulses each, CAME-like 1:3 ratio at TE=320.
	var durations []uint32
	for i := 0; i < 24; i++ {
		if i%2 == 0 {
			durations = append(durations, 320, 960)
		} else {
			durations = append(durations, 960, 320)
		}
	}
	reason, _ := Check(trainOf(durations))
	assert.Equal(t, ReasonNone, reason)
}
