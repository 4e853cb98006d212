// Package validate implements C2, the frame validator of §4.2: a
// cheap statistical gate that decides whether a captured pulse train
// is plausibly a packet before the expensive TE estimation and
// protocol decoding stages run on it.
package validate

import (
	"github.com/doismellburning/gatekeeper/pulse"
)

// Reason names why a train was rejected. Diagnostic only — it is
// never used to decide what gets emitted, only what gets logged/counted.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTooShort
	ReasonLowValidRatio
	ReasonBadSpread
	ReasonBadClustering
)

func (r Reason) String() string {
	switch r {
	case ReasonTooShort:
		return "TooShort"
	case ReasonLowValidRatio:
		return "LowValidRatio"
	case ReasonBadSpread:
		return "BadSpread"
	case ReasonBadClustering:
		return "BadClustering"
	default:
		return "None"
	}
}

const (
	validRatioMin  = 0.75
	spreadFactor   = 3.5
	clusterBins    = 5
	clusterMinFrac = 0.30
)

// Stats summarizes the valid-range pulses of a train; returned
// alongside the Reason so callers (and tests) can inspect the
// intermediate numbers without recomputing them.
type Stats struct {
	Valid    int
	Sum      uint64
	Min, Max uint32
	Avg      float64
}

// Check runs the four §4.2 gates in order and returns the first
// failing reason, or ReasonNone if the train is accepted.
func Check(t *pulse.Train) (Reason, Stats) {
	n := t.Len()
	if n < pulse.MinSignalLength {
		return ReasonTooShort, Stats{}
	}

	st := computeStats(t)
	if st.Valid < int(validRatioMin*float64(n)) {
		return ReasonLowValidRatio, st
	}
	if st.Avg < pulse.MinPulseUS || st.Avg > pulse.MaxPulseUS {
		return ReasonLowValidRatio, st
	}

	if float64(st.Max) > spreadFactor*st.Avg || float64(st.Min) < st.Avg/spreadFactor {
		return ReasonBadSpread, st
	}

	if !clustered(t, st) {
		return ReasonBadClustering, st
	}

	return ReasonNone, st
}

func computeStats(t *pulse.Train) Stats {
	var st Stats
	st.Min = ^uint32(0)
	for _, p := range t.Pulses {
		if p.DurationUS < pulse.MinPulseUS || p.DurationUS > pulse.MaxPulseUS {
			continue
		}
		st.Valid++
		st.Sum += uint64(p.DurationUS)
		if p.DurationUS < st.Min {
			st.Min = p.DurationUS
		}
		if p.DurationUS > st.Max {
			st.Max = p.DurationUS
		}
	}
	if st.Valid > 0 {
		st.Avg = float64(st.Sum) / float64(st.Valid)
	}
	if st.Valid == 0 {
		st.Min = 0
	}
	return st
}

// clustered partitions [min,max] into clusterBins equal bins and
// requires the largest bin hold at least clusterMinFrac of the valid
// pulses. Uniform noise fails this; a real protocol's handful of
// pulse widths concentrate in one or two bins.
func clustered(t *pulse.Train, st Stats) bool {
	if st.Valid == 0 {
		return false
	}
	span := st.Max - st.Min
	if span == 0 {
		return true // every valid pulse identical: trivially one bin
	}

	var bins [clusterBins]int
	binWidth := float64(span) / float64(clusterBins)
	for _, p := range t.Pulses {
		if p.DurationUS < pulse.MinPulseUS || p.DurationUS > pulse.MaxPulseUS {
			continue
		}
		idx := int(float64(p.DurationUS-st.Min) / binWidth)
		if idx >= clusterBins {
			idx = clusterBins - 1
		}
		bins[idx]++
	}

	max := 0
	for _, c := range bins {
		if c > max {
			max = c
		}
	}
	return float64(max) >= clusterMinFrac*float64(st.Valid)
}
