// Package te implements C3, the base time element (TE) estimator of
// §4.3: given a validated pulse train, find the period most pulse
// durations are near-integer multiples of.
package te

import (
	"math"

	"github.com/doismellburning/gatekeeper/pulse"
)

const (
	sampleCap       = 100
	toleranceFrac   = 0.30 // deviation from nearest integer multiple, as a fraction of that multiple
	minValidedFrac  = 0.60
	maxAvgDeviation = 0.20

	roundBias = 0.5
)

// Result is the outcome of C3: the chosen base period, the fraction
// of pulses that fit its grid, and the average deviation from it.
type Result struct {
	TEUs          float64
	ValidatedFrac float64
	AvgDeviation  float64
	Coherent      bool
}

// Estimate runs the §4.3 algorithm over the first min(N,100) pulses:
// score every one of them as a candidate TE and keep the best-scoring
// candidate. rawThresholdFrac overrides the default 60% coherence
// threshold; pass 0 to use the default (the pipeline's RAW-fallback
// path passes 0.40 for the looser stability check).
func Estimate(t *pulse.Train, rawThresholdFrac float64) Result {
	n := t.Len()
	if n == 0 {
		return Result{}
	}
	window := t.Pulses
	if len(window) > sampleCap {
		window = window[:sampleCap]
	}

	threshold := minValidedFrac
	if rawThresholdFrac > 0 {
		threshold = rawThresholdFrac
	}

	bestTE := 0.0
	bestCount := -1
	bestDevSum := 0.0

	for _, cand := range window {
		teC := float64(cand.DurationUS)
		if teC < pulse.MinTEUS || teC > pulse.MaxTEUS {
			continue
		}
		count, devSum := score(t, teC)
		if count > bestCount {
			bestCount = count
			bestTE = teC
			bestDevSum = devSum
		}
	}

	if bestCount <= 0 {
		return Result{}
	}

	validatedFrac := float64(bestCount) / float64(n)
	avgDev := bestDevSum / float64(bestCount)

	r := Result{TEUs: bestTE, ValidatedFrac: validatedFrac, AvgDeviation: avgDev}
	r.Coherent = validatedFrac >= threshold && avgDev <= maxAvgDeviation
	return r
}

// score counts how many pulses in the whole train fall within 30% of
// an integer multiple of teC, and sums their fractional deviation.
func score(t *pulse.Train, teC float64) (int, float64) {
	count := 0
	devSum := 0.0
	for _, p := range t.Pulses {
		ratio := float64(p.DurationUS) / teC
		nearest := math.Floor(ratio + roundBias)
		if nearest < 1 {
			nearest = 1
		}
		dev := math.Abs(ratio-nearest) / nearest
		if dev <= toleranceFrac {
			count++
			devSum += dev
		}
	}
	return count, devSum
}
