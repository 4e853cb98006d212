// decode.go implements C4, the protocol decoder of §4.4: for each
// catalog entry, try a handful of polarity/ratio variants and a range
// of perturbed TE values and skip offsets, extracting bits with a
// tolerance-based matcher, and keep the best-scoring attempt.
package protocol

import (
	"math"

	"github.com/doismellburning/gatekeeper/pulse"
	"github.com/doismellburning/gatekeeper/te"
)

const (
	alpha         = 0.35 // non-Manchester bit-match tolerance
	manchesterTol = 0.35 // Manchester 1:1 / 1:2 tolerance
	maxSkipCap    = 30
)

var tePerturbations = []float64{0.90, 0.95, 1.0, 1.05, 1.10}

// Attempt is a single decode attempt's outcome (§3 DecodeAttempt),
// extended with the spec reference it was scored against.
type Attempt struct {
	Spec          Spec
	SkipOffset    int
	TEUsedUS      float64
	BitsRecovered int
	Code          uint64
	BitString     string
}

// variant is one of the up to three (high, low, inverted) guesses
// tried per catalog entry, per §4.4.
type variant struct {
	High, Low float64
	Inv       bool
}

func variantsFor(s Spec) []variant {
	if s.IsPT2262Family() {
		return []variant{
			{High: s.HighRatio, Low: s.LowRatio, Inv: s.Inverted},
			{High: s.HighRatio, Low: s.LowRatio, Inv: !s.Inverted},
		}
	}
	return []variant{
		{High: s.HighRatio, Low: s.LowRatio, Inv: s.Inverted},
		{High: s.LowRatio, Low: s.HighRatio, Inv: s.Inverted}, // swap
		{High: s.HighRatio, Low: s.LowRatio, Inv: !s.Inverted},
	}
}

// Best runs C4 across the whole priority-ordered catalog and returns
// the first protocol (in priority order) whose best attempt clears
// its minimum-ratio threshold and sanity checks, or ok=false if no
// protocol matches (C5 then builds a RAW record).
func Best(t *pulse.Train, teHint te.Result) (Attempt, bool) {
	for _, spec := range Catalog {
		att, ok := bestForSpec(t, spec, teHint)
		if ok {
			return att, true
		}
	}
	return Attempt{}, false
}

func bestForSpec(t *pulse.Train, spec Spec, teHint te.Result) (Attempt, bool) {
	n := t.Len()
	maxSkip := n / 3
	if maxSkip > maxSkipCap {
		maxSkip = maxSkipCap
	}

	baseTE := spec.NominalTEUs
	if baseTE == 0 {
		if !teHint.Coherent {
			return Attempt{}, false
		}
		baseTE = teHint.TEUs
	}

	var best Attempt
	haveBest := false
	bestFull := false

	for _, v := range variantsFor(spec) {
		for _, pert := range tePerturbations {
			teTry := baseTE * pert
			if teTry < spec.TEWindowLoUS || teTry > spec.TEWindowHiUS {
				continue
			}
			for skip := 0; skip <= maxSkip; skip++ {
				att, bits := runAttempt(t, spec, v, teTry, skip)
				if bits == 0 {
					continue
				}
				att.BitsRecovered = bits

				full := bits == spec.BitCount
				switch {
				case !haveBest:
					best, haveBest, bestFull = att, true, full
				case full && !bestFull:
					best, bestFull = att, true
				case full && bestFull:
					if tieBreakPrefersLarger(spec) && att.Code > best.Code {
						best = att
					}
				case !full && !bestFull:
					if bits > best.BitsRecovered {
						best = att
					}
				}
			}
		}
	}

	if !haveBest {
		return Attempt{}, false
	}
	if !succeeds(spec, best) {
		return Attempt{}, false
	}
	return best, true
}

// tieBreakPrefersLarger implements the §4.4 MSB-alignment tie-break
// for CAME-24 and Nero-Radio-56: among several full decodes, prefer
// the numerically larger recovered code.
func tieBreakPrefersLarger(s Spec) bool {
	return (s.Name == "CAME" && s.BitCount == 24) || (s.Name == "Nero Radio" && s.BitCount == 56)
}

func succeeds(spec Spec, att Attempt) bool {
	minBits := int(math.Ceil(spec.MinRatio() * float64(spec.BitCount)))
	if att.BitsRecovered < minBits {
		return false
	}
	if att.Code == 0 {
		return false
	}
	if att.Code == AllOnesMask(att.BitsRecovered) {
		return false
	}
	if spec.BitCount < 64 && att.Code == uint64(1)<<uint(spec.BitCount)-1 {
		return false
	}
	if att.Code == 0xFFFFFFFF {
		return false
	}
	if spec.Name == "CAME" {
		if att.TEUsedUS < 240 || att.TEUsedUS > 420 {
			return false
		}
	}
	return true
}

// runAttempt extracts bits starting at skip using TE teTry and the
// given variant, following §4.4 steps 1-5. It returns as many bits as
// it could recover before an abort condition or bit-count completion.
func runAttempt(t *pulse.Train, spec Spec, v variant, teTry float64, skip int) (Attempt, int) {
	n := t.Len()
	i := skip
	var code uint64
	var bitString []byte
	consecutiveMisses := 0
	bits := 0

	for i+1 < n && bits < spec.BitCount {
		p0 := t.Pulses[i]
		p1 := t.Pulses[i+1]

		var bit uint64
		var ok bool
		if spec.Manchester {
			bit, ok = manchesterMatch(p0, p1, teTry)
		} else {
			bit, ok = nrzMatch(p0, p1, teTry, v)
		}

		if ok {
			code = code<<1 | bit
			if bit == 1 {
				bitString = append(bitString, '1')
			} else {
				bitString = append(bitString, '0')
			}
			i += 2
			consecutiveMisses = 0
			bits++
			continue
		}

		i++
		consecutiveMisses++
		if bits > 0 && consecutiveMisses > 2 {
			break
		}
		if bits == 0 && (i-skip) > 20 {
			break
		}
		if bits < spec.BitCount/2 && consecutiveMisses > 3 {
			break
		}
	}

	return Attempt{
		Spec:       spec,
		SkipOffset: skip,
		TEUsedUS:   teTry,
		Code:       code,
		BitString:  string(bitString),
	}, bits
}

func nrzMatch(p0, p1 pulse.Pulse, teTry float64, v variant) (uint64, bool) {
	r0 := float64(p0.DurationUS) / teTry
	r1 := float64(p1.DurationUS) / teTry

	zeroHigh, zeroLow := v.High, v.Low
	oneHigh, oneLow := v.Low, v.High
	if v.Inv {
		zeroHigh, zeroLow, oneHigh, oneLow = oneHigh, oneLow, zeroHigh, zeroLow
	}

	if withinTol(r0, zeroHigh, alpha) && withinTol(r1, zeroLow, alpha) {
		return 0, true
	}
	if withinTol(r0, oneHigh, alpha) && withinTol(r1, oneLow, alpha) {
		return 1, true
	}
	return 0, false
}

func manchesterMatch(p0, p1 pulse.Pulse, teTry float64) (uint64, bool) {
	d0, d1 := float64(p0.DurationUS), float64(p1.DurationUS)
	shorter, longer := d0, d1
	shortFirst := true
	if d1 < d0 {
		shorter, longer = d1, d0
		shortFirst = false
	}
	if shorter <= 0 {
		return 0, false
	}
	ratio := longer / shorter
	// Tolerate a near 1:1 ratio (both halves the same TE) or a near
	// 1:2 ratio (one half is a full bit period): see §9 Open Questions
	// on Manchester polarity calibration.
	near1to1 := ratio <= 1+manchesterTol
	near1to2 := ratio >= 2*(1-manchesterTol) && ratio <= 2*(1+manchesterTol)
	if !near1to1 && !near1to2 {
		return 0, false
	}
	// Both pulses should still be in the TE ballpark, not wild outliers.
	if shorter/teTry < 1-manchesterTol || longer/teTry > 2*(1+manchesterTol) {
		return 0, false
	}
	// The ordinary unmerged case (near1to1) and the merged case
	// (near1to2) both resolve the bit the same way: real captured
	// timings essentially never land on an exact 1:1 ratio, so
	// whichever sub-pulse reads shorter still carries the bit per the
	// short-first-is-0 rule.
	if shortFirst {
		return 0, true
	}
	return 1, true
}

func withinTol(ratio, target, tol float64) bool {
	if target <= 0 {
		return false
	}
	return math.Abs(ratio-target) <= tol*target
}
