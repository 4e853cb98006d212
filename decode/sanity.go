package decode

import "strings"

// sanityCheck applies the §4.5 post-decode filters. It returns false
// if the frame should be silently dropped.
func sanityCheck(in Input) bool {
	if in.BitLength < minValidBits {
		return false
	}
	if allOnes(in.Code, in.BitLength) {
		return false
	}
	if in.BitString != "" {
		ones := strings.Count(in.BitString, "1")
		frac := float64(ones) / float64(len(in.BitString))
		if frac > 0.90 || frac < 0.10 {
			return false
		}
		if repeatedPrefix(in.BitString) {
			return false
		}
	}
	if in.Protocol == "CAME" {
		if float64(in.BitLength) < 0.95*24 {
			return false
		}
		if in.TEUs < 250 || in.TEUs > 400 {
			return false
		}
		if in.BitString != "" {
			ones := strings.Count(in.BitString, "1")
			frac := float64(ones) / float64(len(in.BitString))
			if frac < 0.15 || frac > 0.85 {
				return false
			}
		}
	}
	if in.RSSIDbm < rssiNoiseFloorDbm {
		return false
	}
	return true
}

// allOnes mirrors protocol.AllOnesMask's Open-Question-preserved
// loose behaviour for 25-31 bit codes: 0xFFFFFF for bitCount<=24,
// 0xFFFFFFFF otherwise.
func allOnes(code uint64, bitCount int) bool {
	var mask uint64
	if bitCount <= 24 {
		mask = 0xFFFFFF
	} else {
		mask = 0xFFFFFFFF
	}
	return code == mask
}

// repeatedPrefix reports whether the first 8 bits of s repeat
// identically at least 3 times consecutively (a tell-tale sign of a
// jammed transmitter or a carrier artefact rather than a real code).
func repeatedPrefix(s string) bool {
	if len(s) < 24 {
		return false
	}
	prefix := s[:8]
	return s[8:16] == prefix && s[16:24] == prefix
}

// rawAccepted applies the §4.5 RAW-fallback gate: enough pulses, and
// a TE grid stable enough (40% threshold instead of C3's normal 60%).
func rawAccepted(in Input) bool {
	if in.TrainLen < rawMinSignalLength {
		return false
	}
	return in.TEStabilityFrac >= rawStabilityFrac
}
