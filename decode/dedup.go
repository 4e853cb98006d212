package decode

// isDuplicate implements the §4.5(1) short-window dedup: within-frame
// repeats from the same press, plus the full-decode-suppresses-partial
// rule.
func (e *Engine) isDuplicate(in Input, now int64) bool {
	for _, s := range e.shortWindow {
		if s.expiresMS <= now {
			continue
		}
		if in.Decoded && s.decoded && s.protocol == in.Protocol && s.code == in.Code {
			return true
		}
		if !in.Decoded && !s.decoded && approxEqual(s.rawHash, in.RawHash, 0.01) {
			return true
		}
	}

	if e.lastFull != nil && e.lastFull.expiresMS > now && in.Decoded {
		if in.BitLength < e.lastFull.bitLength {
			lowMask := uint64(1)<<16 - 1
			fullLow := e.lastFull.code & lowMask
			fullHigh := (e.lastFull.code >> uint(e.lastFull.bitLength-16)) & lowMask
			if e.lastFull.bitLength >= 16 && (in.Code&lowMask == fullLow || (in.BitLength >= 16 && (in.Code>>uint(in.BitLength-16))&lowMask == fullHigh)) {
				return true
			}
		}
	}

	return false
}

func approxEqual(a, b uint32, fracTol float64) bool {
	var diff float64
	if a > b {
		diff = float64(a - b)
	} else {
		diff = float64(b - a)
	}
	if a == 0 && b == 0 {
		return true
	}
	base := float64(a)
	if b > a {
		base = float64(b)
	}
	return diff <= fracTol*base
}

func (e *Engine) recordShortWindow(in Input, now int64) {
	ttl := int64(shortWindowRawMS)
	if in.Decoded {
		ttl = shortWindowDecMS
	}
	e.shortWindow = append(e.shortWindow, shortWindowEntry{
		decoded:   in.Decoded,
		protocol:  in.Protocol,
		code:      in.Code,
		rawHash:   in.RawHash,
		expiresMS: now + ttl,
	})

	if in.Decoded && in.FullDecode {
		e.lastFull = &fullDecode{code: in.Code, bitLength: in.BitLength, expiresMS: now + shortWindowDecMS}
	}
}

func (e *Engine) recordHistory(in Input, now int64) {
	for _, h := range e.history {
		if matchesHistory(h, in) {
			h.LastSeenMS = now
			h.Count++
			return
		}
	}

	entry := &HistoryEntry{
		Protocol:    protocolLabel(in),
		Code:        in.Code,
		BitString:   in.BitString,
		RawHash:     in.RawHash,
		FirstSeenMS: now,
		LastSeenMS:  now,
		Count:       1,
	}
	e.history = append(e.history, entry)
	if len(e.history) > historyMaxEntries {
		e.history = e.history[len(e.history)-historyMaxEntries:]
	}
}

func matchesHistory(h *HistoryEntry, in Input) bool {
	if !in.Decoded {
		return h.Protocol == "RAW/Unknown" && h.RawHash == in.RawHash
	}
	if h.Protocol != in.Protocol {
		return false
	}
	if h.BitString != "" && in.BitString != "" {
		return h.BitString == in.BitString
	}
	return h.Code == in.Code
}

func protocolLabel(in Input) string {
	if in.Decoded {
		return in.Protocol
	}
	return "RAW/Unknown"
}

// bitStringSimilarity computes positional similarity over
// min(len(a),len(b)) positions, divided by max(len(a),len(b)), the
// §6 key-match / §4.5 pending-match rule.
func bitStringSimilarity(a, b string) float64 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	matches := 0
	for i := 0; i < minLen; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(maxLen)
}
