package decode

// verify runs the §4.5/§4.6 learning-vs-operational verification
// state machine for one already-sanity-passed, non-duplicate frame.
// It returns the emitted Key and true on confirmation.
func (e *Engine) verify(in Input, now int64) (*Key, bool) {
	if e.learning {
		key := e.buildKey(in, now, true)
		e.learning = false
		return key, true
	}

	required := requiredRepeats(in)

	p := e.findOrCreatePending(in, now)

	if now-p.LastSeenMS > pendingResetGapMS && p.LastSeenMS != p.FirstSeenMS {
		p.RepeatCount = 1
		p.FirstSeenMS = now
	} else {
		p.RepeatCount++
	}
	p.LastSeenMS = now
	p.LastRSSI = in.RSSIDbm
	p.RequiredRepeats = required

	withinWindow := now-p.FirstSeenMS <= pendingWindowMS

	if p.RepeatCount >= required && withinWindow {
		e.removePending(p)
		return e.buildKey(in, now, false), true
	}

	if !withinWindow {
		// The 1500ms window elapsed without reaching required_repeats
		// in time: reset the series, counting this sighting as its
		// first (§4.6 Verification FSM, Accumulating -> Accumulating).
		p.RepeatCount = 1
		p.FirstSeenMS = now
	}

	return nil, false
}

// requiredRepeats implements the §4.5 adaptive repeat-count rule.
func requiredRepeats(in Input) int {
	required := 2

	switch {
	case in.Decoded && in.FullDecode && in.RSSIDbm > -68 && in.BitLength < 56:
		required = 1
	case !in.Decoded || in.RSSIDbm < -85:
		required = max(required, 3)
	case in.BitLength >= 56 && in.RSSIDbm < -80:
		required = max(required, 3)
	case in.BitLength >= 80:
		required = max(required, 3)
	}

	if required > 5 {
		required = 5
	}
	return required
}

func (e *Engine) findOrCreatePending(in Input, now int64) *Pending {
	protocol := protocolLabel(in)
	for _, p := range e.pending {
		if p.Protocol != protocol {
			continue
		}
		if p.Code == in.Code {
			if in.BitString == "" || p.BitString == "" || bitStringSimilarity(p.BitString, in.BitString) >= 0.95 {
				return p
			}
		}
	}
	p := &Pending{
		Protocol:     protocol,
		Code:         in.Code,
		BitString:    in.BitString,
		FirstSeenMS:  now,
		LastSeenMS:   now,
		RepeatCount:  0,
		IsFullDecode: in.FullDecode,
		TEUs:         int64(in.TEUs),
	}
	e.pending = append(e.pending, p)
	return p
}

func (e *Engine) removePending(target *Pending) {
	kept := e.pending[:0]
	for _, p := range e.pending {
		if p != target {
			kept = append(kept, p)
		}
	}
	e.pending = kept
}

func (e *Engine) buildKey(in Input, now int64, learning bool) *Key {
	return &Key{
		Protocol:     protocolLabel(in),
		Code:         in.Code,
		BitString:    in.BitString,
		BitLength:    in.BitLength,
		TEUs:         in.TEUs,
		RSSIDbm:      in.RSSIDbm,
		FrequencyMHz: in.FrequencyMHz,
		Modulation:   in.Modulation,
		RawHash:      in.RawHash,
		TimestampMS:  now,
		Learning:     learning,
	}
}
