// Package pipeline wires C1-C5 together into the single cooperative
// main-loop pass described in §5: poll the capture ring, and on a
// ready frame run the validator, TE estimator, and protocol decoder in
// sequence, handing the result to the emission/dedup engine. This is
// the "entire scope" of spec.md's decoding pipeline; everything else
// in this repository is collaborator wiring around it.
package pipeline

import (
	"hash/fnv"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/gatekeeper/capture"
	"github.com/doismellburning/gatekeeper/decode"
	"github.com/doismellburning/gatekeeper/metrics"
	"github.com/doismellburning/gatekeeper/protocol"
	"github.com/doismellburning/gatekeeper/pulse"
	"github.com/doismellburning/gatekeeper/te"
	"github.com/doismellburning/gatekeeper/validate"
)

// RSSISource reads the radio's current RSSI, matching radio.Driver's
// ReadRSSIDbm without importing package radio, so the pipeline does
// not depend on which front end (Hamlib rig or bare GPIO) feeds it.
type RSSISource interface {
	ReadRSSIDbm() (int, error)
}

// Pipeline runs one capture ring through C2-C5 whenever it has a
// frame ready, emitting DecodedKeys through OnKey.
type Pipeline struct {
	Ring     *capture.Ring
	Engine   *decode.Engine
	Metrics  *metrics.Registry
	Logger   *log.Logger
	RSSI     RSSISource
	FreqMHz  float64
	Modulate string

	OnKey func(decode.Key)
}

// Poll drains at most one ready frame from the ring and runs it
// through C2-C5. It returns true if a frame was processed (regardless
// of whether anything was emitted), so callers can busy-poll or sleep
// accordingly without peeking at ring internals.
func (p *Pipeline) Poll() bool {
	train, ready := p.Ring.Poll()
	if !ready {
		return false
	}
	defer p.Ring.Rearm()

	p.process(train)
	return true
}

func (p *Pipeline) process(train *pulse.Train) {
	rssi := 0
	if p.RSSI != nil {
		if v, err := p.RSSI.ReadRSSIDbm(); err == nil {
			rssi = v
		}
	}

	if train.Truncated && p.Metrics != nil {
		p.Metrics.CaptureOverflow.Inc()
	}

	reason, stats := validate.Check(train)
	if reason != validate.ReasonNone {
		if p.Metrics != nil {
			p.Metrics.FrameRejected.WithLabelValues(reason.String()).Inc()
		}
		p.Logger.Debug("frame rejected", "reason", reason.String(), "len", train.Len(), "avg_us", stats.Avg)
		return
	}

	teResult := te.Estimate(train, 0)
	if !teResult.Coherent && p.Metrics != nil {
		p.Metrics.NoCoherentTE.Inc()
	}

	if attempt, ok := protocol.Best(train, teResult); ok {
		p.emitDecoded(train, attempt, rssi)
		return
	}

	if p.Metrics != nil {
		p.Metrics.NoProtocolMatch.Inc()
	}
	p.emitRaw(train, rssi)
}

func (p *Pipeline) emitDecoded(train *pulse.Train, attempt protocol.Attempt, rssi int) {
	in := decode.Input{
		Decoded:      true,
		FullDecode:   attempt.BitsRecovered == attempt.Spec.BitCount,
		Protocol:     attempt.Spec.Name,
		Code:         attempt.Code,
		BitString:    attempt.BitString,
		BitLength:    attempt.BitsRecovered,
		TEUs:         attempt.TEUsedUS,
		RSSIDbm:      rssi,
		FrequencyMHz: p.FreqMHz,
		Modulation:   p.Modulate,
		RawHash:      rawHash(train),
	}
	p.submit(in)
}

func (p *Pipeline) emitRaw(train *pulse.Train, rssi int) {
	teResult := te.Estimate(train, 0.40)
	hash := rawHash(train)
	bits := rawBitString(train)
	in := decode.Input{
		Decoded:         false,
		Code:            uint64(hash),
		BitString:       bits,
		BitLength:       len(bits),
		TrainLen:        train.Len(),
		TEStabilityFrac: teResult.ValidatedFrac,
		RSSIDbm:         rssi,
		FrequencyMHz:    p.FreqMHz,
		Modulation:      p.Modulate,
		RawHash:         hash,
	}
	p.submit(in)
}

func (p *Pipeline) submit(in decode.Input) {
	key, reason := p.Engine.Submit(in)
	p.countReason(reason, in)
	if reason != decode.ReasonEmitted {
		return
	}
	if p.Metrics != nil {
		p.Metrics.KeysEmitted.WithLabelValues(key.Protocol).Inc()
	}
	if p.OnKey != nil {
		p.OnKey(*key)
	}
}

func (p *Pipeline) countReason(reason decode.Reason, in decode.Input) {
	if p.Metrics == nil {
		return
	}
	switch reason {
	case decode.ReasonSanityFailure:
		p.Metrics.SanityFailure.WithLabelValues(sanityReason(in)).Inc()
	case decode.ReasonDuplicate:
		p.Metrics.Duplicate.Inc()
	case decode.ReasonPendingVerification:
		p.Metrics.PendingVerification.Inc()
	}
}

func sanityReason(in decode.Input) string {
	if !in.Decoded {
		return "raw_unstable"
	}
	if in.RSSIDbm < -100 {
		return "low_rssi"
	}
	return "bit_pattern"
}

// rawHash produces the raw_hash named in §3 for RAW/Unknown emissions
// and for the approximate-match short-window RAW dedup key: an FNV-1a
// hash over each pulse's coarse duration bucket and level, so nearly
// identical re-transmissions hash the same even with microsecond jitter.
func rawHash(t *pulse.Train) uint32 {
	h := fnv.New32a()
	buf := make([]byte, 0, 3)
	for _, p := range t.Pulses {
		bucket := p.DurationUS / 10
		buf = buf[:0]
		buf = append(buf, byte(bucket), byte(bucket>>8))
		if p.LevelBefore {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		h.Write(buf)
	}
	return h.Sum32()
}

// rawBitString is the §3 "compact raw encoding" bit_string for a
// RAW/Unknown emission: one character per captured pulse, '1' for a
// pulse that started high and '0' for low.
func rawBitString(t *pulse.Train) string {
	b := make([]byte, t.Len())
	for i, pl := range t.Pulses {
		if pl.LevelBefore {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}
