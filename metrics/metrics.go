// Package metrics turns the §7 failure taxonomy into Prometheus
// counters, the concrete form of spec.md §7's "failures are observable
// only via counters and optional diagnostic logs" policy. Modeled on
// the runZeroInc-sockstats and ka9q_ubersdr pack entries' use of
// github.com/prometheus/client_golang for per-reason counter vectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter this decoder exposes, under one
// namespace so a collaborator HTTP server can register and serve
// /metrics without needing to know the individual counter names.
type Registry struct {
	CaptureOverflow     prometheus.Counter
	FrameRejected       *prometheus.CounterVec // label "reason"
	NoCoherentTE        prometheus.Counter
	NoProtocolMatch     prometheus.Counter
	SanityFailure       *prometheus.CounterVec // label "reason"
	Duplicate           prometheus.Counter
	PendingVerification prometheus.Counter
	KeysEmitted         *prometheus.CounterVec // label "protocol"
}

// NewRegistry builds and registers every counter against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	const ns = "gatekeeper"

	r := &Registry{
		CaptureOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "capture_overflow_total",
			Help: "Frames delivered after hitting the capture ring's MaxLen before an end-of-frame gap.",
		}),
		FrameRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "frame_rejected_total",
			Help: "Frames rejected by the frame validator, by reason.",
		}, []string{"reason"}),
		NoCoherentTE: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "no_coherent_te_total",
			Help: "Validated frames for which no coherent base TE could be estimated.",
		}),
		NoProtocolMatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "no_protocol_match_total",
			Help: "Frames that fell through to the RAW/Unknown path.",
		}),
		SanityFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "sanity_failure_total",
			Help: "Decoded frames dropped by a post-decode sanity filter, by reason.",
		}, []string{"reason"}),
		Duplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "duplicate_total",
			Help: "Frames dropped as duplicates of a recently emitted key.",
		}),
		PendingVerification: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "pending_verification_total",
			Help: "Frames accumulated into a pending recognition without yet confirming.",
		}),
		KeysEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "keys_emitted_total",
			Help: "DecodedKey events emitted, by protocol.",
		}, []string{"protocol"}),
	}

	reg.MustRegister(r.CaptureOverflow, r.FrameRejected, r.NoCoherentTE,
		r.NoProtocolMatch, r.SanityFailure, r.Duplicate, r.PendingVerification, r.KeysEmitted)

	return r
}
