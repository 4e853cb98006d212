package decode

import (
	"sync"

	"github.com/doismellburning/gatekeeper/clock"
)

// shortWindowEntry backs the within-frame repeat dedup of §4.5(1).
type shortWindowEntry struct {
	decoded   bool
	protocol  string
	code      uint64
	rawHash   uint32
	expiresMS int64
}

// fullDecode records the most recent full decode, used to suppress a
// partial decode overlapping its low/high 16 bits within 5s.
type fullDecode struct {
	code      uint64
	bitLength int
	expiresMS int64
}

// Engine is the stateful C5 stage: one instance per radio channel.
type Engine struct {
	mu sync.Mutex

	clk clock.Clock

	learning  bool
	resetAtMS int64

	shortWindow []shortWindowEntry
	lastFull    *fullDecode

	pending []*Pending
	history []*HistoryEntry
}

// New returns an Engine with startup quiescence beginning now.
func New(clk clock.Clock) *Engine {
	e := &Engine{clk: clk}
	e.ResetState()
	return e
}

// SetLearningMode toggles learning mode from the control surface
// (§6). It is observed starting with the next submitted frame.
func (e *Engine) SetLearningMode(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.learning = on
}

// ResetState clears pending recognitions, history, and restarts the
// 3s startup quiescence window, per the §6 control surface contract.
func (e *Engine) ResetState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
	e.history = nil
	e.shortWindow = nil
	e.lastFull = nil
	e.resetAtMS = e.clk.NowMS()
}

// Submit feeds one captured-and-decoded (or RAW) frame through the
// §4.5 pipeline: startup quiescence, sanity filters / RAW gate,
// short-window dedup, then the verification state machine. It returns
// the emitted key (nil if nothing was emitted) and the reason.
func (e *Engine) Submit(in Input) (*Key, Reason) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.NowMS()

	if now-e.resetAtMS < startupQuietMS {
		return nil, ReasonStartupQuiescence
	}

	if in.Decoded {
		if !sanityCheck(in) {
			return nil, ReasonSanityFailure
		}
	} else {
		if !rawAccepted(in) {
			return nil, ReasonNoRawSignal
		}
	}

	if e.isDuplicate(in, now) {
		return nil, ReasonDuplicate
	}

	key, emitted := e.verify(in, now)
	if !emitted {
		return nil, ReasonPendingVerification
	}

	e.recordShortWindow(in, now)
	e.recordHistory(in, now)
	return key, ReasonEmitted
}

// Sweep evicts stale pending recognitions (>5s) and history entries
// (>60s). Call at least every 5s from the cooperative main loop, per
// §4.5's periodic sweeper.
func (e *Engine) Sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clk.NowMS()

	kept := e.pending[:0]
	for _, p := range e.pending {
		if now-p.LastSeenMS <= pendingEvictAgeMS {
			kept = append(kept, p)
		}
	}
	e.pending = kept

	keptHist := e.history[:0]
	for _, h := range e.history {
		if now-h.LastSeenMS <= historyTTLMS {
			keptHist = append(keptHist, h)
		}
	}
	e.history = keptHist

	keptShort := e.shortWindow[:0]
	for _, s := range e.shortWindow {
		if s.expiresMS > now {
			keptShort = append(keptShort, s)
		}
	}
	e.shortWindow = keptShort

	if e.lastFull != nil && e.lastFull.expiresMS <= now {
		e.lastFull = nil
	}
}

// History returns a snapshot of the display-history dedup list for
// collaborator consumption (e.g. the HTTP API).
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]HistoryEntry, len(e.history))
	for i, h := range e.history {
		out[i] = *h
	}
	return out
}
