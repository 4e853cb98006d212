package radio

import "context"

// Mock is an in-memory Driver for unit tests, modeled on the
// teacher's atest.go fixture-driven decoder test harness.
type Mock struct {
	FrequencyMHz float64
	RSSIDbm      int
	handler      func(timestampUS uint64, level bool)
	Started      bool
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Init(ctx context.Context, cfg Config) error {
	m.FrequencyMHz = cfg.FrequencyMHz
	return nil
}

func (m *Mock) SetFrequency(mhz float64) error {
	m.FrequencyMHz = mhz
	return nil
}

func (m *Mock) StartDirectRX() error {
	m.Started = true
	return nil
}

func (m *Mock) Stop() error {
	m.Started = false
	return nil
}

func (m *Mock) ReadRSSIDbm() (int, error) {
	return m.RSSIDbm, nil
}

func (m *Mock) AttachEdgeISR(handler func(timestampUS uint64, level bool)) error {
	m.handler = handler
	return nil
}

func (m *Mock) DetachEdgeISR() error {
	m.handler = nil
	return nil
}

// InjectEdge feeds a synthetic edge to whatever handler is currently
// attached, letting tests drive package capture through the Driver
// interface exactly as a real GPIO ISR would.
func (m *Mock) InjectEdge(timestampUS uint64, level bool) {
	if m.handler != nil {
		m.handler(timestampUS, level)
	}
}
