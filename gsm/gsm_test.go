package gsm

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory serialPort: writes are recorded, and reads
// are served from a scripted reply buffer so tests never touch a real
// device, matching how package decode's tests substitute clock.Fake
// for a real clock.
type fakePort struct {
	mu      sync.Mutex
	written []string
	replies *bytes.Buffer
	closed  bool
}

func newFakePort(scriptedReplies string) *fakePort {
	return &fakePort{replies: bytes.NewBufferString(scriptedReplies)}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, string(p))
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	return f.replies.Read(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestOpenSendsTextModeCommandAndSucceedsOnOK(t *testing.T) {
	port := newFakePort("OK\r\n")
	n, err := newNotifier(port, "+15551234567")
	require.NoError(t, err)
	require.Len(t, port.written, 1)
	assert.Contains(t, port.written[0], "AT+CMGF=1")
	_ = n
}

func TestOpenFailsAndClosesOnModemError(t *testing.T) {
	port := newFakePort("ERROR\r\n")
	_, err := newNotifier(port, "+15551234567")
	require.Error(t, err)
	assert.True(t, port.closed)
}

func TestNotifyWritesAddressedMessageThenCtrlZ(t *testing.T) {
	port := newFakePort("OK\r\nOK\r\n")
	n, err := newNotifier(port, "+15551234567")
	require.NoError(t, err)

	err = n.Notify("gate opened")
	require.NoError(t, err)

	require.Len(t, port.written, 3)
	assert.Contains(t, port.written[1], `AT+CMGS="+15551234567"`)
	assert.True(t, strings.HasSuffix(port.written[2], ctrlZ))
	assert.Contains(t, port.written[2], "gate opened")
}

func TestCloseDelegatesToPort(t *testing.T) {
	port := newFakePort("OK\r\n")
	n, err := newNotifier(port, "+1")
	require.NoError(t, err)
	require.NoError(t, n.Close())
	assert.True(t, port.closed)
}
