package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/gatekeeper/decode"
)

func TestLearnAndList(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.yaml"))
	require.NoError(t, err)

	key := decode.Key{Protocol: "CAME", Code: 0xFD852B, BitString: "1101", BitLength: 24, TEUs: 320, FrequencyMHz: 433.92}
	require.NoError(t, s.Learn("driveway gate", key))

	all := s.List()
	require.Len(t, all, 1)
	assert.Equal(t, "driveway gate", all[0].Name)
	assert.True(t, all[0].Enabled)

	s2, err := Open(filepath.Join(dir, "keys.yaml"))
	require.NoError(t, err)
	assert.Len(t, s2.List(), 1, "persisted across reopen")
}

func TestMatchShortBitStringExact(t *testing.T) {
	stored := TrustedKey{Protocol: "CAME", Enabled: true, BitString: "1101", BitLength: 12, FrequencyMHz: 433.92, TEUs: 320}
	in := decode.Key{Protocol: "CAME", BitString: "1101", BitLength: 12, FrequencyMHz: 433.5, TEUs: 320}
	assert.True(t, Match(in, stored))

	in2 := decode.Key{Protocol: "CAME", BitString: "1100", BitLength: 12, FrequencyMHz: 433.5, TEUs: 320}
	assert.False(t, Match(in2, stored))
}

func TestMatchDisabledNeverMatches(t *testing.T) {
	stored := TrustedKey{Protocol: "CAME", Enabled: false, Code: 1, FrequencyMHz: 433.92}
	in := decode.Key{Protocol: "CAME", Code: 1, FrequencyMHz: 433.92}
	assert.False(t, Match(in, stored))
}

func TestMatchFrequencyOutOfTolerance(t *testing.T) {
	stored := TrustedKey{Protocol: "CAME", Enabled: true, Code: 1, FrequencyMHz: 433.92}
	in := decode.Key{Protocol: "CAME", Code: 1, FrequencyMHz: 436.0}
	assert.False(t, Match(in, stored))
}

func TestMatchNumericCodeRequiresTERatio(t *testing.T) {
	stored := TrustedKey{Protocol: "EV1527", Enabled: true, Code: 42, FrequencyMHz: 433.92, TEUs: 400}
	in := decode.Key{Protocol: "EV1527", Code: 42, FrequencyMHz: 433.92, TEUs: 600}
	assert.False(t, Match(in, stored))

	in2 := decode.Key{Protocol: "EV1527", Code: 42, FrequencyMHz: 433.92, TEUs: 420}
	assert.True(t, Match(in2, stored))
}
