// Package store persists the set of learned "trusted keys" the
// collaborator application manages (§6): the core decoder only reads
// this list to provide key-match lookups, never writes it.
package store

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/doismellburning/gatekeeper/decode"
)

// TrustedKey is the persisted record format named in §6.
type TrustedKey struct {
	Code         uint64  `yaml:"code"`
	Name         string  `yaml:"name"`
	Enabled      bool    `yaml:"enabled"`
	Protocol     string  `yaml:"protocol"`
	BitString    string  `yaml:"bit_string"`
	BitLength    int     `yaml:"bit_length"`
	TEUs         float64 `yaml:"te_us"`
	FrequencyMHz float64 `yaml:"frequency_mhz"`
	Modulation   string  `yaml:"modulation"`
	RawData      string  `yaml:"raw_data,omitempty"`
	RSSIDbm      int     `yaml:"rssi"`
	TimestampMS  int64   `yaml:"timestamp"`
}

// Store is a YAML-backed, mutex-protected list of trusted keys.
type Store struct {
	mu   sync.RWMutex
	path string
	keys []TrustedKey
}

func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.keys = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", s.path, err)
	}
	var keys []TrustedKey
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	s.keys = keys
	return nil
}

func (s *Store) save() error {
	data, err := yaml.Marshal(s.keys)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}

// List returns a snapshot of every learned key.
func (s *Store) List() []TrustedKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TrustedKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Learn appends a newly learned key (typically from a decode.Key
// emitted in learning mode) and persists it.
func (s *Store) Learn(name string, k decode.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, TrustedKey{
		Code: k.Code, Name: name, Enabled: true, Protocol: k.Protocol,
		BitString: k.BitString, BitLength: k.BitLength, TEUs: k.TEUs,
		FrequencyMHz: k.FrequencyMHz, Modulation: k.Modulation,
		RSSIDbm: k.RSSIDbm, TimestampMS: k.TimestampMS,
	})
	return s.save()
}

// SetEnabled toggles a learned key by code without removing its
// history, so a revoked remote can be re-enabled later.
func (s *Store) SetEnabled(code uint64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.keys {
		if s.keys[i].Code == code {
			s.keys[i].Enabled = enabled
			return s.save()
		}
	}
	return fmt.Errorf("store: no key with code %#x", code)
}

// Match implements the §6 key-match lookup: does a decoded key match
// one stored key (a disabled stored key never matches). FindMatch
// applies it across the whole store.
func Match(in decode.Key, stored TrustedKey) bool {
	if !stored.Enabled {
		return false
	}
	if !strings.EqualFold(in.Protocol, stored.Protocol) {
		return false
	}
	if math.Abs(in.FrequencyMHz-stored.FrequencyMHz) > 1.0 {
		return false
	}

	if in.BitString != "" && stored.BitString != "" {
		if in.BitLength <= 32 {
			return in.BitString == stored.BitString
		}
		return positionalSimilarity(in.BitString, stored.BitString) >= 0.95
	}

	if in.Code != stored.Code {
		return false
	}
	if stored.TEUs <= 0 || in.TEUs <= 0 {
		return true
	}
	ratio := in.TEUs / stored.TEUs
	return ratio >= 1/1.3 && ratio <= 1.3
}

func positionalSimilarity(a, b string) float64 {
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

// FindMatch scans every enabled stored key and returns the first one
// matching in, per Match's rule.
func (s *Store) FindMatch(in decode.Key) (TrustedKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if Match(in, k) {
			return k, true
		}
	}
	return TrustedKey{}, false
}
