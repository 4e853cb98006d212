// Package config loads the collaborator application's settings: a
// YAML file for anything that's a record (radio parameters, API and
// GSM settings, file paths) layered under command-line flags for
// anything an operator needs to override per-run. This mirrors the
// teacher's config.go/main.go split between a parsed config file and
// flag overrides, rewritten with github.com/spf13/pflag and
// gopkg.in/yaml.v3 in place of the teacher's hand-rolled line parser,
// since a config file this small gains nothing from a bespoke
// directive grammar.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML configuration (§2 Ambient Stack).
type File struct {
	Radio struct {
		Driver      string  `yaml:"driver"` // "hamlib" or "gpio"
		Device      string  `yaml:"device"`
		Rig         int     `yaml:"rig_model"`
		FrequencyMHz float64 `yaml:"frequency_mhz"`
		Modulation  string  `yaml:"modulation"`
		GPIOChip    string  `yaml:"gpio_chip"`
		GPIODataPin int     `yaml:"gpio_data_pin"`
		GPIORelayPin int    `yaml:"gpio_relay_pin"`
	} `yaml:"radio"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	API struct {
		ListenAddr string `yaml:"listen_addr"`
		MDNS       bool   `yaml:"mdns"`
	} `yaml:"api"`

	GSM struct {
		Enabled bool   `yaml:"enabled"`
		Device  string `yaml:"device"`
		BaudRate int   `yaml:"baud_rate"`
		Number   string `yaml:"number"`
	} `yaml:"gsm"`

	Learning bool `yaml:"learning"`
}

// Flags holds the command-line overrides, parsed with pflag the same
// way the teacher's cmd/*/main.go binaries do for their flag sets.
type Flags struct {
	ConfigPath string
	Learning   bool
	Verbose    bool
}

// ParseFlags defines and parses the standard gatekeeper flag set
// against args (pass os.Args[1:] from main).
func ParseFlags(args []string) (Flags, error) {
	fs := pflag.NewFlagSet("gatekeeper", pflag.ContinueOnError)

	var f Flags
	fs.StringVarP(&f.ConfigPath, "config", "c", "/etc/gatekeeper/config.yaml", "path to the YAML configuration file")
	fs.BoolVarP(&f.Learning, "learning", "l", false, "start in learning mode")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Load reads and parses the YAML config at path. A missing file is
// not an error: it returns the zero File so pure-flag invocations
// (tests, quick trials) still work.
func Load(path string) (File, error) {
	var cfg File
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies command-line overrides on top of a loaded File. Flags
// win because they are the more specific, more recently stated intent.
func Merge(cfg File, f Flags) File {
	if f.Learning {
		cfg.Learning = true
	}
	return cfg
}
