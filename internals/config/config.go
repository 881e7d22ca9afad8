// Copyright (c) 2026 Scott McLesly
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads and validates tank.yaml, the daemon's single
// configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/boot"
)

// OptionalDuration distinguishes an absent duration from an explicit
// zero one.
type OptionalDuration struct {
	Value time.Duration
	IsSet bool
}

func (o OptionalDuration) IsZero() bool {
	return !o.IsSet
}

func (o OptionalDuration) MarshalYAML() (any, error) {
	if !o.IsSet {
		return nil, nil
	}
	return o.Value.String(), nil
}

func (o *OptionalDuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a YAML string")
	}
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	o.Value = duration
	o.IsSet = true
	return nil
}

// Calibration is a two-point linear calibration: raw driver values at
// two reference points are mapped onto the reference scale.
type Calibration struct {
	RawLow  float64 `yaml:"raw-low"`
	RawHigh float64 `yaml:"raw-high"`
	RefLow  float64 `yaml:"ref-low"`
	RefHigh float64 `yaml:"ref-high"`
}

// Sensor configures one polled probe.
type Sensor struct {
	Name        string           `yaml:"name"`
	Kind        string           `yaml:"kind"`
	Unit        string           `yaml:"unit"`
	Interval    OptionalDuration `yaml:"interval,omitempty"`
	Calibration *Calibration     `yaml:"calibration,omitempty"`
}

// MQTT configures the telemetry publisher. An empty broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client-id"`
	TopicPrefix string `yaml:"topic-prefix"`
	QoS         int    `yaml:"qos"`
}

// Config is the parsed tank.yaml.
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	StateDir string `yaml:"state-dir"`

	Flash struct {
		// Image is the file backing the flash device. Empty means an
		// in-memory device (development mode).
		Image          string `yaml:"image"`
		EraseBlockSize int64  `yaml:"erase-block-size"`
	} `yaml:"flash"`

	Partitions struct {
		SlotA   boot.Partition  `yaml:"slot-a"`
		SlotB   boot.Partition  `yaml:"slot-b"`
		Factory *boot.Partition `yaml:"factory,omitempty"`
	} `yaml:"partitions"`

	Update struct {
		ConfirmWindow OptionalDuration `yaml:"confirm-window,omitempty"`
		BootAttempts  uint8            `yaml:"boot-attempts,omitempty"`
	} `yaml:"update"`

	MQTT MQTT `yaml:"mqtt,omitempty"`

	Sensors []Sensor `yaml:"sensors,omitempty"`
}

// Default returns the configuration used when no tank.yaml exists: an
// in-memory flash device with two 1 MiB slots, simulated sensors, no
// telemetry.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.StateDir = "/var/lib/tankd"
	cfg.Flash.EraseBlockSize = 0x1000
	cfg.Partitions.SlotA = boot.Partition{ID: "slot-a", Offset: 0, Size: 0x100000}
	cfg.Partitions.SlotB = boot.Partition{ID: "slot-b", Offset: 0x100000, Size: 0x100000}
	cfg.Sensors = []Sensor{
		{Name: "temperature", Kind: "temperature", Unit: "C"},
		{Name: "ph", Kind: "ph", Unit: "pH"},
	}
	return cfg
}

// Read loads the configuration from path. A missing file yields
// Default(); a present but invalid one is an error, not a fallback.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a tank.yaml document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Sensors = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("cannot use config: http.addr must not be empty")
	}
	if cfg.Flash.EraseBlockSize <= 0 {
		return fmt.Errorf("cannot use config: flash.erase-block-size must be positive")
	}
	// The table constructor owns the geometry rules; run it here so a
	// bad file fails at startup, not mid-update.
	if _, err := boot.NewTable(cfg.Partitions.SlotA, cfg.Partitions.SlotB, cfg.Partitions.Factory); err != nil {
		return err
	}
	for _, p := range []boot.Partition{cfg.Partitions.SlotA, cfg.Partitions.SlotB} {
		if p.Offset%cfg.Flash.EraseBlockSize != 0 || p.Size%cfg.Flash.EraseBlockSize != 0 {
			return fmt.Errorf("cannot use config: slot %q not aligned to %d-byte erase blocks", p.ID, cfg.Flash.EraseBlockSize)
		}
	}
	seen := make(map[string]bool)
	for _, s := range cfg.Sensors {
		if s.Name == "" {
			return fmt.Errorf("cannot use config: sensor without a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("cannot use config: duplicate sensor %q", s.Name)
		}
		seen[s.Name] = true
		if c := s.Calibration; c != nil && c.RawHigh == c.RawLow {
			return fmt.Errorf("cannot use config: sensor %q calibration points coincide", s.Name)
		}
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.ClientID == "" {
		return fmt.Errorf("cannot use config: mqtt.client-id must be set when a broker is configured")
	}
	return nil
}

// EnvPath returns where the boot environment lives.
func (cfg *Config) EnvPath() string {
	return filepath.Join(cfg.StateDir, "bootenv.json")
}

// FlashSize returns the device size implied by the partition layout.
func (cfg *Config) FlashSize() int64 {
	end := func(p boot.Partition) int64 { return p.Offset + p.Size }
	size := end(cfg.Partitions.SlotA)
	if e := end(cfg.Partitions.SlotB); e > size {
		size = e
	}
	if cfg.Partitions.Factory != nil {
		if e := end(*cfg.Partitions.Factory); e > size {
			size = e
		}
	}
	// Round up to a whole erase block.
	bs := cfg.Flash.EraseBlockSize
	return (size + bs - 1) / bs * bs
}
